package service

import (
	"context"
	"net/http"

	"github.com/yardline/marketclient/internal/backend"
	"github.com/yardline/marketclient/internal/domain"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// AuthBackend is the slice of the backend the auth flow uses.
type AuthBackend interface {
	Login(ctx context.Context, creds domain.Credentials) (*backend.AuthResponse, error)
	Register(ctx context.Context, draft domain.RegistrationDraft) (*backend.RegisterResponse, error)
	VerifyOTP(ctx context.Context, email, code string) (*backend.AuthResponse, error)
	GoogleAuth(ctx context.Context, credential string) (*backend.AuthResponse, error)
}

// CartBackend is the remote cart.
type CartBackend interface {
	FetchCart(ctx context.Context, token string) (domain.Cart, error)
	RemoveCartItem(ctx context.Context, token, listingID string) error
}

// OperatorBackend serves the operator portal.
type OperatorBackend interface {
	OperatorLogin(ctx context.Context, username, password string) (*backend.AuthResponse, error)
	SubmitOperatorLog(ctx context.Context, token string, log *domain.OperatorLog) error
}

// InquiryBackend accepts service requests, consultations and AI prompts.
type InquiryBackend interface {
	SubmitServiceRequest(ctx context.Context, token string, req domain.ServiceRequest) (*domain.Acknowledgement, error)
	SubmitConsultation(ctx context.Context, token string, req domain.Consultation) (*domain.Acknowledgement, error)
	AskConsultant(ctx context.Context, token, prompt string) (*domain.ConsultantAdvice, error)
}

// SessionSource hands the current session to the components that act on
// behalf of the user. *SessionManager satisfies it.
type SessionSource interface {
	Current() domain.Session
}

// remoteToken returns the token to send to real collaborators. Offline
// tokens were never issued by the backend and are not forwarded.
func remoteToken(s domain.Session) string {
	if !s.IsAuthenticated() || s.IsOffline() {
		return ""
	}
	return s.Token
}

// errOfflineMode is returned by flows that cannot run on a locally minted
// identity. It is retryable: signing in again online clears it.
func errOfflineMode(what string) error {
	return &apperrors.AppError{
		Code:    "OFFLINE_MODE",
		Message: what + " is unavailable while signed in offline",
		Status:  http.StatusServiceUnavailable,
		Err:     apperrors.ErrUnreachable,
	}
}

// errAmountOutOfRange is returned for orders whose total cannot be charged.
func errAmountOutOfRange(message string) error {
	return &apperrors.AppError{
		Code:    "AMOUNT_OUT_OF_RANGE",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
}

// errBusy is returned when a second submit arrives while one is in flight.
func errBusy() error {
	return apperrors.Conflict("a request is already in progress")
}
