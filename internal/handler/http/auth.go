package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// AuthHandler drives the LOGIN / REGISTER / OTP modal.
type AuthHandler struct {
	flow   *service.AuthFlow
	logger *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(flow *service.AuthFlow, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{flow: flow, logger: logger}
}

// ViewRequest selects a modal view.
type ViewRequest struct {
	View service.AuthView `json:"view"`
}

// VerifyOTPRequest carries the 6-digit verification code.
type VerifyOTPRequest struct {
	Code string `json:"code"`
}

// GoogleRequest carries the credential returned by Google sign-in.
type GoogleRequest struct {
	Credential string `json:"credential"`
}

// SignedInResponse is returned once a flow ends with a session.
type SignedInResponse struct {
	Session SessionResponse   `json:"session"`
	Auth    service.AuthState `json:"auth"`
}

// State handles GET /api/v1/auth
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.flow.State())
}

// Open handles POST /api/v1/auth/open
func (h *AuthHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	state, err := h.flow.Open(req.View)
	h.writeState(w, r, state, err)
}

// Close handles POST /api/v1/auth/close
func (h *AuthHandler) Close(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.flow.Close())
}

// SwitchView handles PUT /api/v1/auth/view
func (h *AuthHandler) SwitchView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	state, err := h.flow.SwitchView(req.View)
	h.writeState(w, r, state, err)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decodeBody(w, r, &creds, h.logger) {
		return
	}
	session, err := h.flow.Login(r.Context(), creds)
	h.writeSignedIn(w, r, session, err)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var draft domain.RegistrationDraft
	if !decodeBody(w, r, &draft, h.logger) {
		return
	}
	state, err := h.flow.Register(r.Context(), draft)
	h.writeState(w, r, state, err)
}

// VerifyOTP handles POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	session, err := h.flow.VerifyOTP(r.Context(), req.Code)
	h.writeSignedIn(w, r, session, err)
}

// Google handles POST /api/v1/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	session, err := h.flow.GoogleLogin(r.Context(), req.Credential)
	h.writeSignedIn(w, r, session, err)
}

func (h *AuthHandler) writeState(w http.ResponseWriter, r *http.Request, state service.AuthState, err error) {
	if err != nil {
		httputil.WriteErrorData(w, r, err, state, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, state)
}

func (h *AuthHandler) writeSignedIn(w http.ResponseWriter, r *http.Request, session domain.Session, err error) {
	if err != nil {
		httputil.WriteErrorData(w, r, err, h.flow.State(), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, SignedInResponse{
		Session: toSessionResponse(session),
		Auth:    h.flow.State(),
	})
}
