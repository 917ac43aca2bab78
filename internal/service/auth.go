package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/logger"
	"github.com/yardline/marketclient/pkg/validator"
)

// AuthView is the screen the auth prompt shows.
type AuthView string

const (
	ViewLogin    AuthView = "LOGIN"
	ViewRegister AuthView = "REGISTER"
	ViewOTP      AuthView = "OTP"
)

// OfflineOTPNotice is shown when registration could not reach the backend.
const OfflineOTPNotice = "No verification email was sent; any 6-digit code will be accepted."

// AuthState is what the presentation layer renders for the auth prompt.
type AuthState struct {
	Open         bool     `json:"open"`
	View         AuthView `json:"view"`
	Submitting   bool     `json:"submitting"`
	Error        string   `json:"error,omitempty"`
	Notice       string   `json:"notice,omitempty"`
	PendingEmail string   `json:"pendingEmail,omitempty"`
	Offline      bool     `json:"offline"`
}

// AuthFlow drives the LOGIN, REGISTER and OTP views. Network calls run
// without the lock held; Submitting guards against a second submit.
type AuthFlow struct {
	backend         AuthBackend
	sessions        *SessionManager
	offlineFallback bool
	logger          *slog.Logger
	offlineLog      *slog.Logger

	mu    sync.Mutex
	state AuthState
	draft *domain.RegistrationDraft
}

// NewAuthFlow creates a closed auth prompt. It closes itself whenever a
// session starts.
func NewAuthFlow(backend AuthBackend, sessions *SessionManager, bus *event.Bus, offlineFallback bool, log *slog.Logger) *AuthFlow {
	f := &AuthFlow{
		backend:         backend,
		sessions:        sessions,
		offlineFallback: offlineFallback,
		logger:          log,
		offlineLog:      logger.WithChannel(log, logger.ChannelOfflineFallback),
		state:           AuthState{View: ViewLogin},
	}
	bus.Subscribe(f.onSessionChanged, event.TopicSessionChanged)
	return f
}

func (f *AuthFlow) onSessionChanged(_ context.Context, e event.Event) {
	payload, ok := e.Data.(event.SessionChanged)
	if !ok || !payload.Authenticated {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

// reset closes the prompt and discards the draft. Callers hold f.mu.
func (f *AuthFlow) reset() {
	f.state = AuthState{View: ViewLogin}
	f.draft = nil
}

// State returns a snapshot of the prompt.
func (f *AuthFlow) State() AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Open shows the prompt on LOGIN or REGISTER.
func (f *AuthFlow) Open(view AuthView) (AuthState, error) {
	if view != ViewLogin && view != ViewRegister {
		return f.State(), apperrors.InvalidInput("the prompt opens on LOGIN or REGISTER")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Submitting {
		return f.state, errBusy()
	}
	f.reset()
	f.state.Open = true
	f.state.View = view
	return f.state, nil
}

// Close hides the prompt and discards any registration draft.
func (f *AuthFlow) Close() AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
	return f.state
}

// SwitchView toggles between LOGIN and REGISTER and clears the error. OTP is
// only reachable through registration.
func (f *AuthFlow) SwitchView(view AuthView) (AuthState, error) {
	if view != ViewLogin && view != ViewRegister {
		return f.State(), apperrors.InvalidInput("OTP is only reachable through registration")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Submitting {
		return f.state, errBusy()
	}
	f.state.Open = true
	f.state.View = view
	f.state.Error = ""
	f.state.Notice = ""
	f.state.PendingEmail = ""
	f.state.Offline = false
	f.draft = nil
	return f.state, nil
}

// begin enters the Submitting sub-state of view. A closed prompt is opened
// on LOGIN or REGISTER so headless callers need no extra step.
func (f *AuthFlow) begin(view AuthView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Submitting {
		return errBusy()
	}
	if !f.state.Open {
		if view == ViewOTP {
			return apperrors.Conflict("no registration is waiting for a code")
		}
		f.reset()
		f.state.Open = true
		f.state.View = view
	}
	if f.state.View != view {
		return apperrors.Conflict("the prompt is showing " + string(f.state.View) + ", not " + string(view))
	}
	f.state.Submitting = true
	f.state.Error = ""
	return nil
}

// fail leaves Submitting and shows err on the current view.
func (f *AuthFlow) fail(err error) AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Submitting = false
	f.state.Error = apperrors.Message(err)
	return f.state
}

// showError records a local validation error without entering Submitting.
func (f *AuthFlow) showError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Submitting {
		f.state.Error = validationMessage(err)
	}
}

// Login submits the LOGIN view.
func (f *AuthFlow) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	creds.Identifier = strings.TrimSpace(creds.Identifier)
	if err := validator.Validate(creds); err != nil {
		f.showError(err)
		return domain.Session{}, err
	}
	if err := f.begin(ViewLogin); err != nil {
		return domain.Session{}, err
	}

	resp, err := f.backend.Login(ctx, creds)
	if err == nil {
		return f.complete(ctx, resp.BearerToken(), resp.User)
	}
	if f.canFallBack(err) {
		token, user := OfflineIdentity(creds.Identifier, "", domain.RoleBuyer)
		f.logFallback(ctx, "login", err, user)
		return f.complete(ctx, token, user)
	}

	f.fail(err)
	f.logger.InfoContext(ctx, "login rejected", slog.String("error", err.Error()))
	return domain.Session{}, err
}

// Register submits the REGISTER view. Validation runs locally first; a
// mismatched confirmation never reaches the network.
func (f *AuthFlow) Register(ctx context.Context, draft domain.RegistrationDraft) (AuthState, error) {
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Username = strings.TrimSpace(draft.Username)
	if err := validator.Validate(draft); err != nil {
		f.showError(err)
		return f.State(), err
	}
	if err := f.begin(ViewRegister); err != nil {
		return f.State(), err
	}

	resp, err := f.backend.Register(ctx, draft)
	switch {
	case err == nil:
		notice := resp.Message
		if notice == "" {
			notice = "A verification code was sent to " + resp.Email + "."
		}
		return f.toOTP(draft, resp.Email, notice, false), nil

	case f.canFallBack(err):
		offlineFallbacks.WithLabelValues("register").Inc()
		f.offlineLog.WarnContext(ctx, "registration could not reach the backend; continuing offline",
			slog.String("email", draft.Email),
			slog.String("error", err.Error()),
		)
		return f.toOTP(draft, draft.Email, OfflineOTPNotice, true), nil

	default:
		return f.fail(err), err
	}
}

func (f *AuthFlow) toOTP(draft domain.RegistrationDraft, email, notice string, offline bool) AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := draft
	f.draft = &d
	f.state = AuthState{
		Open:         true,
		View:         ViewOTP,
		Notice:       notice,
		PendingEmail: email,
		Offline:      offline,
	}
	return f.state
}

// VerifyOTP submits the OTP view. The code must be exactly six characters,
// and six digits when no verification email was sent.
func (f *AuthFlow) VerifyOTP(ctx context.Context, code string) (domain.Session, error) {
	code = strings.TrimSpace(code)
	if !domain.OTPComplete(code) {
		return domain.Session{}, apperrors.InvalidInput("the verification code must be exactly 6 characters")
	}
	f.mu.Lock()
	offlineCode := f.state.Offline && f.state.View == ViewOTP
	f.mu.Unlock()
	if offlineCode && !domain.OTPDigits(code) {
		return domain.Session{}, apperrors.InvalidInput("enter any 6-digit code to continue offline")
	}
	if err := f.begin(ViewOTP); err != nil {
		return domain.Session{}, err
	}

	f.mu.Lock()
	offline := f.state.Offline
	email := f.state.PendingEmail
	var draft domain.RegistrationDraft
	if f.draft != nil {
		draft = *f.draft
	}
	f.mu.Unlock()

	if offline {
		token, user := OfflineIdentity(email, draft.Username, domain.RoleBuyer)
		offlineFallbacks.WithLabelValues("otp").Inc()
		f.offlineLog.WarnContext(ctx, "accepting unverified code in offline mode",
			slog.String("user_id", user.ID),
		)
		return f.complete(ctx, token, user)
	}

	resp, err := f.backend.VerifyOTP(ctx, email, code)
	if err == nil {
		return f.complete(ctx, resp.BearerToken(), resp.User)
	}
	if f.canFallBack(err) {
		token, user := OfflineIdentity(email, draft.Username, domain.RoleBuyer)
		f.logFallback(ctx, "otp", err, user)
		return f.complete(ctx, token, user)
	}

	f.fail(err)
	return domain.Session{}, err
}

// GoogleLogin exchanges a Google credential. It is offered only on LOGIN and
// never falls back to an offline identity.
func (f *AuthFlow) GoogleLogin(ctx context.Context, credential string) (domain.Session, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.Session{}, apperrors.InvalidInput("a Google credential is required")
	}
	if err := f.begin(ViewLogin); err != nil {
		return domain.Session{}, err
	}

	resp, err := f.backend.GoogleAuth(ctx, credential)
	if err != nil {
		f.fail(err)
		f.logger.WarnContext(ctx, "google sign-in failed", slog.String("error", err.Error()))
		return domain.Session{}, err
	}
	return f.complete(ctx, resp.BearerToken(), resp.User)
}

// complete starts the session. The session.changed event closes the prompt.
func (f *AuthFlow) complete(ctx context.Context, token string, user domain.User) (domain.Session, error) {
	s, err := f.sessions.Login(ctx, token, user)
	if err != nil {
		f.fail(err)
		return domain.Session{}, err
	}
	return s, nil
}

func (f *AuthFlow) canFallBack(err error) bool {
	return f.offlineFallback && apperrors.IsTransport(err)
}

func (f *AuthFlow) logFallback(ctx context.Context, flow string, cause error, user domain.User) {
	offlineFallbacks.WithLabelValues(flow).Inc()
	f.offlineLog.WarnContext(ctx, "backend unreachable; minting offline identity",
		slog.String("flow", flow),
		slog.String("user_id", user.ID),
		slog.String("error", cause.Error()),
	)
}

// validationMessage turns a validator error into one line for the prompt.
func validationMessage(err error) string {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		if valErr.Has("confirmPassword") {
			return "Passwords do not match"
		}
		return valErr.Error()
	}
	return apperrors.Message(err)
}
