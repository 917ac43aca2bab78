package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// SessionHandler exposes the current identity. The bearer token never leaves
// the daemon.
type SessionHandler struct {
	sessions *service.SessionManager
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(sessions *service.SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// SessionResponse is the token-free view of a session.
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	Mode          domain.SessionMode `json:"mode"`
	User          *domain.User       `json:"user,omitempty"`
	CanSell       bool               `json:"canSell"`
}

func toSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		Authenticated: s.IsAuthenticated(),
		Mode:          s.Mode,
		User:          s.User,
		CanSell:       s.CanSell(),
	}
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Logout handles DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	httputil.WriteData(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}
