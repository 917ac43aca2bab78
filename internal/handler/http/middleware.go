package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yardline/marketclient/internal/service"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/httputil"
	"github.com/yardline/marketclient/pkg/middleware"
)

// SessionIdentity resolves the caller from the daemon's single session.
func SessionIdentity(sessions service.SessionSource) middleware.IdentityFunc {
	return func(context.Context) (middleware.Identity, bool) {
		s := sessions.Current()
		if !s.IsAuthenticated() {
			return middleware.Identity{}, false
		}
		return middleware.Identity{
			UserID:  s.User.ID,
			Role:    string(s.User.Role),
			Offline: s.IsOffline(),
		}, true
	}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON body without validating it. The services validate
// their own input so that rejected drafts still land in the view state.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body"), logger)
		return false
	}
	return true
}
