package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// Identity is the caller as the daemon's session manager sees it.
type Identity struct {
	UserID  string
	Role    string
	Offline bool
}

// IdentityFunc resolves the current identity; ok is false when anonymous.
type IdentityFunc func(ctx context.Context) (Identity, bool)

// RequireIdentity rejects requests while no session is held.
func RequireIdentity(identify IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identify(r.Context()); !ok {
				writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole checks that the current identity has one of the given roles.
func RequireRole(identify IdentityFunc, roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identify(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue")
				return
			}
			if _, allowed := roleSet[id.Role]; !allowed {
				writeDenied(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
