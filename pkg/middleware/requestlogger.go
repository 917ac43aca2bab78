package middleware

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, user_id, trace_id, and span_id, then stores it in
// context via logger.NewContext.
//
// Mount it after RequestLogging and Tracing. identify may be nil.
func RequestLogger(base *slog.Logger, identify IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if identify != nil {
				if id, ok := identify(ctx); ok && id.UserID != "" {
					ctx = logger.WithUserID(ctx, id.UserID)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
