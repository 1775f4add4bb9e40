// Package admin gates routes by actor role.
package admin

import (
	"log/slog"
	"net/http"
	"slices"

	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/httputil"
	"senderguard/pkg/requestcontext"
)

// RequireRole admits only actors whose role is in allowed. It runs after auth,
// so a missing actor is reported as unauthorized rather than forbidden.
func RequireRole(allowed []id.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.ActorID(ctx).IsNil() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			role := requestcontext.Role(ctx)
			if !slices.Contains(allowed, role) {
				logger.WarnContext(ctx, "role not permitted",
					"role", role,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
