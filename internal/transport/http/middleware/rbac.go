package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"timesheets/internal/transport/http/api"
)

// PermissionStore answers whether a role holds a permission.
type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission rejects callers whose role lacks permission. It must run
// after Auth so the actor is on the context.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			actor, ok := GetActor(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), actor.Role, permission)
			if err != nil {
				slog.Error("permission check failed", "role", actor.Role, "permission", permission, "requestId", requestID, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
				return
			}
			if !allowed {
				slog.Debug("permission denied", "userId", actor.UserID, "role", actor.Role, "permission", permission)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
