package authz

import (
	"log/slog"
	"net/http"

	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

// Middleware adapts the engine to chi handler chains.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// RequirePermission denies the request with 403 unless the authenticated
// principal holds the given permission key. Store failures surface as 500;
// they are never treated as a deny.
func (m Middleware) RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			decision, err := m.Engine.Authorize(r.Context(), principal, key)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorize", slog.String("key", key), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !decision.Allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
