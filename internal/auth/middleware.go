package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}

// Middleware authenticates bearer tokens and installs the principal into
// the request context. It does not authorize anything; that is the
// permission middleware's job.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		principal, claims, err := m.Service.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired),
				errors.Is(err, ErrTokenInvalid),
				errors.Is(err, ErrTokenRevoked):
				httpx.RespondError(w, httpx.ErrUnauthorized)
			default:
				if m.Logger != nil {
					m.Logger.Error("verify token", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
			}
			return
		}

		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		ctx = context.WithValue(ctx, claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
