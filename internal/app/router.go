package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/auth"
	"github.com/atlas-saas/atlas/internal/levelpower"
	"github.com/atlas-saas/atlas/internal/observability"
	"github.com/atlas-saas/atlas/internal/permissions"
	"github.com/atlas-saas/atlas/internal/roles"
	"github.com/atlas-saas/atlas/internal/staff"
	"github.com/atlas-saas/atlas/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware

	PlatformRolesHandler *roles.Handler
	TenantRolesHandler   *roles.Handler

	PlatformStaffHandler *staff.Handler
	TenantStaffHandler   *staff.Handler

	PlatformPermissionsHandler *permissions.Handler
	TenantPermissionsHandler   *permissions.Handler

	LevelPowerHandler *levelpower.Handler

	PlatformAuditHandler *audit.Handler
	TenantAuditHandler   *audit.Handler

	JobsHandler *jobs.Handler
	Metrics     *observability.Metrics
}

// NewRouter constructs the chi.Router with Atlas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(LoginRateLimiter())
			params.AuthHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		r.Route("/platform", func(r chi.Router) {
			r.Route("/roles", params.PlatformRolesHandler.MountRoutes)
			r.Route("/staff", params.PlatformStaffHandler.MountRoutes)
			r.Route("/permissions", params.PlatformPermissionsHandler.MountRoutes)
			r.Route("/audit", params.PlatformAuditHandler.MountRoutes)
		})
		r.Route("/tenant", func(r chi.Router) {
			r.Route("/roles", params.TenantRolesHandler.MountRoutes)
			r.Route("/staff", params.TenantStaffHandler.MountRoutes)
			r.Route("/permissions", params.TenantPermissionsHandler.MountRoutes)
			r.Route("/level-powers", params.LevelPowerHandler.MountRoutes)
			r.Route("/audit", params.TenantAuditHandler.MountRoutes)
		})
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
