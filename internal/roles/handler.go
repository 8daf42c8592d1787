package roles

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
	"github.com/atlas-saas/atlas/internal/shared"
)

// Handler exposes role management endpoints for one scope. Platform and
// tenant role routers are two instances of the same handler.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    authz.Middleware
	scope    authz.Scope
}

// NewHandler builds a Handler instance for the given scope.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware, scope authz.Scope) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		guard:    guard,
		scope:    scope,
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRoleView))
		r.Get("/", h.list)
		r.Get("/{roleID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRoleCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRoleUpdate))
		r.Put("/{roleID}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRoleDelete))
		r.Delete("/{roleID}", h.remove)
	})
}

// tenantOf returns the tenant the request operates on: the principal's own
// tenant for tenant scope, uuid.Nil for platform scope.
func (h *Handler) tenantOf(p authz.Principal) uuid.UUID {
	if h.scope == authz.ScopeTenant {
		return p.TenantID
	}
	return uuid.Nil
}

type createRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Power       *int   `json:"power" validate:"omitempty,gte=0"`
	TenantName  string `json:"tenant_name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	role, err := h.service.Create(r.Context(), principal, CreateInput{
		Scope:       h.scope,
		TenantID:    h.tenantOf(principal),
		TenantName:  req.TenantName,
		Name:        req.Name,
		Description: req.Description,
		Power:       req.Power,
	})
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	roles, err := h.service.List(r.Context(), h.scope, h.tenantOf(principal))
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	role, err := h.service.Get(r.Context(), h.scope, h.tenantOf(principal), roleID)
	if err != nil {
		h.respondError(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type updateRequest struct {
	Name  *string `json:"name"`
	Power *int    `json:"power" validate:"omitempty,gte=0"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	role, err := h.service.Update(r.Context(), principal, UpdateInput{
		Scope:    h.scope,
		TenantID: h.tenantOf(principal),
		RoleID:   roleID,
		Name:     req.Name,
		Power:    req.Power,
	})
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	if err := h.service.Delete(r.Context(), principal, h.scope, h.tenantOf(principal), roleID); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
