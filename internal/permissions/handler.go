package permissions

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

// Handler exposes catalog and grant endpoints for one scope.
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

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermPermissionView))
		r.Get("/", h.list)
		r.Get("/grouped", h.listGrouped)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermPermissionAssign))
		r.Post("/", h.create)
		r.Put("/{permissionID}", h.updateMeta)
		r.Post("/roles/{roleID}", h.assign)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.List(r.Context(), h.scope)
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) listGrouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGrouped(r.Context(), h.scope)
	if err != nil {
		h.respondError(w, "list grouped permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

type createRequest struct {
	Key         string `json:"key" validate:"required"`
	Description string `json:"description" validate:"required"`
	Domain      string `json:"domain"`
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
	perm, err := h.service.Create(r.Context(), principal, h.scope, req.Key, req.Description, req.Domain)
	if err != nil {
		h.respondError(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

type updateMetaRequest struct {
	Description string `json:"description" validate:"required"`
	Domain      string `json:"domain"`
}

func (h *Handler) updateMeta(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "permissionID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid permission id", httpx.ErrValidation))
		return
	}
	var req updateMetaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	perm, err := h.service.UpdateMeta(r.Context(), principal, h.scope, id, req.Description, req.Domain)
	if err != nil {
		h.respondError(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

type assignRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"required,dive,uuid"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.PermissionIDs))
	for _, raw := range req.PermissionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid permission id %q", httpx.ErrValidation, raw))
			return
		}
		ids = append(ids, id)
	}

	tenantID := uuid.Nil
	if h.scope == authz.ScopeTenant {
		tenantID = principal.TenantID
	}
	if err := h.service.AssignToRole(r.Context(), principal, h.scope, tenantID, roleID, ids); err != nil {
		h.respondError(w, "assign permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
