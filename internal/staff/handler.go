package staff

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

// Handler exposes staff management endpoints for one scope.
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

// MountRoutes registers staff routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermStaffView))
		r.Get("/", h.list)
		r.Get("/{staffID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermStaffCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermStaffUpdate))
		r.Put("/{staffID}", h.update)
	})
}

func (h *Handler) tenantOf(p authz.Principal) uuid.UUID {
	if h.scope == authz.ScopeTenant {
		return p.TenantID
	}
	return uuid.Nil
}

type createRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	RoleID   string `json:"role_id" validate:"omitempty,uuid"`
	RoleName string `json:"role_name"`
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

	roleID := uuid.Nil
	if req.RoleID != "" {
		roleID, _ = uuid.Parse(req.RoleID)
	}

	member, err := h.service.Create(r.Context(), principal, CreateInput{
		Scope:    h.scope,
		TenantID: h.tenantOf(principal),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		RoleID:   roleID,
		RoleName: req.RoleName,
	})
	if err != nil {
		h.respondError(w, "create staff", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, member)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	members, err := h.service.List(r.Context(), h.scope, h.tenantOf(principal))
	if err != nil {
		h.respondError(w, "list staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	staffID, err := uuid.Parse(chi.URLParam(r, "staffID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid staff id", httpx.ErrValidation))
		return
	}
	member, err := h.service.Get(r.Context(), h.scope, h.tenantOf(principal), staffID)
	if err != nil {
		h.respondError(w, "get staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

type updateRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	Active   *bool   `json:"active"`
	RoleID   *string `json:"role_id" validate:"omitempty,uuid"`
	RoleName *string `json:"role_name"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	staffID, err := uuid.Parse(chi.URLParam(r, "staffID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid staff id", httpx.ErrValidation))
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

	in := UpdateInput{
		Scope:    h.scope,
		TenantID: h.tenantOf(principal),
		StaffID:  staffID,
		Name:     req.Name,
		Password: req.Password,
		Active:   req.Active,
		RoleName: req.RoleName,
	}
	if req.RoleID != nil {
		id, parseErr := uuid.Parse(*req.RoleID)
		if parseErr != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid role id", httpx.ErrValidation))
			return
		}
		in.RoleID = &id
	}

	member, err := h.service.Update(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, "update staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
