package levelpower

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

// Handler exposes level power management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		guard:    guard,
	}
}

// MountRoutes registers level power routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermLevelPowerView))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermLevelPowerManage))
		r.Post("/", h.create)
		r.Put("/{levelID}", h.update)
		r.Delete("/{levelID}", h.remove)
	})
}

type createRequest struct {
	TenantID   string `json:"tenant_id" validate:"required,uuid"`
	TenantName string `json:"tenant_name"`
	RoleName   string `json:"role_name" validate:"required"`
	Power      int    `json:"power" validate:"gte=0"`
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
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid tenant id", httpx.ErrValidation))
		return
	}

	level, err := h.service.Create(r.Context(), principal, CreateInput{
		TenantID:   tenantID,
		TenantName: req.TenantName,
		RoleName:   req.RoleName,
		Power:      req.Power,
	})
	if err != nil {
		h.respondError(w, "create level power", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, level)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID := uuid.Nil
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid tenant id", httpx.ErrValidation))
			return
		}
		tenantID = parsed
	}
	levels, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "list level powers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}

type updateRequest struct {
	RoleName *string `json:"role_name"`
	Power    *int    `json:"power" validate:"omitempty,gte=0"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "levelID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid level id", httpx.ErrValidation))
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
	level, err := h.service.Update(r.Context(), principal, id, req.RoleName, req.Power)
	if err != nil {
		h.respondError(w, "update level power", err)
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "levelID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid level id", httpx.ErrValidation))
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.respondError(w, "delete level power", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
