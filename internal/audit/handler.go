package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
	"github.com/atlas-saas/atlas/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Handler exposes the audit timeline for one scope.
type Handler struct {
	logger  *slog.Logger
	service *QueryService
	guard   authz.Middleware
	scope   authz.Scope
}

// NewHandler builds a Handler instance for the given scope.
func NewHandler(logger *slog.Logger, service *QueryService, guard authz.Middleware, scope authz.Scope) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, scope: scope}
}

// MountRoutes registers timeline routes. The CSV export is rate limited per
// actor because it scans the table unbounded.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermAuditView))
		r.Get("/", h.timeline)
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(exportRateLimit, exportRateWindow,
				httprate.WithKeyFuncs(exportRateKey)))
			r.Get("/export.csv", h.export)
		})
	})
}

func exportRateKey(r *http.Request) (string, error) {
	if p, ok := authz.PrincipalFromContext(r.Context()); ok {
		return "actor:" + p.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// parseFilters reads query parameters. Tenant callers are pinned to their own
// tenant regardless of what they ask for.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		ActorType: q.Get("actor_type"),
		Entity:    q.Get("entity"),
		Action:    q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, fmt.Errorf("%w: invalid from timestamp", httpx.ErrValidation)
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, fmt.Errorf("%w: invalid to timestamp", httpx.ErrValidation)
		}
		filters.To = t
	}
	if v := q.Get("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filters.PageSize, _ = strconv.Atoi(v)
	}
	if h.scope == authz.ScopeTenant {
		principal, _ := authz.PrincipalFromContext(r.Context())
		filters.TenantID = principal.TenantID
	}
	return filters, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"occurred_at", "actor_id", "actor_type", "tenant_id", "action", "entity", "entity_id", "meta"})
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			if data, err := json.Marshal(row.Meta); err == nil {
				meta = string(data)
			}
		}
		tenant := ""
		if row.TenantID != uuid.Nil {
			tenant = row.TenantID.String()
		}
		_ = cw.Write([]string{
			row.OccurredAt.UTC().Format(time.RFC3339),
			row.ActorID.String(),
			row.ActorType,
			tenant,
			row.Action,
			row.Entity,
			row.EntityID,
			meta,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("write audit csv", slog.Any("error", err))
	}
}
