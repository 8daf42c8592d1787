package roles

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/levelpower"
	"github.com/atlas-saas/atlas/internal/platform/db"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Get(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) (Role, error)
	List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Role, error)
	Create(ctx context.Context, role Role, tenantName string) (Role, error)
	Update(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID, name *string, power *int) (Role, error)
	Delete(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) error
}

// Service handles role business logic. Every mutation runs through the
// hierarchy guard first, and every path that removes a role or changes its
// grant-relevant state invalidates the permission cache through the single
// invalidateRole entry point.
type Service struct {
	repo   RepositoryPort
	guard  *authz.Guard
	cache  *authz.Cache
	sink   audit.Recorder
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, guard *authz.Guard, cache *authz.Cache, sink audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, cache: cache, sink: sink, logger: logger}
}

// CreateInput describes a role creation request.
type CreateInput struct {
	Scope       authz.Scope
	TenantID    uuid.UUID
	TenantName  string
	Name        string
	Description string
	Power       *int
}

// Create validates the request against the hierarchy and inserts the role,
// registering the tenant's level power entry alongside it when needed.
func (s *Service) Create(ctx context.Context, actor authz.Principal, in CreateInput) (Role, error) {
	power := DefaultPower
	if in.Power != nil {
		power = *in.Power
	}

	decision, err := s.guard.GuardRoleCreate(ctx, actor, in.Scope, in.TenantID, in.Name, power)
	if err != nil {
		return Role{}, err
	}
	if !decision.Allowed {
		return Role{}, decision.Err()
	}

	role := Role{
		Scope:       in.Scope,
		TenantID:    in.TenantID,
		Name:        strings.ToUpper(strings.TrimSpace(in.Name)),
		Description: strings.TrimSpace(in.Description),
		Power:       power,
	}
	tenantName := in.TenantName
	if tenantName == "" {
		tenantName = "Unknown"
	}

	created, err := s.repo.Create(ctx, role, tenantName)
	if err != nil {
		var mismatch *levelpower.PowerMismatchError
		switch {
		case errors.As(err, &mismatch):
			return Role{}, authz.Deny(mismatch.Error()).Err()
		case db.IsUniqueViolation(err, ""):
			return Role{}, authz.Denyf("role %q already exists", role.Name).Err()
		}
		return Role{}, err
	}

	s.logger.Info("role created",
		slog.String("role_id", created.ID.String()),
		slog.String("name", created.Name),
		slog.Int("power", created.Power))
	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  in.TenantID,
		Action:    actionFor(in.Scope, "ROLE_CREATED"),
		Entity:    entityFor(in.Scope),
		EntityID:  created.ID.String(),
		Meta:      map[string]any{"name": created.Name, "power": created.Power},
	})
	return created, nil
}

// UpdateInput describes a role update request.
type UpdateInput struct {
	Scope    authz.Scope
	TenantID uuid.UUID
	RoleID   uuid.UUID
	Name     *string
	Power    *int
}

// Update applies a name/power change after hierarchy validation against the
// confirmed-existing role.
func (s *Service) Update(ctx context.Context, actor authz.Principal, in UpdateInput) (Role, error) {
	current, err := s.repo.Get(ctx, in.Scope, in.TenantID, in.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}

	newPower := current.Power
	if in.Power != nil {
		newPower = *in.Power
	}
	decision, err := s.guard.GuardRoleUpdate(ctx, actor, current.Core(), newPower)
	if err != nil {
		return Role{}, err
	}
	if !decision.Allowed {
		return Role{}, decision.Err()
	}

	updated, err := s.repo.Update(ctx, in.Scope, in.TenantID, in.RoleID, in.Name, in.Power)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	s.invalidateRole(updated.ID)

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  in.TenantID,
		Action:    actionFor(in.Scope, "ROLE_UPDATED"),
		Entity:    entityFor(in.Scope),
		EntityID:  updated.ID.String(),
		Meta:      map[string]any{"name": updated.Name, "power": updated.Power},
	})
	return updated, nil
}

// Delete removes a role after hierarchy validation and invalidates its
// cache slot so future permission lookups miss cleanly.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, scope authz.Scope, tenantID, roleID uuid.UUID) error {
	current, err := s.repo.Get(ctx, scope, tenantID, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return httpx.ErrNotFound
		}
		return err
	}

	decision, err := s.guard.GuardRoleDelete(ctx, actor, current.Core())
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return decision.Err()
	}

	if err := s.repo.Delete(ctx, scope, tenantID, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return httpx.ErrNotFound
		}
		return err
	}
	s.invalidateRole(roleID)

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  tenantID,
		Action:    actionFor(scope, "ROLE_DELETED"),
		Entity:    entityFor(scope),
		EntityID:  roleID.String(),
	})
	return nil
}

// Get fetches a role by id.
func (s *Service) Get(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) (Role, error) {
	role, err := s.repo.Get(ctx, scope, tenantID, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// List returns roles in the scope, highest power first.
func (s *Service) List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Role, error) {
	return s.repo.List(ctx, scope, tenantID)
}

func (s *Service) invalidateRole(roleID uuid.UUID) {
	s.cache.Invalidate(roleID)
}

func actionFor(scope authz.Scope, suffix string) string {
	if scope == authz.ScopePlatform {
		return "PLATFORM_" + suffix
	}
	return "TENANT_" + suffix
}

func entityFor(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "PLATFORM_ROLE"
	}
	return "TENANT_ROLE"
}
