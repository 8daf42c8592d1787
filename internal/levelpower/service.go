package levelpower

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

// RepositoryPort defines data access methods for level powers.
type RepositoryPort interface {
	Ensure(ctx context.Context, tenantID uuid.UUID, tenantName, roleName string, power int) (Level, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Level, error)
	Update(ctx context.Context, id uuid.UUID, roleName *string, power *int) (Level, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service handles level power business logic.
type Service struct {
	repo   RepositoryPort
	sink   audit.Recorder
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, sink audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sink: sink, logger: logger}
}

// CreateInput describes a level power registration.
type CreateInput struct {
	TenantID   uuid.UUID `validate:"required"`
	TenantName string
	RoleName   string `validate:"required"`
	Power      int    `validate:"gte=0"`
}

// Create registers a level power entry. Re-registering an existing pair with
// the same power is idempotent; a different power is refused.
func (s *Service) Create(ctx context.Context, actor authz.Principal, in CreateInput) (Level, error) {
	if in.TenantID == uuid.Nil || authz.NormalizeRoleName(in.RoleName) == "" {
		return Level{}, fmt.Errorf("%w: tenant id and role name required", httpx.ErrValidation)
	}
	if in.TenantName == "" {
		in.TenantName = "Unknown"
	}

	level, err := s.repo.Ensure(ctx, in.TenantID, in.TenantName, in.RoleName, in.Power)
	if err != nil {
		var mismatch *PowerMismatchError
		if errors.As(err, &mismatch) {
			return Level{}, authz.Deny(mismatch.Error()).Err()
		}
		return Level{}, err
	}

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  in.TenantID,
		Action:    "LEVEL_POWER_CREATED",
		Entity:    "LEVEL_POWER",
		EntityID:  level.ID.String(),
		Meta:      map[string]any{"role_name": level.RoleName, "power": level.Power},
	})
	return level, nil
}

// List returns level powers, optionally scoped to a tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Level, error) {
	return s.repo.List(ctx, tenantID)
}

// Update changes an entry's role name or power.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id uuid.UUID, roleName *string, power *int) (Level, error) {
	if power != nil && *power < 0 {
		return Level{}, fmt.Errorf("%w: power must be non-negative", httpx.ErrValidation)
	}
	level, err := s.repo.Update(ctx, id, roleName, power)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Level{}, httpx.ErrNotFound
		}
		return Level{}, err
	}
	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  level.TenantID,
		Action:    "LEVEL_POWER_UPDATED",
		Entity:    "LEVEL_POWER",
		EntityID:  level.ID.String(),
		Meta:      map[string]any{"role_name": level.RoleName, "power": level.Power},
	})
	return level, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return httpx.ErrNotFound
		}
		return err
	}
	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		Action:    "LEVEL_POWER_DELETED",
		Entity:    "LEVEL_POWER",
		EntityID:  id.String(),
	})
	return nil
}
