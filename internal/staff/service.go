package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

// RepositoryPort defines data access methods for staff.
type RepositoryPort interface {
	Get(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID) (Staff, error)
	List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Staff, error)
	Create(ctx context.Context, s Staff) (Staff, error)
	Update(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID, params UpdateParams) (Staff, error)
}

// Service handles staff business logic.
type Service struct {
	repo   RepositoryPort
	guard  *authz.Guard
	roles  authz.RoleStore
	levels authz.NamedPowerStore
	sink   audit.Recorder
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, guard *authz.Guard, roles authz.RoleStore, levels authz.NamedPowerStore, sink audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, roles: roles, levels: levels, sink: sink, logger: logger}
}

// CreateInput describes a staff creation request. Platform staff carry a
// RoleID; tenant staff carry a RoleName resolved through the tenant's level
// power registry.
type CreateInput struct {
	Scope    authz.Scope
	TenantID uuid.UUID
	Name     string
	Email    string
	Password string
	RoleID   uuid.UUID
	RoleName string
}

// Create validates the target power against the hierarchy and inserts the
// staff record. The target's power is always derived fresh from the role it
// references, never from the request.
func (s *Service) Create(ctx context.Context, actor authz.Principal, in CreateInput) (Staff, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return Staff{}, fmt.Errorf("%w: name, email and password required", httpx.ErrValidation)
	}

	targetPower, roleName, err := s.targetPower(ctx, in)
	if err != nil {
		return Staff{}, err
	}

	decision, err := s.guard.GuardStaffAssign(ctx, actor, targetPower)
	if err != nil {
		return Staff{}, err
	}
	if !decision.Allowed {
		return Staff{}, decision.Err()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Staff{}, fmt.Errorf("staff: hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, Staff{
		Scope:        in.Scope,
		TenantID:     in.TenantID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		RoleID:       in.RoleID,
		RoleName:     roleName,
		Power:        targetPower,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Staff{}, fmt.Errorf("%w: email %q", httpx.ErrDuplicate, in.Email)
		}
		return Staff{}, err
	}

	s.logger.Info("staff created",
		slog.String("staff_id", created.ID.String()),
		slog.String("scope", in.Scope.String()),
		slog.Int("power", created.Power))
	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  in.TenantID,
		Action:    "STAFF_CREATED",
		Entity:    "STAFF",
		EntityID:  created.ID.String(),
		Meta:      map[string]any{"email": created.Email, "power": created.Power},
	})
	return created, nil
}

// targetPower resolves the power the new staff member would hold. Missing
// platform roles are a hard validation failure; a tenant role name without
// a registered level resolves to 0, the lowest authority.
func (s *Service) targetPower(ctx context.Context, in CreateInput) (int, string, error) {
	if in.Scope == authz.ScopePlatform {
		if in.RoleID == uuid.Nil {
			return 0, "", fmt.Errorf("%w: role id required", httpx.ErrValidation)
		}
		role, err := s.roles.FindRole(ctx, authz.ScopePlatform, uuid.Nil, in.RoleID)
		if err != nil {
			if errors.Is(err, authz.ErrRoleNotFound) {
				return 0, "", httpx.ErrNotFound
			}
			return 0, "", err
		}
		return role.Power, role.Name, nil
	}

	if strings.TrimSpace(in.RoleName) == "" {
		return 0, "", fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	level, err := s.levels.FindLevelByName(ctx, in.TenantID, in.RoleName)
	if err != nil {
		if errors.Is(err, authz.ErrLevelNotFound) {
			return 0, in.RoleName, nil
		}
		return 0, "", err
	}
	return level.Power, level.RoleName, nil
}

// UpdateInput describes a staff update request.
type UpdateInput struct {
	Scope    authz.Scope
	TenantID uuid.UUID
	StaffID  uuid.UUID
	Name     *string
	Password *string
	Active   *bool
	RoleID   *uuid.UUID
	RoleName *string
}

// Update applies changes to a staff record. A role change re-derives the
// target power and re-runs the hierarchy check against it.
func (s *Service) Update(ctx context.Context, actor authz.Principal, in UpdateInput) (Staff, error) {
	if _, err := s.repo.Get(ctx, in.Scope, in.TenantID, in.StaffID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Staff{}, httpx.ErrNotFound
		}
		return Staff{}, err
	}

	params := UpdateParams{Name: in.Name, Active: in.Active}

	if in.RoleID != nil || in.RoleName != nil {
		probe := CreateInput{Scope: in.Scope, TenantID: in.TenantID}
		if in.RoleID != nil {
			probe.RoleID = *in.RoleID
		}
		if in.RoleName != nil {
			probe.RoleName = *in.RoleName
		}
		power, roleName, err := s.targetPower(ctx, probe)
		if err != nil {
			return Staff{}, err
		}
		decision, err := s.guard.GuardStaffAssign(ctx, actor, power)
		if err != nil {
			return Staff{}, err
		}
		if !decision.Allowed {
			return Staff{}, decision.Err()
		}
		params.Power = &power
		params.RoleID = in.RoleID
		if in.Scope == authz.ScopeTenant {
			params.RoleName = &roleName
		}
	}

	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return Staff{}, fmt.Errorf("staff: hash password: %w", err)
		}
		hashed := string(hash)
		params.PasswordHash = &hashed
	}

	updated, err := s.repo.Update(ctx, in.Scope, in.TenantID, in.StaffID, params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Staff{}, httpx.ErrNotFound
		}
		return Staff{}, err
	}

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  in.TenantID,
		Action:    "STAFF_UPDATED",
		Entity:    "STAFF",
		EntityID:  updated.ID.String(),
		Meta:      map[string]any{"power": updated.Power, "active": updated.Active},
	})
	return updated, nil
}

// Get fetches a staff record.
func (s *Service) Get(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID) (Staff, error) {
	member, err := s.repo.Get(ctx, scope, tenantID, staffID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Staff{}, httpx.ErrNotFound
		}
		return Staff{}, err
	}
	return member, nil
}

// List returns staff in the scope, highest power first.
func (s *Service) List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Staff, error) {
	return s.repo.List(ctx, scope, tenantID)
}
