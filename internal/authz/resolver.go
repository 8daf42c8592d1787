package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Power sentinels. A platform super admin without a stored power row holds
// top authority; a tenant owner without a registered TENANT_ADMIN level
// defaults below that but above any ordinary staff.
const (
	DefaultSuperAdminPower  = 1000
	DefaultTenantOwnerPower = 100
)

// Resolver computes a principal's comparable power level. It is used only
// for hierarchy gating, never for ordinary permission checks, and it always
// re-reads current state: a PowerHint carried on the session is never
// trusted for a decision that gates a mutation, since role edits change
// power over time and a stale hint would open an escalation race.
type Resolver struct {
	roles  RoleStore
	staff  StaffStore
	levels NamedPowerStore
	admins SuperAdminStore
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(roles RoleStore, staff StaffStore, levels NamedPowerStore, admins SuperAdminStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{roles: roles, staff: staff, levels: levels, admins: admins, logger: logger}
}

// ResolvePower returns the principal's current power level. Missing or
// inactive records resolve to 0 (lowest authority, fails closed); store
// failures propagate as errors.
func (r *Resolver) ResolvePower(ctx context.Context, p Principal) (int, error) {
	switch p.Kind {
	case KindPlatformSuperAdmin:
		power, err := r.admins.SuperAdminPower(ctx, p.ID)
		if err != nil {
			if errors.Is(err, ErrStaffNotFound) {
				return DefaultSuperAdminPower, nil
			}
			return 0, fmt.Errorf("authz: resolve super admin power: %w", err)
		}
		return power, nil

	case KindTenantOwner:
		level, err := r.levels.FindLevelByName(ctx, p.TenantID, TenantOwnerRole)
		if err != nil {
			if errors.Is(err, ErrLevelNotFound) {
				return DefaultTenantOwnerPower, nil
			}
			return 0, fmt.Errorf("authz: resolve tenant owner power: %w", err)
		}
		return level.Power, nil

	case KindPlatformStaff, KindTenantStaff:
		staff, err := r.staff.FindStaff(ctx, p.Scope(), p.ID)
		if err != nil {
			if errors.Is(err, ErrStaffNotFound) {
				return 0, nil
			}
			return 0, fmt.Errorf("authz: resolve staff power: %w", err)
		}
		if !staff.Active {
			return 0, nil
		}
		return staff.Power, nil

	default: // KindTenantUser
		if p.RoleID == uuid.Nil {
			return 0, nil
		}
		role, err := r.roles.FindRole(ctx, ScopeTenant, p.TenantID, p.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return 0, nil
			}
			return 0, fmt.Errorf("authz: resolve role power: %w", err)
		}
		return role.Power, nil
	}
}
