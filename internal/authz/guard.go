package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Guard enforces the authority hierarchy across role and staff mutations:
// a principal may only govern entities of strictly lower power, except for
// unconditional-authority principals which skip the ceiling entirely.
//
// Note the comparators differ on purpose. Role mutations deny when the
// requested power reaches the actor's level (p >= m), while staff assignment
// denies only when the actor is below the target (m < p). An actor may
// therefore create staff at exactly its own level but never a role at its
// own level. This asymmetry is preserved from the observed system behavior;
// unifying it is a product decision, not an implementation one.
type Guard struct {
	resolver *Resolver
	roles    RoleStore
	levels   NamedPowerStore
}

// NewGuard constructs a Guard.
func NewGuard(resolver *Resolver, roles RoleStore, levels NamedPowerStore) *Guard {
	return &Guard{resolver: resolver, roles: roles, levels: levels}
}

// GuardRoleCreate validates a role creation request. On an allow in tenant
// scope, the caller must ensure the (tenant, name) power level exists with
// the same power, creating it alongside the role when absent.
func (g *Guard) GuardRoleCreate(ctx context.Context, actor Principal, scope Scope, tenantID uuid.UUID, name string, power int) (Decision, error) {
	normalized := NormalizeRoleName(name)
	if normalized == "" {
		return Deny("role name required"), nil
	}
	if power < 0 {
		return Deny("role power must be a non-negative integer"), nil
	}

	if actor.Authority() != AuthorityUnconditional {
		m, err := g.resolver.ResolvePower(ctx, actor)
		if err != nil {
			return Decision{}, err
		}
		if power >= m {
			return Denyf("not authorized: you can only create roles with power lower than your own (%d)", m), nil
		}
	}

	exists, err := g.roles.RoleNameExists(ctx, scope, tenantID, normalized)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: check role name: %w", err)
	}
	if exists {
		return Denyf("role %q already exists", normalized), nil
	}

	if scope == ScopeTenant {
		level, err := g.levels.FindLevelByName(ctx, tenantID, normalized)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return Decision{}, fmt.Errorf("authz: check level power: %w", err)
		}
		if err == nil && level.Power != power {
			return Denyf("this role name is already registered with power %d", level.Power), nil
		}
	}

	return Allow(), nil
}

// GuardRoleUpdate validates a power change on an existing role. The caller
// resolves the role first; power comparisons only run against
// confirmed-existing entities.
func (g *Guard) GuardRoleUpdate(ctx context.Context, actor Principal, role Role, newPower int) (Decision, error) {
	if newPower < 0 {
		return Deny("role power must be a non-negative integer"), nil
	}
	if actor.Authority() == AuthorityUnconditional {
		return Allow(), nil
	}
	m, err := g.resolver.ResolvePower(ctx, actor)
	if err != nil {
		return Decision{}, err
	}
	if m <= role.Power {
		return Deny("cannot update role of equal or higher authority"), nil
	}
	if newPower >= m {
		return Deny("cannot promote role to your level or higher"), nil
	}
	return Allow(), nil
}

// GuardRoleDelete validates deletion of an existing role. On success the
// caller must invalidate the role's cache entry so future lookups miss
// cleanly instead of serving a set for a role that no longer exists.
func (g *Guard) GuardRoleDelete(ctx context.Context, actor Principal, role Role) (Decision, error) {
	if actor.Authority() == AuthorityUnconditional {
		return Allow(), nil
	}
	m, err := g.resolver.ResolvePower(ctx, actor)
	if err != nil {
		return Decision{}, err
	}
	if m <= role.Power {
		return Deny("cannot delete role of equal or higher authority"), nil
	}
	return Allow(), nil
}

// GuardStaffAssign validates creating or re-assigning staff at the target
// role's power level. The comparator is deliberately non-strict: an actor at
// the target's level may proceed, one below it may not.
func (g *Guard) GuardStaffAssign(ctx context.Context, actor Principal, targetPower int) (Decision, error) {
	if actor.Authority() == AuthorityUnconditional {
		return Allow(), nil
	}
	m, err := g.resolver.ResolvePower(ctx, actor)
	if err != nil {
		return Decision{}, err
	}
	if m < targetPower {
		return Denyf("insufficient power level: your power (%d) is lower than the required power (%d)", m, targetPower), nil
	}
	return Allow(), nil
}
