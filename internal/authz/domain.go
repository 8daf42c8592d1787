package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel errors returned by store ports. Any other error from a store is
// treated as an infrastructure failure and propagates unwrapped.
var (
	ErrRoleNotFound  = errors.New("authz: role not found")
	ErrStaffNotFound = errors.New("authz: staff not found")
	ErrLevelNotFound = errors.New("authz: level power not found")
	ErrKeyNotFound   = errors.New("authz: permission key not found")
)

// Scope separates the platform and tenant permission namespaces. Platform and
// tenant roles live in disjoint tables even though the resolution algorithm
// is identical.
type Scope int

const (
	ScopePlatform Scope = iota
	ScopeTenant
)

func (s Scope) String() string {
	if s == ScopePlatform {
		return "platform"
	}
	return "tenant"
}

// PrincipalKind enumerates the five actor categories.
type PrincipalKind int

const (
	KindPlatformSuperAdmin PrincipalKind = iota
	KindPlatformStaff
	KindTenantOwner
	KindTenantStaff
	KindTenantUser
)

func (k PrincipalKind) String() string {
	switch k {
	case KindPlatformSuperAdmin:
		return "SUPER_ADMIN"
	case KindPlatformStaff:
		return "PLATFORM_STAFF"
	case KindTenantOwner:
		return "TENANT"
	case KindTenantStaff:
		return "TENANT_STAFF"
	default:
		return "TENANT_USER"
	}
}

// ParseKind maps the wire representation back to a PrincipalKind. The
// boolean reports whether the value named a known kind.
func ParseKind(s string) (PrincipalKind, bool) {
	switch s {
	case "SUPER_ADMIN":
		return KindPlatformSuperAdmin, true
	case "PLATFORM_STAFF":
		return KindPlatformStaff, true
	case "TENANT":
		return KindTenantOwner, true
	case "TENANT_STAFF":
		return KindTenantStaff, true
	case "TENANT_USER":
		return KindTenantUser, true
	default:
		return 0, false
	}
}

// AuthorityClass partitions principals into those that bypass permission and
// power checks entirely and those compared by resolved power.
type AuthorityClass int

const (
	AuthorityGraded AuthorityClass = iota
	AuthorityUnconditional
)

// Principal is the authenticated actor, built once per request from verified
// session data and immutable afterwards.
type Principal struct {
	ID       uuid.UUID
	Kind     PrincipalKind
	TenantID uuid.UUID // uuid.Nil for platform principals
	RoleID   uuid.UUID // uuid.Nil when no role is assigned

	// PowerHint is the power value carried on the session, if any. It is a
	// display fast-path only; the resolver always re-reads current state
	// before gating a mutation.
	PowerHint *int
}

// Authority classifies the principal. Super admins and tenant owners never
// consult permission grants or the power ceiling.
func (p Principal) Authority() AuthorityClass {
	if p.Kind == KindPlatformSuperAdmin || p.Kind == KindTenantOwner {
		return AuthorityUnconditional
	}
	return AuthorityGraded
}

// Scope returns the permission namespace the principal resolves against.
func (p Principal) Scope() Scope {
	if p.Kind == KindPlatformSuperAdmin || p.Kind == KindPlatformStaff {
		return ScopePlatform
	}
	return ScopeTenant
}

// Decision is the outcome of an authorization or hierarchy check. A deny
// always carries a human-readable reason; it is never an error.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a permissive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denial with the given reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Denyf returns a denial with a formatted reason.
func Denyf(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// DeniedError adapts a deny decision to an error value so services can
// surface it across call boundaries without losing the reason.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// DenyReason returns the human-readable reason, for HTTP error mapping.
func (e *DeniedError) DenyReason() string { return e.Reason }

// Err returns nil for an allow and a *DeniedError for a deny.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// Role is the minimal role shape the core needs for hierarchy gating.
type Role struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Power    int
}

// NamedPowerLevel binds a role name to a power value within a tenant. The
// mapping is append-or-match: once recorded it is never silently rewritten.
type NamedPowerLevel struct {
	TenantID uuid.UUID
	RoleName string
	Power    int
}

// StaffRecord is the minimal staff shape the resolver needs.
type StaffRecord struct {
	ID     uuid.UUID
	Power  int
	Active bool
}

// PermissionStore resolves grants and permission descriptions. FetchGrants
// returns an empty slice, not an error, for a role with zero grants, and
// returns ErrRoleNotFound when the role does not exist.
type PermissionStore interface {
	FetchGrants(ctx context.Context, roleID uuid.UUID, scope Scope) ([]string, error)
	Describe(ctx context.Context, key string, scope Scope) (string, error)
}

// RoleStore looks up roles for hierarchy checks. FindRole returns
// ErrRoleNotFound when the id does not resolve within the scope.
type RoleStore interface {
	FindRole(ctx context.Context, scope Scope, tenantID, roleID uuid.UUID) (Role, error)
	RoleNameExists(ctx context.Context, scope Scope, tenantID uuid.UUID, normalizedName string) (bool, error)
}

// NamedPowerStore looks up the per-tenant role-name to power mapping.
type NamedPowerStore interface {
	FindLevelByName(ctx context.Context, tenantID uuid.UUID, roleName string) (NamedPowerLevel, error)
}

// StaffStore looks up staff records for power resolution.
type StaffStore interface {
	FindStaff(ctx context.Context, scope Scope, staffID uuid.UUID) (StaffRecord, error)
}

// SuperAdminStore looks up the stored power of a platform super admin.
type SuperAdminStore interface {
	SuperAdminPower(ctx context.Context, id uuid.UUID) (int, error)
}

// TenantOwnerRole is the reserved role name backing the implicit per-tenant
// admin principal. It never exists as a stored role row.
const TenantOwnerRole = "TENANT_ADMIN"

var upper = cases.Upper(language.Und)

// NormalizeRoleName uppercases a role name and strips all whitespace so that
// "Class Teacher", "CLASS TEACHER" and " classteacher " collide as duplicates.
func NormalizeRoleName(name string) string {
	name = upper.String(name)
	return strings.Join(strings.Fields(name), "")
}
