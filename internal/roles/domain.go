// Package roles manages platform and tenant roles. The two flavors are
// structurally identical but live in disjoint tables; every mutation is
// gated by the authority hierarchy.
package roles

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/authz"
)

// ErrNotFound indicates the role does not exist within the requested scope.
var ErrNotFound = errors.New("roles: not found")

// DefaultPower is assigned when a creation request omits the power value.
const DefaultPower = 10

// Role represents a platform or tenant role.
type Role struct {
	ID          uuid.UUID
	TenantID    uuid.UUID // uuid.Nil for platform roles
	Scope       authz.Scope
	Name        string
	Description string
	Power       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Core converts to the minimal shape the authorization core works with.
func (r Role) Core() authz.Role {
	return authz.Role{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Power: r.Power}
}
