// Package staff manages platform staff and tenant staff accounts. Staff
// creation and role re-assignment are gated by the authority hierarchy:
// an actor may never install staff above its own power level.
package staff

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/authz"
)

var (
	// ErrNotFound indicates the staff record does not exist.
	ErrNotFound = errors.New("staff: not found")
	// ErrEmailTaken indicates the email is already registered in scope.
	ErrEmailTaken = errors.New("staff: email already registered")
)

// Staff represents a platform or tenant staff member. Platform staff
// reference their role by id; tenant staff reference it by name, with power
// sourced from the tenant's level power registry.
type Staff struct {
	ID           uuid.UUID
	TenantID     uuid.UUID // uuid.Nil for platform staff
	Scope        authz.Scope
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	RoleID       uuid.UUID // platform staff only
	RoleName     string    // tenant staff only
	Power        int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
