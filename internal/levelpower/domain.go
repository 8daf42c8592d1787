// Package levelpower maintains the per-tenant mapping from role name to
// power value. Staff that reference a role by name get their power from
// here, so the mapping is append-or-match: an existing (tenant, name) pair
// is never silently rewritten with a different power.
package levelpower

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the level power entry does not exist.
var ErrNotFound = errors.New("levelpower: not found")

// Level binds a role name to a power value within a tenant.
type Level struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	TenantName string
	RoleName   string
	Power      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PowerMismatchError reports an append-or-match conflict: the pair already
// exists with a different power value.
type PowerMismatchError struct {
	RoleName string
	Existing int
}

func (e *PowerMismatchError) Error() string {
	return fmt.Sprintf("role name %q is already registered with power %d", e.RoleName, e.Existing)
}
