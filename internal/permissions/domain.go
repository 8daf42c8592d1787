// Package permissions owns the permission catalog and the role grant
// tables for both scopes.
package permissions

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the permission does not exist.
	ErrNotFound = errors.New("permissions: not found")
	// ErrDuplicateKey indicates the permission key is already registered.
	ErrDuplicateKey = errors.New("permissions: key already exists")
)

// Permission represents an atomic grantable capability. Keys are stable,
// uppercase, underscore-delimited strings; Domain is a display grouping tag
// with no enforcement semantics.
type Permission struct {
	ID          uuid.UUID
	Key         string
	Description string
	Domain      string
	CreatedAt   time.Time
}

// Group is a display grouping of permissions by domain tag.
type Group struct {
	Label       string
	Permissions []Permission
}
