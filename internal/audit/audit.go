// Package audit delivers mutation audit events to a write-only sink. Callers
// enqueue and move on; delivery and storage are the worker's concern.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a single audit record. ActorType carries the principal kind's
// wire string as emitted by the caller.
type Event struct {
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorType  string         `json:"actor_type"`
	TenantID   uuid.UUID      `json:"tenant_id,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recorder accepts audit events. Implementations must not block the caller's
// request path on storage.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
