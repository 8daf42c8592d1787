package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineFilters narrows the timeline query. Zero values mean "no filter";
// TenantID is set by the handler from the route scope, never from user input.
type TimelineFilters struct {
	From      time.Time
	To        time.Time
	ActorType string
	Entity    string
	Action    string
	TenantID  uuid.UUID
	Page      int
	PageSize  int
}

// TimelineRow is one persisted audit event as read back for display.
type TimelineRow struct {
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorType  string         `json:"actor_type"`
	TenantID   uuid.UUID      `json:"tenant_id,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging metadata.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
