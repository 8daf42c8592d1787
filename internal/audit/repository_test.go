package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWhereTimelineEmpty(t *testing.T) {
	clause, args := whereTimeline(TimelineFilters{})
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestWhereTimelineNumbersPlaceholders(t *testing.T) {
	tenantID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clause, args := whereTimeline(TimelineFilters{
		From:     from,
		Action:   "ROLE_CREATED",
		TenantID: tenantID,
	})

	assert.Equal(t, " WHERE occurred_at >= $1 AND action = $2 AND tenant_id = $3", clause)
	assert.Equal(t, []any{from, "ROLE_CREATED", tenantID}, args)
}

func TestWhereTimelineSkipsBlankStrings(t *testing.T) {
	clause, args := whereTimeline(TimelineFilters{ActorType: "   ", Entity: "STAFF"})
	assert.Equal(t, " WHERE entity = $1", clause)
	assert.Equal(t, []any{"STAFF"}, args)
}
