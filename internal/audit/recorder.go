package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRecorder writes audit events into the audit_logs table. It runs on the
// worker side, draining TaskTypeRecord tasks.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a new PGRecorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record persists the event.
func (r *PGRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if ev.Action == "" || ev.Entity == "" {
		return errors.New("audit event requires action and entity")
	}
	metaJSON, err := json.Marshal(ev.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, actor_type, tenant_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, NULLIF($3, '00000000-0000-0000-0000-000000000000'::uuid), $4, $5, $6, $7, COALESCE($8, NOW()))`,
		ev.ActorID, ev.ActorType, ev.TenantID, ev.Action, ev.Entity, ev.EntityID, metaJSON, ev.OccurredAt)
	return err
}

// HandleRecordTask processes TaskTypeRecord tasks.
func (r *PGRecorder) HandleRecordTask(ctx context.Context, t *asynq.Task) error {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return asynq.SkipRetry
	}
	return r.Record(ctx, ev)
}
