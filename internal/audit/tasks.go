package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue audit events are enqueued on.
	QueueDefault = "default"
	// TaskTypeRecord is the task type for persisting an audit event.
	TaskTypeRecord = "audit:record"
)

// NewRecordTask wraps an event in an Asynq task.
func NewRecordTask(ev Event) (*asynq.Task, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Sink enqueues audit events for asynchronous persistence. Enqueue failures
// are logged, not returned: auditing never vetoes the mutation it describes.
type Sink struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewSink constructs a Sink.
func NewSink(client *asynq.Client, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{client: client, logger: logger}
}

// Record enqueues the event.
func (s *Sink) Record(ctx context.Context, ev Event) error {
	task, err := NewRecordTask(ev)
	if err != nil {
		s.logger.Error("marshal audit event", slog.Any("error", err))
		return nil
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		s.logger.Error("enqueue audit event", slog.String("action", ev.Action), slog.Any("error", err))
	}
	return nil
}
