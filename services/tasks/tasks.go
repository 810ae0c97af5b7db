package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homeglow/models"

	"github.com/hibiken/asynq"
)

const (
	TypeSessionCleanup      = "session:cleanup"
	TypeBookingMaterialized = "booking:materialized"

	QueueDefault     = "default"
	QueueMaintenance = "maintenance"
)

// NewSessionCleanupTask builds the periodic expired-session sweep task.
func NewSessionCleanupTask() *asynq.Task {
	// Unique keeps overlapping ticks from stacking sweeps when one runs long.
	return asynq.NewTask(TypeSessionCleanup, nil,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(time.Minute),
	)
}

// NewBookingMaterializedTask builds the hand-off task for downstream consumers.
func NewBookingMaterializedTask(payload models.BookingHandoffPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookingMaterialized, b,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(10),
		asynq.TaskID("booking:"+payload.BookingID),
	), nil
}

// AsynqPublisher enqueues booking hand-off tasks.
type AsynqPublisher struct {
	client *asynq.Client
}

func NewAsynqPublisher(client *asynq.Client) *AsynqPublisher {
	return &AsynqPublisher{client: client}
}

func (p *AsynqPublisher) PublishMaterialized(ctx context.Context, payload models.BookingHandoffPayload) error {
	task, err := NewBookingMaterializedTask(payload)
	if err != nil {
		return fmt.Errorf("failed to build hand-off task: %w", err)
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue hand-off for booking %s: %w", payload.BookingID, err)
	}
	return nil
}
