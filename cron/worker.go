package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homeglow/models"
	"homeglow/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Cleaner is the part of the session service the sweep needs.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Worker runs the asynq server that executes session maintenance and hand-off
// tasks, and the scheduler that enqueues the periodic sweep.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

// NewWorker builds the server and scheduler. cleanupSpec is a cron spec or an
// "@every <duration>" expression.
func NewWorker(redisOpt asynq.RedisClientOpt, cleaner Cleaner, cleanupSpec string, logger *zap.Logger) (*Worker, error) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueDefault:     3,
				tasks.QueueMaintenance: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSessionCleanup, HandleSessionCleanup(cleaner, logger))
	mux.HandleFunc(tasks.TypeBookingMaterialized, HandleBookingMaterialized(logger))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(cleanupSpec, tasks.NewSessionCleanupTask()); err != nil {
		return nil, fmt.Errorf("failed to schedule session cleanup %q: %w", cleanupSpec, err)
	}

	return &Worker{srv: srv, scheduler: scheduler, mux: mux, logger: logger}, nil
}

// Start runs the server and scheduler in the background, retrying the server
// start with backoff while Redis is unavailable.
func (w *Worker) Start() {
	go func() {
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Start(w.mux)
			if err == nil {
				w.logger.Info("task worker started")
				return
			}
			w.logger.Warn("failed to start task worker",
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", maxAttempts),
				zap.Error(err),
			)
			if attempts == maxAttempts {
				w.logger.Error("task worker gave up; expired sessions will not be swept")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.logger.Error("task scheduler stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops the scheduler and waits for in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
}

// HandleSessionCleanup sweeps expired sessions. A failed sweep is not retried; the
// next tick runs a fresh one.
func HandleSessionCleanup(cleaner Cleaner, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		removed, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			logger.Error("session cleanup failed", zap.Int("removed", removed), zap.Error(err))
			return err
		}
		logger.Debug("session cleanup finished", zap.Int("removed", removed))
		return nil
	}
}

// HandleBookingMaterialized is the default consumer of booking hand-offs. It only
// records the event; notification and assignment services subscribe to the same
// task type in their own deployments.
func HandleBookingMaterialized(logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.BookingHandoffPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid booking hand-off payload", zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		logger.Info("booking handed off",
			zap.String("booking", p.BookingID),
			zap.String("session", p.SessionID),
			zap.Bool("guest", p.ClientID == nil),
		)
		return nil
	}
}
