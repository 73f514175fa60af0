// Package worker materialises schedule projections off the request path.
package worker

import (
	"context"
	"fmt"
	"time"

	"cashcal/internal/amqp"
	"cashcal/internal/log"
	"cashcal/internal/services"
	"cashcal/internal/tenant"
)

// ProjectionWorker handles queued projection requests and periodically
// catches every user up to the default horizon, in case messages were lost.
type ProjectionWorker struct {
	dir         tenant.Directory
	projections *services.ProjectionService
	logger      *log.Logger
}

func NewProjectionWorker(dir tenant.Directory, projections *services.ProjectionService, logger *log.Logger) *ProjectionWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &ProjectionWorker{
		dir:         dir,
		projections: projections,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleProjection processes a single projection request from AMQP.
func (w *ProjectionWorker) HandleProjection(ctx context.Context, msg *amqp.ProjectionRequest) error {
	if msg.RequestID != "" {
		ctx = log.WithRequestID(ctx, msg.RequestID)
	}
	w.logger.InfoContext(ctx, "Processing projection request",
		log.FieldUserID, msg.UserID,
		"reason", msg.Reason,
		log.FieldScheduleID, msg.ScheduleID)

	created, err := w.projections.Run(ctx, w.dir.ForUser(msg.UserID), msg.Until)
	if err != nil {
		return fmt.Errorf("project schedules of %s: %w", msg.UserID, err)
	}

	w.logger.InfoContext(ctx, "Projection request done",
		log.FieldUserID, msg.UserID,
		log.FieldCreated, created,
		"queued_at", msg.Timestamp.Format(time.RFC3339))
	return nil
}

// CatchUp projects every user up to the default horizon.
func (w *ProjectionWorker) CatchUp(ctx context.Context) error {
	created, err := w.projections.RunAll(ctx, w.dir, w.projections.DefaultUntil())
	if err != nil {
		w.logger.ErrorContext(ctx, "Projection catch-up had failures", log.FieldCreated, created, log.FieldError, err)
		return err
	}
	w.logger.InfoContext(ctx, "Projection catch-up completed", log.FieldCreated, created)
	return nil
}

// RunPeriodic calls CatchUp immediately and then every interval until ctx
// ends. Failed rounds are logged and retried on the next tick.
func (w *ProjectionWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	_ = w.CatchUp(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = w.CatchUp(ctx)
		}
	}
}
