package services

import (
	"context"
	"fmt"
	"log/slog"

	"cashcal/internal/amqp"
	"cashcal/internal/core"
	"cashcal/internal/log"
	"cashcal/internal/tenant"
)

// Publisher sends projection requests to the worker queue.
type Publisher interface {
	PublishProjection(ctx context.Context, msg *amqp.ProjectionRequest) error
}

// LedgerService applies writes to a tenant store, invalidates the user's
// cached calendars and asks the worker to re-project after schedule
// changes.
type LedgerService struct {
	calendars *CalendarService
	publisher Publisher
}

// NewLedgerService creates a ledger service. publisher may be nil, in which
// case projections only run on demand.
func NewLedgerService(calendars *CalendarService, publisher Publisher) *LedgerService {
	return &LedgerService{calendars: calendars, publisher: publisher}
}

func (s *LedgerService) changed(ctx context.Context, userID string) {
	if s.calendars == nil {
		return
	}
	if n := s.calendars.Invalidate(userID); n > 0 {
		slog.DebugContext(ctx, "Invalidated cached calendars", "user_id", userID, "entries", n)
	}
}

// requestProjection publishes after the write succeeded; failures are logged
// because the worker's periodic run catches up anyway.
func (s *LedgerService) requestProjection(ctx context.Context, userID string, scheduleID int64, reason string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping projection request", "user_id", userID)
		return
	}
	msg := amqp.NewProjectionRequest(userID, core.Date{}, reason)
	msg.ScheduleID = scheduleID
	msg.RequestID = log.RequestIDFrom(ctx)
	if err := s.publisher.PublishProjection(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish projection request",
			"user_id", userID, "schedule_id", scheduleID, "error", err)
	}
}

func (s *LedgerService) CreateCategory(ctx context.Context, store tenant.Store, c core.Category) (core.Category, error) {
	created, err := store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, store tenant.Store, c core.Category) (core.Category, error) {
	updated, err := store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	s.changed(ctx, store.UserID())
	return updated, nil
}

func (s *LedgerService) DeleteCategory(ctx context.Context, store tenant.Store, id int64) error {
	if err := store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.changed(ctx, store.UserID())
	return nil
}

func (s *LedgerService) CreateTransaction(ctx context.Context, store tenant.Store, t core.Transaction) (core.Transaction, error) {
	created, err := store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.changed(ctx, store.UserID())
	return created, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, store tenant.Store, t core.Transaction) (core.Transaction, error) {
	updated, err := store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	s.changed(ctx, store.UserID())
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, store tenant.Store, id int64) error {
	if err := store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.changed(ctx, store.UserID())
	return nil
}

func (s *LedgerService) CreateSchedule(ctx context.Context, store tenant.Store, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	created, err := store.CreateSchedule(ctx, r)
	if err != nil {
		return core.ScheduleRule{}, fmt.Errorf("create schedule: %w", err)
	}
	s.changed(ctx, store.UserID())
	s.requestProjection(ctx, store.UserID(), created.ID, amqp.ReasonScheduleChanged)
	return created, nil
}

func (s *LedgerService) UpdateSchedule(ctx context.Context, store tenant.Store, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	updated, err := store.UpdateSchedule(ctx, r)
	if err != nil {
		return core.ScheduleRule{}, fmt.Errorf("update schedule %d: %w", r.ID, err)
	}
	s.changed(ctx, store.UserID())
	s.requestProjection(ctx, store.UserID(), updated.ID, amqp.ReasonScheduleChanged)
	return updated, nil
}

func (s *LedgerService) DeleteSchedule(ctx context.Context, store tenant.Store, id int64, deleteFuture bool) error {
	if err := store.DeleteSchedule(ctx, id, deleteFuture); err != nil {
		return fmt.Errorf("delete schedule %d: %w", id, err)
	}
	s.changed(ctx, store.UserID())
	return nil
}

func (s *LedgerService) SaveSettings(ctx context.Context, store tenant.Store, settings core.Settings) (core.Settings, error) {
	saved, err := store.SaveSettings(ctx, settings)
	if err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.changed(ctx, store.UserID())
	return saved, nil
}
