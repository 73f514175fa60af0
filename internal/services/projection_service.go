package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cashcal/internal/amqp"
	"cashcal/internal/calendar"
	"cashcal/internal/core"
	"cashcal/internal/log"
	"cashcal/internal/tenant"
)

// MaxProjectionDays bounds how far ahead estimates may be materialised.
const MaxProjectionDays = 5 * 366

var ErrProjectionTooFar = fmt.Errorf("projection end more than %d days ahead", MaxProjectionDays)

// ProjectionResult describes one projection request.
type ProjectionResult struct {
	Until   core.Date `json:"end_date"`
	Created int       `json:"created"`
	Queued  bool      `json:"queued"`
}

// ProjectionService materialises schedule occurrences as unconfirmed
// transactions linked to their schedule.
type ProjectionService struct {
	calendars *CalendarService
	publisher Publisher
	horizon   time.Duration
	today     func() core.Date
}

// NewProjectionService creates a projection service. horizon is the default
// distance from today when no end date is given. With a nil publisher
// requests run inline.
func NewProjectionService(calendars *CalendarService, publisher Publisher, horizon time.Duration) *ProjectionService {
	return &ProjectionService{
		calendars: calendars,
		publisher: publisher,
		horizon:   horizon,
		today:     core.Today,
	}
}

// WithClock replaces the source of today's date.
func (p *ProjectionService) WithClock(today func() core.Date) *ProjectionService {
	p.today = today
	return p
}

// DefaultUntil is today plus the configured horizon.
func (p *ProjectionService) DefaultUntil() core.Date {
	return p.today().AddDays(int(p.horizon / (24 * time.Hour)))
}

func (p *ProjectionService) resolveUntil(until core.Date) (core.Date, error) {
	if until.IsZero() {
		return p.DefaultUntil(), nil
	}
	if p.today().DaysUntil(until) > MaxProjectionDays {
		return core.Date{}, ErrProjectionTooFar
	}
	return until, nil
}

// Request queues a projection when a publisher is configured and runs it
// inline otherwise.
func (p *ProjectionService) Request(ctx context.Context, store tenant.Store, until core.Date) (ProjectionResult, error) {
	until, err := p.resolveUntil(until)
	if err != nil {
		return ProjectionResult{}, err
	}

	if p.publisher != nil {
		msg := amqp.NewProjectionRequest(store.UserID(), until, amqp.ReasonManual)
		msg.RequestID = log.RequestIDFrom(ctx)
		err := p.publisher.PublishProjection(ctx, msg)
		if err == nil {
			return ProjectionResult{Until: until, Queued: true}, nil
		}
		slog.WarnContext(ctx, "Failed to queue projection, running inline",
			"user_id", store.UserID(), "error", err)
	}

	created, err := p.Run(ctx, store, until)
	if err != nil {
		return ProjectionResult{}, err
	}
	return ProjectionResult{Until: until, Created: created}, nil
}

// Run inserts the missing occurrences of every schedule up to until and
// returns how many were created. Each schedule resumes the day after its
// last generated transaction, so repeated runs create nothing new.
// Malformed schedules are logged and skipped.
func (p *ProjectionService) Run(ctx context.Context, store tenant.Store, until core.Date) (int, error) {
	if until.IsZero() {
		until = p.DefaultUntil()
	}
	userID := store.UserID()

	rules, err := store.ListSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("load schedules: %w", err)
	}

	var batch []core.Transaction
	for _, rule := range rules {
		if err := calendar.ValidateRule(rule); err != nil {
			slog.WarnContext(ctx, "Skipping malformed schedule", "user_id", userID, "schedule_id", rule.ID, "error", err)
			continue
		}

		from := rule.StartDate
		last, err := store.LastGeneratedDate(ctx, rule.ID)
		if err != nil {
			return 0, fmt.Errorf("last generated date of schedule %d: %w", rule.ID, err)
		}
		if !last.IsZero() && !last.Before(from.Time) {
			from = last.AddDays(1)
		}

		for d := range calendar.Occurrences(rule, from, until) {
			scheduleID := rule.ID
			batch = append(batch, core.Transaction{
				UserID:      userID,
				Date:        d,
				Amount:      rule.Amount,
				CategoryID:  rule.CategoryID,
				Description: rule.Description,
				Confirmed:   false,
				ScheduleID:  &scheduleID,
			})
		}
	}

	if len(batch) == 0 {
		return 0, nil
	}
	created, err := store.CreateTransactions(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert projected transactions: %w", err)
	}
	if p.calendars != nil {
		p.calendars.Invalidate(userID)
	}

	slog.InfoContext(ctx, "Projection complete",
		"user_id", userID,
		"until", until.String(),
		"schedules", len(rules),
		"created", created)
	return created, nil
}

// RunAll projects every known user up to until, a few users at a time. One
// user's failure does not stop the others; all failures are joined.
func (p *ProjectionService) RunAll(ctx context.Context, dir tenant.Directory, until core.Date) (int, error) {
	users, err := dir.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	created := make([]int, len(users))
	failures := make([]error, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, userID := range users {
		g.Go(func() error {
			n, err := p.Run(gctx, dir.ForUser(userID), until)
			if err != nil {
				failures[i] = fmt.Errorf("user %s: %w", userID, err)
				return nil
			}
			created[i] = n
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range created {
		total += n
	}
	return total, errors.Join(failures...)
}
