// Package services orchestrates stores, the calendar aggregator, the cache
// and the projection queue for the HTTP handlers and the worker.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cashcal/internal/cache"
	"cashcal/internal/calendar"
	"cashcal/internal/core"
	"cashcal/internal/log"
	"cashcal/internal/tenant"
)

// MaxRangeDays bounds a single calendar request.
const MaxRangeDays = 3 * 366

var ErrRangeTooLong = fmt.Errorf("range longer than %d days", MaxRangeDays)

// CalendarService builds calendars from a tenant store and caches them per
// user and range.
type CalendarService struct {
	cache cache.Cache[calendar.Calendar]
	logs  *log.StructuredLogger
}

// NewCalendarService creates a service; a nil cache disables caching.
func NewCalendarService(c cache.Cache[calendar.Calendar]) *CalendarService {
	return &CalendarService{
		cache: c,
		logs:  log.NewStructuredLogger(log.FromContext(context.Background()).WithComponent(log.ComponentCalendar)),
	}
}

func calendarKey(userID string, start, end core.Date) string {
	return userID + "|" + start.String() + "|" + end.String()
}

// Calendar returns the aggregated days in [start, end] for the store's user.
func (s *CalendarService) Calendar(ctx context.Context, store tenant.Store, start, end core.Date) (calendar.Calendar, error) {
	if start.After(end.Time) {
		return calendar.Calendar{}, &calendar.InvalidRangeError{Start: start, End: end}
	}
	if start.DaysUntil(end) >= MaxRangeDays {
		return calendar.Calendar{}, ErrRangeTooLong
	}

	userID := store.UserID()
	key := calendarKey(userID, start, end)
	if s.cache != nil {
		if cal, ok := s.cache.Get(key); ok {
			s.logs.LogCalendarBuilt(ctx, userID, start.String(), end.String(), len(cal.Days), true)
			return cal, nil
		}
	}

	settings, err := store.GetSettings(ctx)
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return calendar.Calendar{}, fmt.Errorf("load settings: %w", err)
	}
	opts := calendar.OptionsFromSettings(settings)

	from := start
	if !opts.AnchorDate.IsZero() && opts.AnchorDate.Before(from.Time) {
		from = opts.AnchorDate
	}

	var (
		transactions []core.Transaction
		rules        []core.ScheduleRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = store.ListTransactions(gctx, from, end)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = store.ListSchedules(gctx)
		if err != nil {
			return fmt.Errorf("load schedules: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return calendar.Calendar{}, err
	}

	cal, err := calendar.Aggregate(userID, start, end, transactions, rules, opts)
	if err != nil {
		return calendar.Calendar{}, err
	}
	for _, ruleErr := range cal.RuleErrors {
		slog.WarnContext(ctx, "Skipping malformed schedule", log.FieldUserID, userID, log.FieldError, ruleErr)
	}

	if s.cache != nil {
		s.cache.Set(key, cal)
	}
	s.logs.LogCalendarBuilt(ctx, userID, start.String(), end.String(), len(cal.Days), false)
	return cal, nil
}

// Invalidate drops every cached calendar of userID.
func (s *CalendarService) Invalidate(userID string) int {
	if s.cache == nil {
		return 0
	}
	return s.cache.DeletePrefix(userID + "|")
}
