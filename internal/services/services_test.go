package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcal/internal/amqp"
	"cashcal/internal/cache"
	"cashcal/internal/calendar"
	"cashcal/internal/core"
	"cashcal/internal/tenant"
	"cashcal/internal/tenant/memory"
)

var today = core.NewDate(2024, 1, 1)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ProjectionRequest
	err  error
}

func (p *recordingPublisher) PublishProjection(_ context.Context, msg *amqp.ProjectionRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) sent() []*amqp.ProjectionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ProjectionRequest(nil), p.msgs...)
}

type fixture struct {
	dir       *memory.Directory
	store     tenant.Store
	cache     *cache.LRUCache[calendar.Calendar]
	calendars *CalendarService
	ledger    *LedgerService
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := memory.New().WithClock(func() core.Date { return today })
	_, err := dir.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)

	c := cache.NewLRUCache[calendar.Calendar](16, time.Minute)
	calendars := NewCalendarService(c)
	pub := &recordingPublisher{}
	return &fixture{
		dir:       dir,
		store:     dir.ForUser("alice"),
		cache:     c,
		calendars: calendars,
		ledger:    NewLedgerService(calendars, pub),
		publisher: pub,
	}
}

func monthly(amount string, start core.Date) core.ScheduleRule {
	return core.ScheduleRule{
		Description: "Rent",
		Amount:      decimal.RequireFromString(amount),
		Recurrence:  core.Recurrence{Frequency: core.Monthly, Interval: 1},
		StartDate:   start,
	}
}

func TestCalendarService_BuildsFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	settings.StartBalance = decimal.RequireFromString("1000")
	_, err = f.ledger.SaveSettings(ctx, f.store, settings)
	require.NoError(t, err)

	_, err = f.ledger.CreateSchedule(ctx, f.store, monthly("-400", core.NewDate(2024, 1, 5)))
	require.NoError(t, err)
	_, err = f.ledger.CreateTransaction(ctx, f.store, core.Transaction{
		Date:      core.NewDate(2024, 1, 10),
		Amount:    decimal.RequireFromString("250.50"),
		Confirmed: true,
	})
	require.NoError(t, err)

	cal, err := f.calendars.Calendar(ctx, f.store, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, cal.Days, 31)

	assert.True(t, cal.Days[0].Balance.Equal(decimal.RequireFromString("1000")))
	assert.True(t, cal.Days[4].Net.Equal(decimal.RequireFromString("-400")))
	assert.True(t, cal.Days[30].Balance.Equal(decimal.RequireFromString("850.50")))
}

func TestCalendarService_StartsBalanceAtAnchorBeforeRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CreateTransaction(ctx, f.store, core.Transaction{
		Date:   core.NewDate(2024, 1, 15),
		Amount: decimal.RequireFromString("-20"),
	})
	require.NoError(t, err)

	cal, err := f.calendars.Calendar(ctx, f.store, core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 3))
	require.NoError(t, err)
	require.Len(t, cal.Days, 3)
	assert.True(t, cal.Days[0].Balance.Equal(decimal.RequireFromString("-20")), "got %s", cal.Days[0].Balance)
}

func TestCalendarService_InvalidRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.calendars.Calendar(context.Background(), f.store, core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)

	_, err = f.calendars.Calendar(context.Background(), f.store, core.NewDate(2020, 1, 1), core.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, ErrRangeTooLong)
}

func TestCalendarService_CacheInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 7)

	first, err := f.calendars.Calendar(ctx, f.store, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Size())
	assert.True(t, first.TotalNet().IsZero())

	_, err = f.ledger.CreateTransaction(ctx, f.store, core.Transaction{
		Date:   core.NewDate(2024, 1, 3),
		Amount: decimal.RequireFromString("12.34"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.Size(), "write should drop the user's cached calendars")

	second, err := f.calendars.Calendar(ctx, f.store, start, end)
	require.NoError(t, err)
	assert.True(t, second.TotalNet().Equal(decimal.RequireFromString("12.34")))
}

func TestCalendarService_CacheIsPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.GetOrCreateUser(ctx, "bob")
	require.NoError(t, err)
	bob := f.dir.ForUser("bob")
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 2)

	_, err = f.calendars.Calendar(ctx, f.store, start, end)
	require.NoError(t, err)
	_, err = f.calendars.Calendar(ctx, bob, start, end)
	require.NoError(t, err)
	require.Equal(t, 2, f.cache.Size())

	_, err = f.ledger.CreateTransaction(ctx, bob, core.Transaction{Date: start, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Size())

	stats := f.cache.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
}

func TestLedgerService_PublishesOnScheduleChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rule, err := f.ledger.CreateSchedule(ctx, f.store, monthly("100", today))
	require.NoError(t, err)
	rule.Amount = decimal.RequireFromString("150")
	_, err = f.ledger.UpdateSchedule(ctx, f.store, rule)
	require.NoError(t, err)
	_, err = f.ledger.CreateTransaction(ctx, f.store, core.Transaction{Date: today, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	sent := f.publisher.sent()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.Equal(t, "alice", msg.UserID)
		assert.Equal(t, rule.ID, msg.ScheduleID)
		assert.Equal(t, amqp.ReasonScheduleChanged, msg.Reason)
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("circuit breaker is open")

	rule, err := f.ledger.CreateSchedule(context.Background(), f.store, monthly("100", today))
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)
}

func TestLedgerService_WithoutPublisherOrCache(t *testing.T) {
	f := newFixture(t)
	ledger := NewLedgerService(nil, nil)

	_, err := ledger.CreateSchedule(context.Background(), f.store, monthly("100", today))
	require.NoError(t, err)
}

func TestLedgerService_WrapsStoreErrors(t *testing.T) {
	f := newFixture(t)

	err := f.ledger.DeleteTransaction(context.Background(), f.store, 999)
	assert.ErrorIs(t, err, tenant.ErrNotFound)

	_, err = f.ledger.CreateTransaction(context.Background(), f.store, core.Transaction{Date: today})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestLedgerService_NormalizesLegacyFrequency(t *testing.T) {
	f := newFixture(t)
	rule := monthly("10", today)
	rule.Frequency = core.BiWeekly
	rule.Interval = 0

	created, err := f.ledger.CreateSchedule(context.Background(), f.store, rule)
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, created.Frequency)
	assert.Equal(t, 2, created.Interval)
}

func TestProjectionService_RunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := NewProjectionService(f.calendars, nil, 30*24*time.Hour).WithClock(func() core.Date { return today })

	rule, err := f.ledger.CreateSchedule(ctx, f.store, monthly("-900", core.NewDate(2024, 1, 31)))
	require.NoError(t, err)

	created, err := p.Run(ctx, f.store, core.NewDate(2024, 4, 30))
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	txs, err := f.store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	var dates []string
	for _, tx := range txs {
		require.NotNil(t, tx.ScheduleID)
		assert.Equal(t, rule.ID, *tx.ScheduleID)
		assert.False(t, tx.Confirmed)
		dates = append(dates, tx.Date.String())
	}
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}, dates)

	again, err := p.Run(ctx, f.store, core.NewDate(2024, 4, 30))
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestProjectionService_ResumesAfterLastGenerated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := NewProjectionService(f.calendars, nil, 30*24*time.Hour)

	_, err := f.ledger.CreateSchedule(ctx, f.store, core.ScheduleRule{
		Description: "Coffee",
		Amount:      decimal.RequireFromString("-3.20"),
		Recurrence:  core.Recurrence{Frequency: core.Daily, Interval: 1},
		StartDate:   today,
		EndDate:     core.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)

	n, err := p.Run(ctx, f.store, core.NewDate(2024, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Stops at the schedule's end date.
	n, err = p.Run(ctx, f.store, core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestProjectionService_ProjectedDaysReplaceScheduleEstimates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := NewProjectionService(f.calendars, nil, 30*24*time.Hour)
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31)

	_, err := f.ledger.CreateSchedule(ctx, f.store, monthly("-100", core.NewDate(2024, 1, 15)))
	require.NoError(t, err)
	before, err := f.calendars.Calendar(ctx, f.store, start, end)
	require.NoError(t, err)

	_, err = p.Run(ctx, f.store, end)
	require.NoError(t, err)
	after, err := f.calendars.Calendar(ctx, f.store, start, end)
	require.NoError(t, err)

	assert.True(t, before.TotalNet().Equal(after.TotalNet()), "projection must not double count")
	day := after.Days[14]
	require.Len(t, day.Contributions, 1)
	assert.Equal(t, calendar.KindTransaction, day.Contributions[0].Kind)
	assert.False(t, day.IsActual)
}

func TestProjectionService_SkipsMalformedRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := NewProjectionService(nil, nil, 30*24*time.Hour)

	store := &malformedRuleStore{Store: f.store}
	_, err := f.ledger.CreateSchedule(ctx, f.store, monthly("-1", today))
	require.NoError(t, err)

	n, err := p.Run(ctx, store, core.NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// malformedRuleStore adds a rule with an unknown frequency to the listing.
type malformedRuleStore struct {
	tenant.Store
}

func (s *malformedRuleStore) ListSchedules(ctx context.Context) ([]core.ScheduleRule, error) {
	rules, err := s.Store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	bad := monthly("5", today)
	bad.ID = 4242
	bad.Frequency = "fortnightly"
	return append(rules, bad), nil
}

func TestProjectionService_Request(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.CreateSchedule(ctx, f.store, monthly("-1", today))
	require.NoError(t, err)

	t.Run("queued with publisher", func(t *testing.T) {
		pub := &recordingPublisher{}
		p := NewProjectionService(nil, pub, 60*24*time.Hour).WithClock(func() core.Date { return today })

		res, err := p.Request(ctx, f.store, core.Date{})
		require.NoError(t, err)
		assert.True(t, res.Queued)
		assert.Equal(t, "2024-03-01", res.Until.String())
		require.Len(t, pub.sent(), 1)
		assert.Equal(t, amqp.ReasonManual, pub.sent()[0].Reason)
	})

	t.Run("falls back inline when publish fails", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		p := NewProjectionService(nil, pub, 60*24*time.Hour).WithClock(func() core.Date { return today })

		res, err := p.Request(ctx, f.store, core.NewDate(2024, 2, 1))
		require.NoError(t, err)
		assert.False(t, res.Queued)
		assert.Equal(t, 2, res.Created)
	})

	t.Run("rejects far future", func(t *testing.T) {
		p := NewProjectionService(nil, nil, time.Hour).WithClock(func() core.Date { return today })
		_, err := p.Request(ctx, f.store, core.NewDate(2040, 1, 1))
		assert.ErrorIs(t, err, ErrProjectionTooFar)
	})
}

func TestProjectionService_RunAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, user := range []string{"bob", "carol"} {
		_, err := f.dir.GetOrCreateUser(ctx, user)
		require.NoError(t, err)
		_, err = f.ledger.CreateSchedule(ctx, f.dir.ForUser(user), monthly("-1", today))
		require.NoError(t, err)
	}
	p := NewProjectionService(f.calendars, nil, 30*24*time.Hour)

	total, err := p.RunAll(ctx, f.dir, core.NewDate(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	txs, err := f.store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Empty(t, txs, "alice has no schedules")
}
