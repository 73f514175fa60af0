// Package tenanttest is a behaviour suite shared by every tenant.Directory
// implementation.
package tenanttest

import (
	"context"
	"testing"

	"cashcal/internal/core"
	"cashcal/internal/tenant"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty directory whose seeded settings use today.
type Factory func(t *testing.T, today core.Date) tenant.Directory

var today = core.NewDate(2024, 3, 1)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

func newUser(t *testing.T, dir tenant.Directory, id string) tenant.Store {
	t.Helper()
	created, err := dir.GetOrCreateUser(context.Background(), id)
	require.NoError(t, err)
	require.True(t, created)
	return dir.ForUser(id)
}

// Run exercises the full Directory contract.
func Run(t *testing.T, factory Factory) {
	t.Run("GetOrCreateUserSeedsDefaults", func(t *testing.T) { testSeed(t, factory(t, today)) })
	t.Run("TenantIsolation", func(t *testing.T) { testIsolation(t, factory(t, today)) })
	t.Run("TransactionsCRUD", func(t *testing.T) { testTransactions(t, factory(t, today)) })
	t.Run("CreateTransactionsIsAtomic", func(t *testing.T) { testBatch(t, factory(t, today)) })
	t.Run("CategoryDeleteNullsOut", func(t *testing.T) { testCategoryDelete(t, factory(t, today)) })
	t.Run("ScheduleLifecycle", func(t *testing.T) { testSchedules(t, factory(t, today)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, factory(t, today)) })
}

func testSeed(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	created, err := dir.GetOrCreateUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, created, "second call must not reseed")

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 5)
	names := map[string]core.CategoryKind{}
	for _, c := range cats {
		names[c.Name] = c.Kind
	}
	assert.Equal(t, core.Credit, names["Paycheck"])
	assert.Equal(t, core.Debit, names["Rent"])

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.StartBalance.IsZero())
	assert.Equal(t, today, settings.StartDate)
	assert.Equal(t, "EUR", settings.Currency)

	users, err := dir.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, users)
	assert.NoError(t, dir.Ping(ctx))
}

func testIsolation(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	ada := newUser(t, dir, "ada@example.com")
	bob := newUser(t, dir, "bob@example.com")

	adaCats, err := ada.ListCategories(ctx)
	require.NoError(t, err)
	adaCat := adaCats[0].ID

	tx, err := ada.CreateTransaction(ctx, core.Transaction{
		Date: today, Amount: amt("-12.50"), Description: "lunch", CategoryID: &adaCat, Confirmed: true,
	})
	require.NoError(t, err)
	rule, err := ada.CreateSchedule(ctx, core.ScheduleRule{
		Description: "rent", Amount: amt("-800"),
		Recurrence: core.Recurrence{Frequency: core.Monthly}, StartDate: today,
	})
	require.NoError(t, err)

	_, err = bob.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, tenant.ErrNotFound)
	assert.ErrorIs(t, bob.DeleteTransaction(ctx, tx.ID), tenant.ErrNotFound)
	_, err = bob.UpdateTransaction(ctx, core.Transaction{ID: tx.ID, Date: today, Amount: amt("1")})
	assert.ErrorIs(t, err, tenant.ErrNotFound)
	_, err = bob.GetSchedule(ctx, rule.ID)
	assert.ErrorIs(t, err, tenant.ErrNotFound)
	assert.ErrorIs(t, bob.DeleteSchedule(ctx, rule.ID, true), tenant.ErrNotFound)
	assert.ErrorIs(t, bob.DeleteCategory(ctx, adaCat), tenant.ErrNotFound)

	_, err = bob.CreateTransaction(ctx, core.Transaction{
		Date: today, Amount: amt("1"), CategoryID: &adaCat,
	})
	assert.ErrorIs(t, err, tenant.ErrNotFound, "foreign category must not be referenced")

	bobTxs, err := bob.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Empty(t, bobTxs)
	bobRules, err := bob.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, bobRules)

	got, err := ada.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "lunch", got.Description)
}

func testTransactions(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	for _, day := range []int{10, 1, 20} {
		_, err := store.CreateTransaction(ctx, core.Transaction{
			Date: core.NewDate(2024, 3, day), Amount: amt("10.10"), Description: "t",
		})
		require.NoError(t, err)
	}

	all, err := store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-01", all[0].Date.String())
	assert.Equal(t, "2024-03-20", all[2].Date.String())
	assert.True(t, all[0].Amount.Equal(amt("10.10")))

	window, err := store.ListTransactions(ctx, core.NewDate(2024, 3, 2), core.NewDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Len(t, window, 2)

	tx := all[1]
	tx.Amount = amt("-3.33")
	tx.Confirmed = true
	tx.Description = "updated"
	updated, err := store.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amt("-3.33")))

	got, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.True(t, got.Confirmed)

	require.NoError(t, store.DeleteTransaction(ctx, tx.ID))
	_, err = store.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, tenant.ErrNotFound)

	_, err = store.CreateTransaction(ctx, core.Transaction{Date: today, Amount: decimal.Zero})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func testBatch(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	n, err := store.CreateTransactions(ctx, []core.Transaction{
		{Date: today, Amount: amt("1"), Description: "a"},
		{Date: today, Amount: amt("2"), Description: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.CreateTransactions(ctx, []core.Transaction{
		{Date: today, Amount: amt("3"), Description: "c"},
		{Date: today, Amount: amt("4"), ScheduleID: ptr(424242)},
	})
	require.Error(t, err)

	all, err := store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testCategoryDelete(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	cat, err := store.CreateCategory(ctx, core.Category{Name: "Travel", Kind: core.Debit})
	require.NoError(t, err)
	cat.Name = "Trips"
	cat, err = store.UpdateCategory(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, "Trips", cat.Name)

	tx, err := store.CreateTransaction(ctx, core.Transaction{
		Date: today, Amount: amt("-90"), Description: "train", CategoryID: &cat.ID,
	})
	require.NoError(t, err)
	rule, err := store.CreateSchedule(ctx, core.ScheduleRule{
		Description: "pass", Amount: amt("-30"), CategoryID: &cat.ID,
		Recurrence: core.Recurrence{Frequency: core.Monthly}, StartDate: today,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteCategory(ctx, cat.ID))

	gotTx, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, gotTx.CategoryID)
	gotRule, err := store.GetSchedule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRule.CategoryID)

	assert.ErrorIs(t, store.DeleteCategory(ctx, cat.ID), tenant.ErrNotFound)
}

func testSchedules(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	rule, err := store.CreateSchedule(ctx, core.ScheduleRule{
		Description: "gym", Amount: amt("-25"),
		Recurrence: core.Recurrence{Frequency: core.BiWeekly},
		StartDate:  today, EndDate: core.NewDate(2024, 12, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, rule.Frequency)
	assert.Equal(t, 2, rule.Interval)

	rule.Amount = amt("-27.50")
	rule, err = store.UpdateSchedule(ctx, rule)
	require.NoError(t, err)
	got, err := store.GetSchedule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amt("-27.50")))
	assert.Equal(t, "2024-12-31", got.EndDate.String())

	last, err := store.LastGeneratedDate(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	_, err = store.CreateTransactions(ctx, []core.Transaction{
		{Date: today, Amount: rule.Amount, ScheduleID: &rule.ID, Confirmed: true},
		{Date: core.NewDate(2024, 3, 15), Amount: rule.Amount, ScheduleID: &rule.ID},
		{Date: core.NewDate(2024, 3, 29), Amount: rule.Amount, ScheduleID: &rule.ID},
	})
	require.NoError(t, err)

	last, err = store.LastGeneratedDate(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-29", last.String())

	require.NoError(t, store.DeleteSchedule(ctx, rule.ID, true))
	_, err = store.GetSchedule(ctx, rule.ID)
	assert.ErrorIs(t, err, tenant.ErrNotFound)

	remaining, err := store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Len(t, remaining, 1, "only the confirmed transaction survives")
	assert.True(t, remaining[0].Confirmed)
	assert.Nil(t, remaining[0].ScheduleID)

	keep, err := store.CreateSchedule(ctx, core.ScheduleRule{
		Description: "salary", Amount: amt("2000"),
		Recurrence: core.Recurrence{Frequency: core.Monthly}, StartDate: today,
	})
	require.NoError(t, err)
	_, err = store.CreateTransaction(ctx, core.Transaction{Date: today, Amount: keep.Amount, ScheduleID: &keep.ID})
	require.NoError(t, err)
	require.NoError(t, store.DeleteSchedule(ctx, keep.ID, false))

	remaining, err = store.ListTransactions(ctx, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
	for _, tx := range remaining {
		assert.Nil(t, tx.ScheduleID)
	}

	_, err = store.CreateSchedule(ctx, core.ScheduleRule{
		Description: "bad", Amount: amt("-1"),
		Recurrence: core.Recurrence{Frequency: "hourly"}, StartDate: today,
	})
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)
}

func testSettings(t *testing.T, dir tenant.Directory) {
	ctx := context.Background()
	store := newUser(t, dir, "ada@example.com")

	s, err := store.GetSettings(ctx)
	require.NoError(t, err)
	s.StartBalance = amt("1234.56")
	s.StartDate = core.NewDate(2024, 1, 1)
	s.Currency = "USD"
	s.WeekStart = core.WeekStartSunday
	_, err = store.SaveSettings(ctx, s)
	require.NoError(t, err)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.StartBalance.Equal(amt("1234.56")))
	assert.Equal(t, "2024-01-01", got.StartDate.String())
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, core.WeekStartSunday, got.WeekStart)

	s.Currency = "dollars"
	_, err = store.SaveSettings(ctx, s)
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)

	_, err = dir.ForUser("nobody@example.com").GetSettings(ctx)
	assert.ErrorIs(t, err, tenant.ErrNotFound)
}
