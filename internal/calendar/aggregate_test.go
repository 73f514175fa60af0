package calendar

import (
	"errors"
	"testing"

	"cashcal/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func monthlyRule(id int64, day int, amount string, start core.Date) core.ScheduleRule {
	return core.ScheduleRule{
		ID:          id,
		Description: "rule",
		Amount:      amt(amount),
		Recurrence:  core.Recurrence{Frequency: core.Monthly, Interval: 1, DayOfMonth: day},
		StartDate:   start,
	}
}

func TestAggregate_InvalidRange(t *testing.T) {
	_, err := Aggregate("u", d(2024, 3, 2), d(2024, 3, 1), nil, nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "2024-03-02", rangeErr.Start.String())
}

func TestAggregate_OneEntryPerDayAscending(t *testing.T) {
	tests := []struct {
		name       string
		start, end core.Date
		want       int
	}{
		{"single day", d(2024, 5, 5), d(2024, 5, 5), 1},
		{"leap february", d(2024, 2, 1), d(2024, 2, 29), 29},
		{"across year end", d(2023, 12, 30), d(2024, 1, 2), 4},
		{"full leap year", d(2024, 1, 1), d(2024, 12, 31), 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := Aggregate("u", tt.start, tt.end, nil, nil, Options{})
			require.NoError(t, err)
			require.Len(t, cal.Days, tt.want)
			assert.Equal(t, tt.start, cal.Days[0].Date)
			assert.Equal(t, tt.end, cal.Days[len(cal.Days)-1].Date)
			for i := 1; i < len(cal.Days); i++ {
				assert.Equal(t, cal.Days[i-1].Date.AddDays(1), cal.Days[i].Date)
			}
			for _, day := range cal.Days {
				assert.Empty(t, day.Contributions)
				assert.NotNil(t, day.Contributions)
				assert.True(t, day.Net.IsZero())
			}
		})
	}
}

func TestAggregate_MonthlyDay31ClampsToFebruary(t *testing.T) {
	rule := monthlyRule(1, 31, "-100", d(2024, 1, 31))
	cal, err := Aggregate("u", d(2024, 2, 1), d(2024, 2, 29), nil, []core.ScheduleRule{rule}, Options{})
	require.NoError(t, err)
	require.Len(t, cal.Days, 29)

	for _, day := range cal.Days {
		if day.Date.Day() == 29 {
			require.Len(t, day.Contributions, 1)
			assert.Equal(t, KindSchedule, day.Contributions[0].Kind)
			assert.True(t, day.Net.Equal(amt("-100")), "net = %s", day.Net)
			assert.False(t, day.IsActual)
			continue
		}
		assert.True(t, day.Net.IsZero(), "day %s net = %s", day.Date, day.Net)
	}
}

func TestAggregate_SameDayTransactions(t *testing.T) {
	txs := []core.Transaction{
		{ID: 1, Date: d(2024, 6, 10), Amount: amt("500"), Confirmed: true},
		{ID: 2, Date: d(2024, 6, 10), Amount: amt("-200"), Confirmed: true},
	}
	cal, err := Aggregate("u", d(2024, 6, 10), d(2024, 6, 10), txs, nil, Options{})
	require.NoError(t, err)
	require.Len(t, cal.Days, 1)

	day := cal.Days[0]
	assert.Len(t, day.Contributions, 2)
	assert.True(t, day.Net.Equal(amt("300")))
	assert.True(t, day.Credits.Equal(amt("500")))
	assert.True(t, day.Debits.Equal(amt("-200")))
	assert.True(t, day.IsActual)
	assert.Equal(t, int64(1), day.Contributions[0].TransactionID)
	assert.Equal(t, int64(2), day.Contributions[1].TransactionID)
}

func TestAggregate_Conservation(t *testing.T) {
	start, end := d(2024, 1, 1), d(2024, 3, 31)
	txs := []core.Transaction{
		{ID: 1, Date: d(2023, 12, 31), Amount: amt("1000")}, // outside range
		{ID: 2, Date: d(2024, 1, 15), Amount: amt("12.34")},
		{ID: 3, Date: d(2024, 2, 29), Amount: amt("-0.01")},
		{ID: 4, Date: d(2024, 3, 31), Amount: amt("0.1")},
		{ID: 5, Date: d(2024, 4, 1), Amount: amt("99")}, // outside range
	}
	rules := []core.ScheduleRule{
		monthlyRule(1, 31, "-100", d(2023, 10, 31)),
		{
			ID: 2, Description: "coffee", Amount: amt("-0.10"),
			Recurrence: core.Recurrence{Frequency: core.Daily, Interval: 3},
			StartDate:  d(2024, 1, 2),
		},
	}

	cal, err := Aggregate("u", start, end, txs, rules, Options{})
	require.NoError(t, err)

	want := amt("12.34").Add(amt("-0.01")).Add(amt("0.1"))
	for _, r := range rules {
		for range Occurrences(r, start, end) {
			want = want.Add(r.Amount)
		}
	}

	sum := decimal.Zero
	for _, day := range cal.Days {
		for _, c := range day.Contributions {
			sum = sum.Add(c.Amount)
		}
	}
	assert.True(t, cal.TotalNet().Equal(want), "total %s want %s", cal.TotalNet(), want)
	assert.True(t, sum.Equal(want))
	assert.True(t, cal.Days[len(cal.Days)-1].Balance.Equal(want))
}

func TestAggregate_Idempotent(t *testing.T) {
	txs := []core.Transaction{{ID: 1, Date: d(2024, 1, 5), Amount: amt("10")}}
	rules := []core.ScheduleRule{monthlyRule(7, 5, "-3.33", d(2024, 1, 1))}
	opts := Options{AnchorDate: d(2024, 1, 1), AnchorBalance: amt("50")}

	first, err := Aggregate("u", d(2024, 1, 1), d(2024, 2, 29), txs, rules, opts)
	require.NoError(t, err)
	second, err := Aggregate("u", d(2024, 1, 1), d(2024, 2, 29), txs, rules, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, txs, 1)
	assert.Equal(t, 5, rules[0].DayOfMonth)
}

func TestAggregate_MalformedRuleIsRecorded(t *testing.T) {
	bad := core.ScheduleRule{
		ID: 9, Description: "broken", Amount: amt("-1"),
		Recurrence: core.Recurrence{Frequency: "hourly"},
		StartDate:  d(2024, 1, 1),
	}
	good := monthlyRule(1, 10, "-5", d(2024, 1, 1))

	cal, err := Aggregate("u", d(2024, 1, 1), d(2024, 1, 31), nil, []core.ScheduleRule{bad, good}, Options{})
	require.NoError(t, err)
	require.Len(t, cal.RuleErrors, 1)

	var ruleErr *InvalidScheduleRuleError
	require.True(t, errors.As(cal.RuleErrors[0], &ruleErr))
	assert.Equal(t, int64(9), ruleErr.RuleID)
	assert.ErrorIs(t, cal.RuleErrors[0], ErrInvalidScheduleRule)
	assert.ErrorIs(t, cal.RuleErrors[0], core.ErrInvalidFrequency)
	assert.True(t, cal.TotalNet().Equal(amt("-5")))
}

func TestAggregate_RuleWithoutOccurrencesInRange(t *testing.T) {
	rule := monthlyRule(1, 15, "-5", d(2025, 1, 1))
	cal, err := Aggregate("u", d(2024, 1, 1), d(2024, 1, 31), nil, []core.ScheduleRule{rule}, Options{})
	require.NoError(t, err)
	assert.Empty(t, cal.RuleErrors)
	assert.True(t, cal.TotalNet().IsZero())
}

func TestAggregate_ContributionOrder(t *testing.T) {
	day := d(2024, 1, 10)
	txs := []core.Transaction{
		{ID: 2, Date: day, Amount: amt("1")},
		{ID: 1, Date: day, Amount: amt("2")},
	}
	rules := []core.ScheduleRule{
		monthlyRule(20, 10, "-3", day),
		monthlyRule(10, 10, "-4", day),
	}
	cal, err := Aggregate("u", day, day, txs, rules, Options{})
	require.NoError(t, err)

	var got []string
	for _, c := range cal.Days[0].Contributions {
		got = append(got, string(c.Kind)+":"+c.Amount.String())
	}
	assert.Equal(t, []string{"transaction:1", "transaction:2", "schedule:-3", "schedule:-4"}, got)
}

func TestAggregate_LinkedTransactionSuppressesOccurrence(t *testing.T) {
	scheduleID := int64(3)
	rule := monthlyRule(scheduleID, 1, "-700", d(2024, 1, 1))
	txs := []core.Transaction{
		{ID: 11, Date: d(2024, 1, 1), Amount: amt("-700"), Confirmed: true, ScheduleID: &scheduleID},
		{ID: 12, Date: d(2024, 2, 1), Amount: amt("-650"), ScheduleID: &scheduleID},
	}
	cal, err := Aggregate("u", d(2024, 1, 1), d(2024, 3, 31), txs, []core.ScheduleRule{rule}, Options{})
	require.NoError(t, err)

	byDate := map[string]DayEntry{}
	for _, day := range cal.Days {
		byDate[day.Date.String()] = day
	}
	jan := byDate["2024-01-01"]
	require.Len(t, jan.Contributions, 1)
	assert.Equal(t, KindTransaction, jan.Contributions[0].Kind)
	assert.True(t, jan.IsActual)

	feb := byDate["2024-02-01"]
	require.Len(t, feb.Contributions, 1)
	assert.True(t, feb.Net.Equal(amt("-650")))
	assert.False(t, feb.IsActual, "unconfirmed projection is an estimate")

	mar := byDate["2024-03-01"]
	require.Len(t, mar.Contributions, 1)
	assert.Equal(t, KindSchedule, mar.Contributions[0].Kind)
}

func TestAggregate_RunningBalanceCarriesFromAnchor(t *testing.T) {
	txs := []core.Transaction{
		{ID: 1, Date: d(2023, 12, 31), Amount: amt("999"), Confirmed: true}, // before anchor
		{ID: 2, Date: d(2024, 1, 1), Amount: amt("-10"), Confirmed: true},
		{ID: 3, Date: d(2024, 1, 20), Amount: amt("25.50"), Confirmed: true},
		{ID: 4, Date: d(2024, 2, 2), Amount: amt("-5"), Confirmed: true},
	}
	opts := Options{AnchorDate: d(2024, 1, 1), AnchorBalance: amt("100")}

	cal, err := Aggregate("u", d(2024, 2, 1), d(2024, 2, 3), txs, nil, opts)
	require.NoError(t, err)
	require.Len(t, cal.Days, 3)

	assert.True(t, cal.Days[0].Balance.Equal(amt("115.50")), "got %s", cal.Days[0].Balance)
	assert.True(t, cal.Days[1].Balance.Equal(amt("110.50")))
	assert.True(t, cal.Days[2].Balance.Equal(amt("110.50")))
	assert.True(t, cal.TotalNet().Equal(amt("-5")))
}

func TestAggregate_DaysBeforeAnchor(t *testing.T) {
	txs := []core.Transaction{
		{ID: 1, Date: d(2024, 1, 1), Amount: amt("-10")},
	}
	opts := Options{AnchorDate: d(2024, 1, 3), AnchorBalance: amt("40")}

	cal, err := Aggregate("u", d(2024, 1, 1), d(2024, 1, 4), txs, nil, opts)
	require.NoError(t, err)
	require.Len(t, cal.Days, 4)

	assert.True(t, cal.Days[0].Balance.IsZero())
	assert.True(t, cal.Days[0].IsActual, "days before the anchor are actual")
	assert.True(t, cal.Days[0].Net.Equal(amt("-10")))
	assert.True(t, cal.Days[1].Balance.IsZero())
	assert.True(t, cal.Days[2].Balance.Equal(amt("40")))
	assert.True(t, cal.Days[3].Balance.Equal(amt("40")))
}

func TestAggregate_ExactDecimalNoDrift(t *testing.T) {
	rule := core.ScheduleRule{
		ID: 1, Description: "dime", Amount: amt("0.1"),
		Recurrence: core.Recurrence{Frequency: core.Daily, Interval: 1},
		StartDate:  d(2024, 1, 1),
	}
	cal, err := Aggregate("u", d(2024, 1, 1), d(2024, 1, 10), nil, []core.ScheduleRule{rule}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "1", cal.TotalNet().String())
	assert.Equal(t, "1", cal.Days[9].Balance.String())
}
