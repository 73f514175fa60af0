package calendar

import (
	"cashcal/internal/core"

	"github.com/shopspring/decimal"
)

type ContributionKind string

const (
	KindTransaction ContributionKind = "transaction"
	KindSchedule    ContributionKind = "schedule"
)

// Contribution is one dated amount counted in a day entry.
type Contribution struct {
	Kind          ContributionKind `json:"kind"`
	Amount        decimal.Decimal  `json:"amount"`
	Description   string           `json:"description"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	TransactionID int64            `json:"transaction_id,omitempty"`
	ScheduleID    int64            `json:"schedule_id,omitempty"`
	Confirmed     bool             `json:"is_confirmed"`
}

// DayEntry aggregates every contribution of one calendar day.
type DayEntry struct {
	Date          core.Date       `json:"date"`
	Contributions []Contribution  `json:"contributions"`
	Credits       decimal.Decimal `json:"credits"`
	Debits        decimal.Decimal `json:"debits"`
	Net           decimal.Decimal `json:"net_change"`
	Balance       decimal.Decimal `json:"running_balance"`
	IsActual      bool            `json:"is_actual"`
}

// Calendar is the result of Aggregate.
type Calendar struct {
	UserID     string     `json:"-"`
	Start      core.Date  `json:"start"`
	End        core.Date  `json:"end"`
	Days       []DayEntry `json:"days"`
	RuleErrors []error    `json:"-"`
}

// Options tune balance tracking. With a zero AnchorDate the running balance
// starts from zero at the range start.
type Options struct {
	AnchorDate    core.Date
	AnchorBalance decimal.Decimal
}

// OptionsFromSettings anchors the running balance on the user's settings.
func OptionsFromSettings(s core.Settings) Options {
	return Options{AnchorDate: s.StartDate, AnchorBalance: s.StartBalance}
}

type occurrenceKey struct {
	scheduleID int64
	date       string
}

// Aggregate builds one DayEntry per date in [start, end].
//
// transactions and rules must already belong to userID. Transactions outside
// the computed window are ignored. A malformed rule is recorded in
// Calendar.RuleErrors and skipped; only an inverted range fails the call.
// When opts carries an anchor before start, days from the anchor onward are
// folded into the balance of the first returned day.
func Aggregate(userID string, start, end core.Date, transactions []core.Transaction, rules []core.ScheduleRule, opts Options) (Calendar, error) {
	if start.After(end.Time) {
		return Calendar{}, &InvalidRangeError{Start: start, End: end}
	}

	from := start
	anchored := !opts.AnchorDate.IsZero()
	if anchored && opts.AnchorDate.Before(from.Time) {
		from = opts.AnchorDate
	}

	byDate := make(map[string][]Contribution)
	linked := make(map[occurrenceKey]struct{})
	for _, tx := range transactions {
		if tx.Date.Before(from.Time) || tx.Date.After(end.Time) {
			continue
		}
		key := tx.Date.String()
		c := Contribution{
			Kind:          KindTransaction,
			Amount:        tx.Amount,
			Description:   tx.Description,
			CategoryID:    tx.CategoryID,
			TransactionID: tx.ID,
			Confirmed:     tx.Confirmed,
		}
		if tx.ScheduleID != nil {
			c.ScheduleID = *tx.ScheduleID
			linked[occurrenceKey{scheduleID: *tx.ScheduleID, date: key}] = struct{}{}
		}
		byDate[key] = append(byDate[key], c)
	}

	cal := Calendar{UserID: userID, Start: start, End: end}
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			cal.RuleErrors = append(cal.RuleErrors, err)
			continue
		}
		for d := range Occurrences(rule, from, end) {
			key := d.String()
			if _, ok := linked[occurrenceKey{scheduleID: rule.ID, date: key}]; ok {
				continue
			}
			byDate[key] = append(byDate[key], Contribution{
				Kind:        KindSchedule,
				Amount:      rule.Amount,
				Description: rule.Description,
				CategoryID:  rule.CategoryID,
				ScheduleID:  rule.ID,
			})
		}
	}

	cal.Days = make([]DayEntry, 0, start.DaysUntil(end)+1)
	balance := decimal.Zero
	for d := from; !d.After(end.Time); d = d.AddDays(1) {
		entry := newDayEntry(d, byDate[d.String()])

		beforeAnchor := anchored && d.Before(opts.AnchorDate.Time)
		switch {
		case beforeAnchor:
			entry.Balance = decimal.Zero
			entry.IsActual = true
		case anchored && d.Equal(opts.AnchorDate.Time):
			balance = opts.AnchorBalance.Add(entry.Net)
			entry.Balance = balance
		default:
			balance = balance.Add(entry.Net)
			entry.Balance = balance
		}

		if !d.Before(start.Time) {
			cal.Days = append(cal.Days, entry)
		}
	}
	return cal, nil
}

func newDayEntry(d core.Date, contributions []Contribution) DayEntry {
	entry := DayEntry{
		Date:          d,
		Contributions: contributions,
		Credits:       decimal.Zero,
		Debits:        decimal.Zero,
		Net:           decimal.Zero,
		IsActual:      true,
	}
	if entry.Contributions == nil {
		entry.Contributions = []Contribution{}
	}
	for _, c := range contributions {
		if c.Amount.IsPositive() {
			entry.Credits = entry.Credits.Add(c.Amount)
		} else {
			entry.Debits = entry.Debits.Add(c.Amount)
		}
		entry.Net = entry.Net.Add(c.Amount)
		if c.Kind != KindTransaction || !c.Confirmed {
			entry.IsActual = false
		}
	}
	return entry
}

// TotalNet sums the net amount of every day.
func (c Calendar) TotalNet() decimal.Decimal {
	total := decimal.Zero
	for _, d := range c.Days {
		total = total.Add(d.Net)
	}
	return total
}
