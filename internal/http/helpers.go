package http

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"cashcal/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// amountField accepts an amount sent as a JSON number or as a string with a
// dot or comma separator.
type amountField struct {
	raw string
	set bool
}

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = amountField{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return core.ErrInvalidAmount
		}
	}
	*a = amountField{raw: raw, set: true}
	return nil
}

// Amount parses a non-zero transaction or schedule amount.
func (a amountField) Amount() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return core.ParseAmount(a.raw)
}

// Balance parses a balance, which unlike an amount may be zero.
func (a amountField) Balance() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(a.raw), ",", "."))
	if err != nil {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return d.Round(core.AmountPlaces), nil
}

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"type"`
}

func (req categoryRequest) category(id int64) (core.Category, error) {
	kind, err := core.ParseCategoryKind(req.Kind)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{ID: id, Name: sanitizeInput(req.Name), Kind: kind}, nil
}

type transactionRequest struct {
	Date        core.Date   `json:"date"`
	Amount      amountField `json:"amount"`
	CategoryID  *int64      `json:"category_id"`
	Description string      `json:"description"`
	Confirmed   bool        `json:"is_confirmed"`
}

func (req transactionRequest) transaction(id int64) (core.Transaction, error) {
	amount, err := req.Amount.Amount()
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id,
		Date:        req.Date,
		Amount:      amount,
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Confirmed:   req.Confirmed,
	}, nil
}

type scheduleRequest struct {
	CategoryID  *int64      `json:"category_id"`
	Description string      `json:"description"`
	Amount      amountField `json:"amount"`
	// Frequency is accepted under both names.
	Frequency  core.Frequency `json:"frequency"`
	Repetition core.Frequency `json:"repetition"`
	Interval   int            `json:"interval"`
	DayOfMonth int            `json:"day_of_month"`
	StartDate  core.Date      `json:"start_date"`
	EndDate    core.Date      `json:"end_date"`
}

func (req scheduleRequest) schedule(id int64) (core.ScheduleRule, error) {
	amount, err := req.Amount.Amount()
	if err != nil {
		return core.ScheduleRule{}, err
	}
	freq := req.Frequency
	if freq == "" {
		freq = req.Repetition
	}
	return core.ScheduleRule{
		ID:          id,
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Recurrence: core.Recurrence{
			Frequency:  core.Frequency(strings.ToLower(strings.TrimSpace(string(freq)))),
			Interval:   req.Interval,
			DayOfMonth: req.DayOfMonth,
		},
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}, nil
}

type settingsRequest struct {
	StartBalance amountField    `json:"start_balance"`
	StartDate    core.Date      `json:"start_date"`
	Currency     string         `json:"currency"`
	WeekStart    core.WeekStart `json:"week_start"`
}

// apply overlays the request on the current settings; omitted fields keep
// their value.
func (req settingsRequest) apply(current core.Settings) (core.Settings, error) {
	if req.StartBalance.set {
		balance, err := req.StartBalance.Balance()
		if err != nil {
			return core.Settings{}, err
		}
		current.StartBalance = balance
	}
	if !req.StartDate.IsZero() {
		current.StartDate = req.StartDate
	}
	if c := strings.TrimSpace(req.Currency); c != "" {
		current.Currency = strings.ToUpper(c)
	}
	if req.WeekStart != "" {
		current.WeekStart = core.WeekStart(strings.ToLower(string(req.WeekStart)))
	}
	return current, nil
}

type projectionRequest struct {
	EndDate core.Date `json:"end_date"`
}
