package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"

	// Legacy names still sent by older clients; Normalize rewrites them.
	BiWeekly  Frequency = "bi-weekly"
	BiMonthly Frequency = "bi-monthly"
)

const (
	Credit CategoryKind = "credit"
	Debit  CategoryKind = "debit"
)

const (
	WeekStartMonday WeekStart = "monday"
	WeekStartSunday WeekStart = "sunday"
)

const (
	maxDescriptionLen  = 200
	maxCategoryNameLen = 100
)

type (
	Frequency    string
	CategoryKind string
	WeekStart    string

	// Recurrence describes how a schedule rule repeats from its start date.
	Recurrence struct {
		Frequency Frequency `json:"frequency"`
		Interval  int       `json:"interval,omitempty"`
		// DayOfMonth anchors monthly rules; zero means the start date's day.
		DayOfMonth int `json:"day_of_month,omitempty"`
	}

	Category struct {
		ID     int64        `json:"id"`
		UserID string       `json:"-"`
		Name   string       `json:"name"`
		Kind   CategoryKind `json:"type"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      string          `json:"-"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		CategoryID  *int64          `json:"category_id,omitempty"`
		Description string          `json:"description"`
		Confirmed   bool            `json:"is_confirmed"`
		ScheduleID  *int64          `json:"schedule_id,omitempty"`
	}

	ScheduleRule struct {
		ID          int64           `json:"id"`
		UserID      string          `json:"-"`
		CategoryID  *int64          `json:"category_id,omitempty"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Recurrence
		StartDate Date `json:"start_date"`
		EndDate   Date `json:"end_date,omitzero"`
	}

	Settings struct {
		UserID       string          `json:"-"`
		StartBalance decimal.Decimal `json:"start_balance"`
		StartDate    Date            `json:"start_date"`
		Currency     string          `json:"currency"`
		WeekStart    WeekStart       `json:"week_start"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrCategoryNameTooLong = fmt.Errorf("category name too long (max %d characters)", maxCategoryNameLen)
	ErrInvalidCategoryKind = errors.New("invalid category type: must be credit or debit")
	ErrInvalidFrequency    = errors.New("invalid repetition type")
	ErrInvalidInterval     = errors.New("interval must be at least 1")
	ErrInvalidDayOfMonth   = errors.New("day of month must be between 1 and 31")
	ErrEndBeforeStart      = errors.New("end date must not be before start date")
	ErrInvalidCurrency     = errors.New("currency must be a 3-letter ISO code")
	ErrInvalidWeekStart    = errors.New("week start must be monday or sunday")
)

var validationErrors = []error{
	ErrInvalidAmount,
	ErrEmptyDescription,
	ErrDescriptionTooLong,
	ErrEmptyCategoryName,
	ErrCategoryNameTooLong,
	ErrInvalidCategoryKind,
	ErrInvalidFrequency,
	ErrInvalidInterval,
	ErrInvalidDayOfMonth,
	ErrEndBeforeStart,
	ErrInvalidCurrency,
	ErrInvalidWeekStart,
	ErrZeroDate,
}

// IsValidation reports whether err stems from rejected user input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseCategoryKind accepts credit/debit and the income/expense aliases.
func ParseCategoryKind(s string) (CategoryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "income":
		return Credit, nil
	case "debit", "expense":
		return Debit, nil
	default:
		return "", ErrInvalidCategoryKind
	}
}

// Normalize rewrites legacy frequency names and fills the default interval.
func (r Recurrence) Normalize() Recurrence {
	if r.Interval == 0 {
		r.Interval = 1
	}
	switch r.Frequency {
	case BiWeekly:
		r.Frequency = Weekly
		r.Interval *= 2
	case BiMonthly:
		r.Frequency = Monthly
		r.Interval *= 2
	}
	return r
}

func (r Recurrence) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	if r.DayOfMonth != 0 {
		if r.Frequency != Monthly {
			return fmt.Errorf("%w: only valid for monthly rules, got %s", ErrInvalidDayOfMonth, r.Frequency)
		}
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return ErrInvalidDayOfMonth
		}
	}
	return nil
}

func validateDescription(desc string, required bool) error {
	if required && len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if len(name) > maxCategoryNameLen {
		return ErrCategoryNameTooLong
	}
	if c.Kind != Credit && c.Kind != Debit {
		return ErrInvalidCategoryKind
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	return validateDescription(t.Description, false)
}

func (s ScheduleRule) Validate() error {
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate.Time) {
		return ErrEndBeforeStart
	}
	if err := s.Recurrence.Validate(); err != nil {
		return err
	}
	if err := validateAmount(s.Amount); err != nil {
		return err
	}
	return validateDescription(s.Description, true)
}

// ActiveOn reports whether d lies within the rule's start and optional end date.
func (s ScheduleRule) ActiveOn(d Date) bool {
	if d.Before(s.StartDate.Time) {
		return false
	}
	return s.EndDate.IsZero() || !d.After(s.EndDate.Time)
}

func (s Settings) Validate() error {
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if len(s.Currency) != 3 || strings.ToUpper(s.Currency) != s.Currency {
		return ErrInvalidCurrency
	}
	if s.WeekStart != WeekStartMonday && s.WeekStart != WeekStartSunday {
		return ErrInvalidWeekStart
	}
	return nil
}

// DefaultSettings are created alongside a new user.
func DefaultSettings(userID string, today Date) Settings {
	return Settings{
		UserID:       userID,
		StartBalance: decimal.Zero,
		StartDate:    today,
		Currency:     "EUR",
		WeekStart:    WeekStartMonday,
	}
}

// DefaultCategories are seeded for every new user.
func DefaultCategories(userID string) []Category {
	return []Category{
		{UserID: userID, Name: "Paycheck", Kind: Credit},
		{UserID: userID, Name: "Rent", Kind: Debit},
		{UserID: userID, Name: "Groceries", Kind: Debit},
		{UserID: userID, Name: "Utilities", Kind: Debit},
		{UserID: userID, Name: "Other", Kind: Debit},
	}
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}
