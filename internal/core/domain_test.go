package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestClampedDate(t *testing.T) {
	cases := []struct {
		year, month, day int
		want             string
	}{
		{2024, 2, 31, "2024-02-29"},
		{2023, 2, 31, "2023-02-28"},
		{2024, 4, 31, "2024-04-30"},
		{2024, 13, 31, "2025-01-31"},
		{2024, 3, 15, "2024-03-15"},
	}
	for _, tc := range cases {
		if got := ClampedDate(tc.year, tc.month, tc.day).String(); got != tc.want {
			t.Errorf("ClampedDate(%d, %d, %d) = %s, want %s", tc.year, tc.month, tc.day, got, tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var holder struct {
		D Date `json:"d"`
		E Date `json:"e,omitzero"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &holder); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if holder.D.String() != "2024-02-29" {
		t.Fatalf("unexpected date %s", holder.D)
	}
	out, err := json.Marshal(holder)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"d":"2024-02-29"}` {
		t.Fatalf("unexpected json %s", out)
	}
	if err := json.Unmarshal([]byte(`{"d":"29/02/2024"}`), &holder); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}

func TestRecurrenceNormalize(t *testing.T) {
	tests := []struct {
		in   Recurrence
		want Recurrence
	}{
		{Recurrence{Frequency: Daily}, Recurrence{Frequency: Daily, Interval: 1}},
		{Recurrence{Frequency: BiWeekly}, Recurrence{Frequency: Weekly, Interval: 2}},
		{Recurrence{Frequency: BiMonthly}, Recurrence{Frequency: Monthly, Interval: 2}},
		{Recurrence{Frequency: Monthly, Interval: 3, DayOfMonth: 31}, Recurrence{Frequency: Monthly, Interval: 3, DayOfMonth: 31}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestScheduleRuleValidate(t *testing.T) {
	good := ScheduleRule{
		Description: "rent",
		Amount:      decimal.NewFromInt(-100),
		Recurrence:  Recurrence{Frequency: Monthly, Interval: 1, DayOfMonth: 31},
		StartDate:   NewDate(2024, 1, 31),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ScheduleRule)
		want   error
	}{
		{"unknown frequency", func(r *ScheduleRule) { r.Frequency = "fortnightly" }, ErrInvalidFrequency},
		{"zero interval", func(r *ScheduleRule) { r.Interval = 0 }, ErrInvalidInterval},
		{"day of month out of range", func(r *ScheduleRule) { r.DayOfMonth = 32 }, ErrInvalidDayOfMonth},
		{"end before start", func(r *ScheduleRule) { r.EndDate = NewDate(2023, 12, 1) }, ErrEndBeforeStart},
		{"zero amount", func(r *ScheduleRule) { r.Amount = decimal.Zero }, ErrInvalidAmount},
		{"empty description", func(r *ScheduleRule) { r.Description = "  " }, ErrEmptyDescription},
		{"zero start", func(r *ScheduleRule) { r.StartDate = Date{} }, ErrZeroDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScheduleRuleActiveOn(t *testing.T) {
	r := ScheduleRule{StartDate: NewDate(2024, 1, 10), EndDate: NewDate(2024, 1, 20)}
	if r.ActiveOn(NewDate(2024, 1, 9)) {
		t.Error("day before start should not be active")
	}
	if !r.ActiveOn(NewDate(2024, 1, 10)) || !r.ActiveOn(NewDate(2024, 1, 20)) {
		t.Error("bounds should be inclusive")
	}
	if r.ActiveOn(NewDate(2024, 1, 21)) {
		t.Error("day after end should not be active")
	}
}

func TestCategoryKindAndValidate(t *testing.T) {
	for in, want := range map[string]CategoryKind{"credit": Credit, "Income": Credit, "debit": Debit, "expense": Debit} {
		got, err := ParseCategoryKind(in)
		if err != nil || got != want {
			t.Errorf("ParseCategoryKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCategoryKind("other"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := (Category{Name: "", Kind: Credit}).Validate(); !errors.Is(err, ErrEmptyCategoryName) {
		t.Errorf("expected empty name error, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings("u@example.com", NewDate(2024, 1, 1))
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	s.Currency = "eur"
	if err := s.Validate(); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected currency error, got %v", err)
	}
}

func TestIsValidation(t *testing.T) {
	wrapped := fmt.Errorf("create schedule: %w", Recurrence{Frequency: Weekly, Interval: 1, DayOfMonth: 3}.Validate())
	if !IsValidation(wrapped) {
		t.Errorf("expected %v to be a validation error", wrapped)
	}
	if !IsValidation(Category{Name: strings.Repeat("x", 101), Kind: Debit}.Validate()) {
		t.Error("long category name should be a validation error")
	}
	if IsValidation(errors.New("disk full")) {
		t.Error("unrelated error reported as validation")
	}
	if IsValidation(nil) {
		t.Error("nil is not a validation error")
	}
}
