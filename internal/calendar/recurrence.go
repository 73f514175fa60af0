// Package calendar expands recurring schedule rules and merges them with
// one-off transactions into per-day calendar entries.
//
// This file implements one stepping strategy per frequency. Every strategy
// computes the n-th occurrence directly from the rule's anchor, so month-end
// clamping never drifts: an anchor on the 31st lands on Feb 29, Apr 30 and
// then Mar 31 again.
package calendar

import (
	"fmt"

	"cashcal/internal/core"
)

// Stepper enumerates occurrence dates for a single frequency.
type Stepper interface {
	// At returns the n-th occurrence (n >= 0) counted from start.
	At(start core.Date, r core.Recurrence, n int) core.Date
	// Skip returns an index such that every earlier occurrence falls before from.
	Skip(start core.Date, r core.Recurrence, from core.Date) int
}

// DailyStepper steps every Interval days.
type DailyStepper struct{}

func (DailyStepper) At(start core.Date, r core.Recurrence, n int) core.Date {
	return start.AddDays(n * r.Interval)
}

func (DailyStepper) Skip(start core.Date, r core.Recurrence, from core.Date) int {
	return skipDays(start, from, r.Interval)
}

// WeeklyStepper steps every Interval weeks, keeping the start weekday.
type WeeklyStepper struct{}

func (WeeklyStepper) At(start core.Date, r core.Recurrence, n int) core.Date {
	return start.AddDays(n * 7 * r.Interval)
}

func (WeeklyStepper) Skip(start core.Date, r core.Recurrence, from core.Date) int {
	return skipDays(start, from, 7*r.Interval)
}

// MonthlyStepper steps every Interval months on DayOfMonth, or on the start
// date's day when DayOfMonth is unset. Short months clamp to their last day.
type MonthlyStepper struct{}

func (MonthlyStepper) At(start core.Date, r core.Recurrence, n int) core.Date {
	day := r.DayOfMonth
	if day == 0 {
		day = start.Day()
	}
	return core.ClampedDate(start.Year(), start.Month()+n*r.Interval, day)
}

func (MonthlyStepper) Skip(start core.Date, r core.Recurrence, from core.Date) int {
	months := (from.Year()-start.Year())*12 + from.Month() - start.Month()
	if months <= 0 {
		return 0
	}
	return months / r.Interval
}

// YearlyStepper steps every Interval years on the start date's month and day.
// A Feb 29 anchor lands on Feb 28 in common years.
type YearlyStepper struct{}

func (YearlyStepper) At(start core.Date, r core.Recurrence, n int) core.Date {
	return core.ClampedDate(start.Year()+n*r.Interval, start.Month(), start.Day())
}

func (YearlyStepper) Skip(start core.Date, r core.Recurrence, from core.Date) int {
	years := from.Year() - start.Year()
	if years <= 0 {
		return 0
	}
	return years / r.Interval
}

func skipDays(start, from core.Date, step int) int {
	days := start.DaysUntil(from)
	if days <= 0 {
		return 0
	}
	return days / step
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// StepperFor returns the strategy for a normalised frequency.
func StepperFor(f core.Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
	return s, nil
}
