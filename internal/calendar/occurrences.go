package calendar

import (
	"iter"

	"cashcal/internal/core"
)

// Occurrences yields the dates of rule that fall within [from, to] and
// within the rule's own start and end dates, in ascending order.
//
// The sequence is computed lazily, so open-ended rules are safe to expand.
// A rule that fails ValidateRule yields nothing.
func Occurrences(rule core.ScheduleRule, from, to core.Date) iter.Seq[core.Date] {
	return func(yield func(core.Date) bool) {
		if ValidateRule(rule) != nil {
			return
		}
		rec := rule.Recurrence.Normalize()
		stepper, err := StepperFor(rec.Frequency)
		if err != nil {
			return
		}

		lower, upper := from, to
		if lower.Before(rule.StartDate.Time) {
			lower = rule.StartDate
		}
		if !rule.EndDate.IsZero() && rule.EndDate.Before(upper.Time) {
			upper = rule.EndDate
		}
		if lower.After(upper.Time) {
			return
		}

		for n := stepper.Skip(rule.StartDate, rec, lower); ; n++ {
			d := stepper.At(rule.StartDate, rec, n)
			if d.After(upper.Time) {
				return
			}
			if d.Before(lower.Time) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}
