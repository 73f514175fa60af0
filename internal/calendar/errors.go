package calendar

import (
	"errors"
	"fmt"

	"cashcal/internal/core"
)

var (
	ErrInvalidRange        = errors.New("invalid range")
	ErrInvalidScheduleRule = errors.New("invalid schedule rule")
)

// InvalidRangeError reports a range whose start is after its end.
type InvalidRangeError struct {
	Start, End core.Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start %s is after end %s", e.Start, e.End)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// InvalidScheduleRuleError reports a rule whose recurrence cannot be expanded.
// It wraps the underlying validation error.
type InvalidScheduleRuleError struct {
	RuleID int64
	Err    error
}

func (e *InvalidScheduleRuleError) Error() string {
	return fmt.Sprintf("invalid schedule rule %d: %v", e.RuleID, e.Err)
}

func (e *InvalidScheduleRuleError) Unwrap() error {
	return e.Err
}

func (e *InvalidScheduleRuleError) Is(target error) bool {
	return target == ErrInvalidScheduleRule
}

// ValidateRule checks that rule can be expanded.
func ValidateRule(rule core.ScheduleRule) error {
	rule.Recurrence = rule.Recurrence.Normalize()
	if err := rule.Validate(); err != nil {
		return &InvalidScheduleRuleError{RuleID: rule.ID, Err: err}
	}
	return nil
}
