// Package recurrence expands entry rules into concrete occurrence dates.
//
// This file implements the Strategy Pattern for recurrence stepping. Each
// frequency (weekly, monthly, yearly) has its own stepper that computes the
// k-th occurrence directly from the rule's start date. Occurrences are never
// derived from the previous (possibly clamped) occurrence, so Jan 31 monthly
// yields Feb 29, Mar 31, Apr 30 and not Feb 29, Mar 29, Apr 29.
package recurrence

import (
	"fmt"

	"bilancio/internal/core"
)

// Stepper is the strategy interface for one recurrence frequency.
type Stepper interface {
	// Nth returns start advanced by k*interval units of the frequency.
	Nth(start core.Date, k, interval int) core.Date
}

// WeeklyStepper advances by 7*interval days per step.
type WeeklyStepper struct{}

func (WeeklyStepper) Nth(start core.Date, k, interval int) core.Date {
	return start.AddDays(7 * interval * k)
}

// MonthlyStepper advances by interval months per step, clamping the day.
type MonthlyStepper struct{}

func (MonthlyStepper) Nth(start core.Date, k, interval int) core.Date {
	return start.AddMonthsClamped(interval * k)
}

// YearlyStepper advances by interval years per step, clamping Feb 29.
type YearlyStepper struct{}

func (YearlyStepper) Nth(start core.Date, k, interval int) core.Date {
	return start.AddYearsClamped(interval * k)
}

// steppers maps frequencies to their stepping strategy. It is read-only after
// package initialization.
var steppers = map[core.Frequency]Stepper{
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(frequency core.Frequency) (Stepper, error) {
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// Expander produces the occurrence dates of one entry within a closed range.
type Expander interface {
	OccurrencesInRange(e core.Entry, rangeStart, rangeEnd core.Date) []core.Date
}

// Rules is the stateless Expander. The zero value is ready to use.
type Rules struct{}

// OccurrencesInRange returns the ascending dates of e that fall within
// [max(e.StartDate, rangeStart), rangeEnd]. Inactive entries, reversed
// ranges and malformed rules yield nil.
func (Rules) OccurrencesInRange(e core.Entry, rangeStart, rangeEnd core.Date) []core.Date {
	return OccurrencesInRange(e, rangeStart, rangeEnd)
}

// OccurrencesInRange is the package-level form of Rules.OccurrencesInRange.
func OccurrencesInRange(e core.Entry, rangeStart, rangeEnd core.Date) []core.Date {
	if !e.Active || e.StartDate.IsZero() || rangeStart.After(rangeEnd) || rangeEnd.Before(e.StartDate) {
		return nil
	}

	if e.OneShot {
		if e.StartDate.Before(rangeStart) {
			return nil
		}
		return []core.Date{e.StartDate}
	}

	if e.ValidateRule() != nil {
		return nil
	}
	stepper := steppers[e.Frequency]

	var (
		out  []core.Date
		prev core.Date
	)
	for k := firstCandidate(e, rangeStart); ; k++ {
		d := stepper.Nth(e.StartDate, k, e.Interval)
		if d.After(rangeEnd) {
			break
		}
		// A step that does not move forward means the date arithmetic
		// wrapped; stop rather than spin.
		if !prev.IsZero() && !d.After(prev) {
			break
		}
		prev = d
		if !d.Before(rangeStart) {
			out = append(out, d)
		}
	}
	return out
}

// firstCandidate returns a step index whose date is not after rangeStart, so
// long-running rules queried far from their start do not walk every step.
// The estimate is conservative: it may undershoot, never overshoot.
func firstCandidate(e core.Entry, rangeStart core.Date) int {
	if !rangeStart.After(e.StartDate) {
		return 0
	}
	var k int
	switch e.Frequency {
	case core.Weekly:
		days := int(rangeStart.Sub(e.StartDate.Time).Hours() / 24)
		k = days / (7 * e.Interval)
	case core.Monthly:
		months := (rangeStart.Year()-e.StartDate.Year())*12 + rangeStart.Month() - e.StartDate.Month()
		k = months/e.Interval - 1
	case core.Yearly:
		k = (rangeStart.Year()-e.StartDate.Year())/e.Interval - 1
	}
	if k < 0 {
		return 0
	}
	return k
}
