// internal/pkg/recurrence/recurrence.go
package recurrence

import (
	"fmt"
	"time"

	xerrors "jikoni-service/internal/pkg/errors"
)

// Pattern identifies the cadence rule for a recurring order.
type Pattern string

const (
	PatternOnce     Pattern = "once"
	PatternDaily    Pattern = "daily"
	PatternWeekly   Pattern = "weekly"
	PatternBiweekly Pattern = "biweekly"
	PatternMonthly  Pattern = "monthly"
	PatternCustom   Pattern = "custom"
)

// DefaultMaxOccurrences bounds generation when the caller has no policy of
// its own. Callers should normally pass an explicit bound.
const DefaultMaxOccurrences = 10

// Spec describes one recurrence to expand.
type Spec struct {
	Start              time.Time
	Pattern            Pattern
	CustomIntervalDays int
	DaysOfWeek         []time.Weekday
	MaxOccurrences     int
}

// Generate expands spec into an ordered, strictly increasing sequence of
// execution dates, at most MaxOccurrences long. The first element is always
// Start. Generation never consults a clock and performs no I/O.
//
// Known quirks, kept on purpose:
//   - weekly with an empty weekday set degrades to a plain +7d cadence
//     instead of failing;
//   - biweekly is always +14d and ignores the weekday set.
func Generate(spec Spec) ([]time.Time, error) {
	if spec.Pattern == PatternCustom && spec.CustomIntervalDays < 1 {
		return nil, fmt.Errorf("%w: custom pattern requires a positive interval in days", xerrors.ErrInvalidSpecification)
	}

	if spec.MaxOccurrences <= 0 {
		return []time.Time{}, nil
	}

	dates := make([]time.Time, 0, spec.MaxOccurrences)
	current := spec.Start

	for len(dates) < spec.MaxOccurrences {
		dates = append(dates, current)

		next := advance(current, spec)
		if !next.After(current) {
			// Once, or an unknown pattern: keep whatever was produced.
			return dates, nil
		}
		current = next
	}

	return dates, nil
}

// advance steps one cadence interval past current. Returns current unchanged
// for once and unknown patterns.
func advance(current time.Time, spec Spec) time.Time {
	switch spec.Pattern {
	case PatternDaily:
		return current.AddDate(0, 0, 1)
	case PatternWeekly:
		if len(spec.DaysOfWeek) > 0 {
			return nextSelectedWeekday(current, spec.DaysOfWeek)
		}
		return current.AddDate(0, 0, 7)
	case PatternBiweekly:
		return current.AddDate(0, 0, 14)
	case PatternMonthly:
		return addMonthClamped(current)
	case PatternCustom:
		return current.AddDate(0, 0, spec.CustomIntervalDays)
	}
	return current
}

// FastForward walks spec's sequence toward until in whole cadence steps and
// returns the latest date not after until, preserving the weekday or
// day-of-month phase. Returns spec.Start unchanged when the sequence starts
// at or after until, or when the pattern never advances.
func FastForward(spec Spec, until time.Time) time.Time {
	start, _ := FastForwardCount(spec, until)
	return start
}

// FastForwardCount is FastForward, also reporting how many cadence steps
// were skipped. Callers bounding the sequence by an execution cap charge the
// skipped steps against it.
func FastForwardCount(spec Spec, until time.Time) (time.Time, int) {
	current := spec.Start
	steps := 0
	for {
		next := advance(current, spec)
		if !next.After(current) || next.After(until) {
			return current, steps
		}
		current = next
		steps++
	}
}

// nextSelectedWeekday returns the soonest date strictly after d whose weekday
// is in days. If d's own weekday is the only selection this lands exactly one
// week later.
func nextSelectedWeekday(d time.Time, days []time.Weekday) time.Time {
	selected := make(map[time.Weekday]bool, len(days))
	for _, wd := range days {
		selected[wd] = true
	}

	next := d.AddDate(0, 0, 1)
	for i := 0; i < 7; i++ {
		if selected[next.Weekday()] {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}

	// Unreachable with a non-empty set; fall back to a week out.
	return d.AddDate(0, 0, 7)
}

// addMonthClamped advances d by one calendar month, clamping the day-of-month
// so Jan 31 lands on the last day of February rather than overflowing into
// March the way time.AddDate normalizes it.
func addMonthClamped(d time.Time) time.Time {
	year, month, day := d.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, d.Location())

	if last := daysInMonth(firstOfNext.Year(), firstOfNext.Month()); day > last {
		day = last
	}

	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day,
		d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Valid reports whether p is one of the known patterns.
func (p Pattern) Valid() bool {
	switch p {
	case PatternOnce, PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly, PatternCustom:
		return true
	}
	return false
}
