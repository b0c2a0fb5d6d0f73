package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Cadence is the spacing between occurrences of a recurring reservation.
type Cadence string

const (
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
)

// MaxOccurrences bounds a single expansion so a far-away end date cannot
// materialize an unbounded series.
const MaxOccurrences = 520

var (
	ErrUnknownCadence = errors.New("unknown recurrence cadence")
	ErrTooManyDates   = errors.New("recurrence produces too many occurrences")
)

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case Weekly, Monthly:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCadence, s)
	}
}

// Expand returns the occurrence dates that follow start, up to and including
// end. start itself is not part of the result: the caller books it as the
// series parent. Dates are normalized to midnight UTC.
//
// Monthly occurrences are computed from start rather than from the previous
// occurrence, and clamp to the last day of the month when start's day does not
// exist there: Jan 31 gives Feb 28 (29 in leap years), Mar 31, Apr 30.
func Expand(start, end time.Time, cadence Cadence) ([]time.Time, error) {
	start = Day(start)
	end = Day(end)

	var dates []time.Time
	for k := 1; ; k++ {
		var next time.Time
		switch cadence {
		case Weekly:
			next = start.AddDate(0, 0, 7*k)
		case Monthly:
			next = addMonthsClamped(start, k)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCadence, cadence)
		}
		if next.After(end) {
			return dates, nil
		}
		if len(dates) == MaxOccurrences {
			return nil, ErrTooManyDates
		}
		dates = append(dates, next)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day truncates t to its calendar date at midnight UTC. The service runs in a
// single implicit locale, so the wall-clock date of t is kept as-is.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
