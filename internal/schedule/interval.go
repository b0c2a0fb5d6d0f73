package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidTimeOfDay is returned for clock values outside HH:MM, 00:00-23:59.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

var timeOfDayPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return TimeOfDay(h*60 + min), nil
}

// String renders the zero-padded "HH:MM" form that the store compares lexically.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Interval is a half-open same-day range [Start, End).
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewInterval parses both bounds. It does not check ordering; see Valid.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// Valid reports whether Start < End.
func (i Interval) Valid() bool {
	return i.Start < i.End
}

// Overlaps reports whether two intervals on the same space and date conflict.
// Touching intervals (one ends when the other starts) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}
