package service

import (
	"errors"
	"strings"
	"time"

	"spacebook/internal/domain"
	"spacebook/internal/models"
	"spacebook/internal/schedule"

	"github.com/go-playground/validator/v10"
)

var fieldReasons = map[string]struct {
	field  string
	reason domain.Reason
}{
	"ActorID":       {"user_id", domain.ReasonInvalidUser},
	"SpaceID":       {"space_id", domain.ReasonInvalidSpace},
	"Date":          {"date", domain.ReasonInvalidDate},
	"StartTime":     {"start_time", domain.ReasonInvalidTime},
	"EndTime":       {"end_time", domain.ReasonInvalidTime},
	"Reason":        {"reason", domain.ReasonInvalidReason},
	"ReservationID": {"id", domain.ReasonInvalidID},
}

// slot is a validated booking request.
type slot struct {
	date     time.Time
	interval schedule.Interval
	reason   string
}

func (s slot) start() string { return s.interval.Start.String() }
func (s slot) end() string   { return s.interval.End.String() }

type series struct {
	slot
	cadence schedule.Cadence
	until   time.Time
	dates   []time.Time
}

// checkStruct runs the struct tags and maps the first failure to a Reason.
func checkStruct(v *validator.Validate, in interface{}) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if r, ok := fieldReasons[verrs[0].StructField()]; ok {
			return &domain.ValidationError{Field: r.field, Reason: r.reason}
		}
		return &domain.ValidationError{Field: verrs[0].Field()}
	}
	return err
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return d, nil
}

func validateSingle(v *validator.Validate, in domain.CreateSingleInput) (slot, error) {
	if err := checkStruct(v, in); err != nil {
		return slot{}, err
	}

	date, err := parseDate(in.Date)
	if err != nil {
		return slot{}, &domain.ValidationError{Field: "date", Reason: domain.ReasonInvalidDate}
	}

	start, err := schedule.ParseTimeOfDay(strings.TrimSpace(in.StartTime))
	if err != nil {
		return slot{}, &domain.ValidationError{Field: "start_time", Reason: domain.ReasonInvalidTime}
	}
	end, err := schedule.ParseTimeOfDay(strings.TrimSpace(in.EndTime))
	if err != nil {
		return slot{}, &domain.ValidationError{Field: "end_time", Reason: domain.ReasonInvalidTime}
	}
	interval := schedule.Interval{Start: start, End: end}
	if !interval.Valid() {
		return slot{}, &domain.ValidationError{Field: "end_time", Reason: domain.ReasonInvalidInterval}
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len([]rune(reason)) > models.MaxReasonLength {
		return slot{}, &domain.ValidationError{Field: "reason", Reason: domain.ReasonInvalidReason}
	}

	return slot{date: date, interval: interval, reason: reason}, nil
}

func validateRecurring(v *validator.Validate, in domain.CreateRecurringInput) (series, error) {
	s, err := validateSingle(v, in.CreateSingleInput)
	if err != nil {
		return series{}, err
	}

	if strings.TrimSpace(in.RecurrenceType) == "" || strings.TrimSpace(in.RecurrenceEndDate) == "" {
		return series{}, &domain.ValidationError{Field: "recurrence_type", Reason: domain.ReasonMissingRecurrence}
	}

	cadence, err := schedule.ParseCadence(strings.TrimSpace(in.RecurrenceType))
	if err != nil {
		return series{}, &domain.ValidationError{Field: "recurrence_type", Reason: domain.ReasonInvalidRecurrenceType}
	}

	until, err := parseDate(in.RecurrenceEndDate)
	if err != nil || !until.After(s.date) {
		return series{}, &domain.ValidationError{Field: "recurrence_end_date", Reason: domain.ReasonInvalidRecurrenceEnd}
	}

	dates, err := schedule.Expand(s.date, until, cadence)
	if errors.Is(err, schedule.ErrTooManyDates) {
		return series{}, &domain.ValidationError{Field: "recurrence_end_date", Reason: domain.ReasonTooManyOccurrences}
	}
	if err != nil {
		return series{}, err
	}

	return series{slot: s, cadence: cadence, until: until, dates: dates}, nil
}

func validateConflictQuery(q models.ConflictQuery) (models.ConflictQuery, error) {
	if q.SpaceID <= 0 {
		return q, &domain.ValidationError{Field: "space_id", Reason: domain.ReasonInvalidSpace}
	}
	if q.Date.IsZero() {
		return q, &domain.ValidationError{Field: "date", Reason: domain.ReasonInvalidDate}
	}
	interval, err := schedule.NewInterval(strings.TrimSpace(q.StartTime), strings.TrimSpace(q.EndTime))
	if err != nil {
		return q, &domain.ValidationError{Field: "start_time", Reason: domain.ReasonInvalidTime}
	}
	if !interval.Valid() {
		return q, &domain.ValidationError{Field: "end_time", Reason: domain.ReasonInvalidInterval}
	}
	q.Date = schedule.Day(q.Date)
	q.StartTime = interval.Start.String()
	q.EndTime = interval.End.String()
	return q, nil
}
