package domain

import (
	"time"

	"spacebook/internal/models"
)

// CreateSingleInput requests one reservation. Date is YYYY-MM-DD, times HH:MM.
type CreateSingleInput struct {
	ActorID   int64  `validate:"gt=0"`
	SpaceID   int64  `validate:"gt=0"`
	Date      string `validate:"required"`
	StartTime string `validate:"required"`
	EndTime   string `validate:"required"`
	Reason    string `validate:"required,max=500"`
}

// CreateRecurringInput requests a series starting on Date.
type CreateRecurringInput struct {
	CreateSingleInput
	RecurrenceType    string
	RecurrenceEndDate string
}

type SetStatusInput struct {
	ReservationID int64 `validate:"gt=0"`
	Status        string
	ActorID       int64 `validate:"gt=0"`
}

// SeriesResult lists what a recurring request materialized. Reservations[0]
// is the parent. Total counts materialized entries only.
type SeriesResult struct {
	Reservations []*models.Reservation
	Total        int
	SkippedDates []time.Time
}

func (s *SeriesResult) Parent() *models.Reservation {
	if s == nil || len(s.Reservations) == 0 {
		return nil
	}
	return s.Reservations[0]
}

// StatusChangeResult carries the updated reservation and, for a series
// parent, its children. CascadeErr is non-nil when the parent was updated but
// the children could not be; callers present it as a warning.
type StatusChangeResult struct {
	Reservation *models.Reservation
	Children    []*models.Reservation
	CascadeErr  error
}
