package models

import (
	"time"

	"spacebook/internal/schedule"
)

type Reservation struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	SpaceID             int64      `json:"space_id"`
	Date                time.Time  `json:"date"`
	StartTime           string     `json:"start_time"`
	EndTime             string     `json:"end_time"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"` // pending, approved, rejected
	IsRecurring         bool       `json:"is_recurring"`
	RecurrenceType      string     `json:"recurrence_type,omitempty"`
	RecurrenceEndDate   *time.Time `json:"recurrence_end_date,omitempty"`
	ParentReservationID *int64     `json:"parent_reservation_id,omitempty"`
	ReviewedBy          *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`

	// Read-side fields filled by lookups.
	UserName      string `json:"user_name,omitempty"`
	UserEmail     string `json:"user_email,omitempty"`
	SpaceName     string `json:"space_name,omitempty"`
	ReviewerName  string `json:"reviewer_name,omitempty"`
	ChildrenCount int    `json:"children_count,omitempty"`
}

// IsSeriesParent reports whether r heads a recurring series.
func (r *Reservation) IsSeriesParent() bool {
	return r.IsRecurring && r.ParentReservationID == nil
}

// Interval parses the stored wall-clock bounds.
func (r *Reservation) Interval() (schedule.Interval, error) {
	return schedule.NewInterval(r.StartTime, r.EndTime)
}

// DateString returns Date in DateLayout.
func (r *Reservation) DateString() string {
	return r.Date.Format(DateLayout)
}

// ReservationFilter narrows ListReservations. Zero values mean "any".
type ReservationFilter struct {
	UserID          int64
	SpaceID         int64
	Status          string
	Date            *time.Time
	From            *time.Time
	To              *time.Time
	IncludeChildren bool
	Limit           int
}

// ConflictQuery describes a proposed slot.
type ConflictQuery struct {
	SpaceID   int64
	Date      time.Time
	StartTime string
	EndTime   string
	ExcludeID int64
}

// Stats is the dashboard summary for one day.
type Stats struct {
	TodayApproved   int `json:"today_approved"`
	PendingCount    int `json:"pending_count"`
	FreeSpacesToday int `json:"free_spaces_today"`
}
