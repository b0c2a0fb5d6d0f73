package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("slot already taken")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrPermission        = errors.New("permission denied")
)

// Reason enumerates why an input was rejected.
type Reason string

const (
	ReasonInvalidSpace          Reason = "invalid_space"
	ReasonInvalidUser           Reason = "invalid_user"
	ReasonInvalidDate           Reason = "invalid_date"
	ReasonInvalidTime           Reason = "invalid_time"
	ReasonInvalidInterval       Reason = "invalid_interval"
	ReasonInvalidReason         Reason = "invalid_reason"
	ReasonMissingRecurrence     Reason = "missing_recurrence"
	ReasonInvalidRecurrenceType Reason = "invalid_recurrence_type"
	ReasonInvalidRecurrenceEnd  Reason = "invalid_recurrence_end"
	ReasonTooManyOccurrences    Reason = "too_many_occurrences"
	ReasonInvalidID             Reason = "invalid_id"
)

type ValidationError struct {
	Field  string
	Reason Reason
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ConflictError struct {
	SpaceID int64
	Date    string
	Start   string
	End     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("space %d is already booked on %s between %s and %s", e.SpaceID, e.Date, e.Start, e.End)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidTransitionError struct {
	ID   int64
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservation %d: cannot change status from %s to %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q: must be approved or rejected", e.Status)
}

func (e *InvalidStatusError) Is(target error) bool { return target == ErrInvalidStatus }

// PermissionError is raised by callers that enforce ownership rules.
type PermissionError struct {
	ActorID int64
	Action  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s", e.ActorID, e.Action)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// CascadeError reports that a series parent was decided but its children
// could not be updated. It is a warning attached to StatusChangeResult.
type CascadeError struct {
	ParentID int64
	Attempts int
	Err      error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("reservation %d: children not updated after %d attempts: %v", e.ParentID, e.Attempts, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
