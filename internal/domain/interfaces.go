package domain

import (
	"context"
	"fmt"
	"time"

	"spacebook/internal/models"
)

// ReservationStore is the durable reservation persistence the engine runs against.
type ReservationStore interface {
	InsertReservation(ctx context.Context, r *models.Reservation) error
	FindByID(ctx context.Context, id int64) (*models.Reservation, error)
	FindConflicts(ctx context.Context, q models.ConflictQuery) ([]*models.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status string, reviewerID int64, at time.Time) (*models.Reservation, error)
	UpdateChildrenStatus(ctx context.Context, parentID int64, status string, reviewerID int64, at time.Time) ([]*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	ListStats(ctx context.Context, day time.Time) (*models.Stats, error)
}

// Store adds transactional grouping. Inside fn only tx may be used.
type Store interface {
	ReservationStore
	RunInTx(ctx context.Context, fn func(tx ReservationStore) error) error
}

type SpaceDirectory interface {
	SpaceExists(ctx context.Context, id int64) (bool, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Notifier delivers status-change notices to the reservation owner. Errors
// are reported to the caller, who is expected to log and drop them.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, email string, r *models.Reservation, newStatus, reviewerName string) error
}

// Unlock releases a lock obtained from SlotLocker.
type Unlock func()

// SlotLocker serializes check-and-insert on a (space, date) slot across
// concurrent requests and engine processes.
type SlotLocker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type ReservationService interface {
	CreateSingle(ctx context.Context, in CreateSingleInput) (*models.Reservation, error)
	CreateRecurring(ctx context.Context, in CreateRecurringInput) (*SeriesResult, error)
	SetStatus(ctx context.Context, in SetStatusInput) (*StatusChangeResult, error)
	CheckConflict(ctx context.Context, q models.ConflictQuery) (bool, error)
	ComputeStats(ctx context.Context) (*models.Stats, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	TodayReservations(ctx context.Context) ([]*models.Reservation, error)
}

// SlotKey names the lock guarding one space on one calendar day.
func SlotKey(spaceID int64, date time.Time) string {
	return fmt.Sprintf("slot:%d:%s", spaceID, date.Format(models.DateLayout))
}
