package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"spacebook/internal/domain"
	"spacebook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	logger := zerolog.New(io.Discard)
	return &DB{DB: sqlDB, queries: queries{q: sqlDB}, logger: &logger}, mock
}

func TestRunInTx_RollsBackOnStoreError(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO reservations").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := db.RunInTx(ctx, func(tx domain.ReservationStore) error {
		for _, d := range []string{"2025-01-06", "2025-01-13"} {
			if err := tx.InsertReservation(ctx, newReservation(1, d, "09:00", "10:00", models.StatusPending)); err != nil {
				return err
			}
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert reservation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CommitFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := db.RunInTx(ctx, func(tx domain.ReservationStore) error {
		return tx.InsertReservation(ctx, newReservation(1, "2025-01-06", "09:00", "10:00", models.StatusPending))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := db.RunInTx(context.Background(), func(domain.ReservationStore) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateChildrenStatus_ExecError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE reservations SET status").
		WithArgs(models.StatusApproved, int64(3), sqlmock.AnyArg(), int64(10)).
		WillReturnError(errors.New("database is locked"))

	_, err := db.UpdateChildrenStatus(context.Background(), 10, models.StatusApproved, 3, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update child reservations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_ErrorPathsAfterClose(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	t.Run("InsertReservation", func(t *testing.T) {
		assert.Error(t, db.InsertReservation(ctx, newReservation(1, "2025-01-06", "09:00", "10:00", models.StatusPending)))
	})
	t.Run("FindConflicts", func(t *testing.T) {
		_, err := db.FindConflicts(ctx, models.ConflictQuery{SpaceID: 1, Date: day("2025-01-06"), StartTime: "09:00", EndTime: "10:00"})
		assert.Error(t, err)
	})
	t.Run("ListStats", func(t *testing.T) {
		_, err := db.ListStats(ctx, day("2025-01-06"))
		assert.Error(t, err)
	})
	t.Run("CreateNotificationTask", func(t *testing.T) {
		assert.Error(t, db.CreateNotificationTask(ctx, &models.NotificationTask{}))
	})
	t.Run("RunInTx", func(t *testing.T) {
		assert.Error(t, db.RunInTx(ctx, func(domain.ReservationStore) error { return nil }))
	})
}
