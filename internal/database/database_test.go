package database

import (
	"io"
	"testing"
	"time"

	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newReservation(spaceID int64, date, start, end, status string) *models.Reservation {
	return &models.Reservation{
		UserID:    1,
		SpaceID:   spaceID,
		Date:      day(date),
		StartTime: start,
		EndTime:   end,
		Reason:    "Weekly sync",
		Status:    status,
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	logger := zerolog.New(io.Discard)
	path := t.TempDir() + "/nested/dir/spacebook.db"

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	require.FileExists(t, path)
}
