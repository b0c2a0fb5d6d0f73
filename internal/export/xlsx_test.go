package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spacebook/internal/config"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubLister struct {
	rows   []*models.Reservation
	err    error
	filter models.ReservationFilter
}

func (s *stubLister) ListReservations(_ context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	s.filter = filter
	return s.rows, s.err
}

func sample() []*models.Reservation {
	parentID := int64(1)
	return []*models.Reservation{
		{
			ID: 1, Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), StartTime: "09:00", EndTime: "10:00",
			SpaceName: "Room A", UserName: "anna", UserEmail: "anna@example.com", Reason: "Sync",
			Status: models.StatusApproved, IsRecurring: true, RecurrenceType: "weekly", ChildrenCount: 1,
		},
		{
			ID: 2, Date: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), StartTime: "09:00", EndTime: "10:00",
			SpaceName: "Room A", UserName: "anna", Reason: "Sync", Status: models.StatusPending,
			ParentReservationID: &parentID,
		},
	}
}

func TestXLSXExporter_Write(t *testing.T) {
	lister := &stubLister{rows: sample()}
	logger := zerolog.New(io.Discard)
	e := NewXLSXExporter(lister, config.ExportConfig{SheetName: "Брони"}, &logger)

	var buf bytes.Buffer
	n, err := e.Write(context.Background(), &buf, models.ReservationFilter{IncludeChildren: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, lister.filter.IncludeChildren)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Брони"}, f.GetSheetList())
	rows, err := f.GetRows("Брони")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"1", "2025-01-06", "09:00", "10:00", "Room A", "anna", "anna@example.com", "Sync", "approved", "weekly (1)"}, rows[1][:10])
	assert.Equal(t, "#1", rows[2][9])
}

func TestXLSXExporter_SaveFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := NewXLSXExporter(&stubLister{rows: sample()}, config.ExportConfig{Path: dir}, nil)
	e.now = func() time.Time { return time.Date(2025, 1, 6, 12, 30, 0, 0, time.UTC) }

	path, err := e.SaveFile(context.Background(), models.ReservationFilter{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reservations_20250106_123000.xlsx"), path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Reservations"}, f.GetSheetList())
}

func TestXLSXExporter_ListError(t *testing.T) {
	e := NewXLSXExporter(&stubLister{err: errors.New("boom")}, config.ExportConfig{}, nil)

	_, err := e.Write(context.Background(), io.Discard, models.ReservationFilter{})
	assert.Error(t, err)

	_, err = e.SaveFile(context.Background(), models.ReservationFilter{})
	assert.Error(t, err)
}
