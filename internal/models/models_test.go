package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservation_Helpers(t *testing.T) {
	parentID := int64(7)
	r := &Reservation{
		Date:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:30",
	}

	t.Run("DateString", func(t *testing.T) {
		assert.Equal(t, "2025-01-06", r.DateString())
	})

	t.Run("Interval", func(t *testing.T) {
		iv, err := r.Interval()
		require.NoError(t, err)
		assert.Equal(t, "09:00-10:30", iv.String())

		bad := &Reservation{StartTime: "9", EndTime: "10:00"}
		_, err = bad.Interval()
		assert.Error(t, err)
	})

	t.Run("IsSeriesParent", func(t *testing.T) {
		assert.False(t, r.IsSeriesParent())

		parent := &Reservation{IsRecurring: true}
		assert.True(t, parent.IsSeriesParent())

		child := &Reservation{ParentReservationID: &parentID}
		assert.False(t, child.IsSeriesParent())
	})
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleUser}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}

func TestIsDecided(t *testing.T) {
	assert.False(t, IsDecided(StatusPending))
	assert.True(t, IsDecided(StatusApproved))
	assert.True(t, IsDecided(StatusRejected))
	assert.False(t, IsDecided("canceled"))
}
