package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int
	bus.Subscribe(EventReservationCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventReservationCreated, ReservationEventPayload{ReservationID: 7, Kind: KindSeries, SeriesTotal: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventReservationCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded ReservationEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(7), decoded.ReservationID)
	assert.Equal(t, KindSeries, decoded.Kind)
	assert.Equal(t, 4, decoded.SeriesTotal)
}

func TestEventBus_HandlerErrorsDoNotStopOthers(t *testing.T) {
	bus := NewEventBus()
	var second int

	bus.Subscribe("event", func(*Event) error { return errors.New("first failed") })
	bus.Subscribe("event", func(*Event) error { second++; return nil })

	err := bus.Publish(&Event{Type: "event"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Equal(t, 1, second)
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "nobody"}))
}

func TestEventBus_NilAndBadPayload(t *testing.T) {
	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventReservationCreated, nil))

	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON("event", func() {}))
}

func TestStatusEventType(t *testing.T) {
	assert.Equal(t, EventReservationApproved, StatusEventType("approved"))
	assert.Equal(t, EventReservationRejected, StatusEventType("rejected"))
}
