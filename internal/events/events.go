package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	EventReservationCreated  = "reservation_created"
	EventReservationApproved = "reservation_approved"
	EventReservationRejected = "reservation_rejected"
)

// Kinds of created reservations.
const (
	KindSingle = "single"
	KindSeries = "series"
)

// ReservationEventPayload is the reservation snapshot carried by events.
type ReservationEventPayload struct {
	ReservationID int64  `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	SpaceID       int64  `json:"space_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Kind          string `json:"kind,omitempty"`
	SeriesTotal   int    `json:"series_total,omitempty"`
	Skipped       int    `json:"skipped,omitempty"`
	ChildrenCount int    `json:"children_count,omitempty"`
	ChangedByID   int64  `json:"changed_by_id,omitempty"`
}

// StatusEventType maps a decided status to its event type.
func StatusEventType(status string) string {
	if status == "approved" {
		return EventReservationApproved
	}
	return EventReservationRejected
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber synchronously. A failing handler does not
// stop the others; their errors are joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
