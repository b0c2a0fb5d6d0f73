package metrics

import (
	"strconv"
	"sync"
	"time"

	"spacebook/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spacebook"

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations materialized, by request kind.",
		},
		[]string{"kind"},
	)

	conflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_total",
		Help:      "Booking attempts rejected or skipped because the slot was taken.",
	})

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Reservation decisions by resulting status.",
		},
		[]string{"status"},
	)

	cascadeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_failures_total",
		Help:      "Series decisions whose children could not be updated.",
	})

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery outcomes.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationsCreated,
			conflicts,
			statusChanges,
			cascadeFailures,
			notifications,
			httpRequests,
			httpDuration,
		)
	})
}

func AddReservationsCreated(kind string, n int) {
	reservationsCreated.WithLabelValues(kind).Add(float64(n))
}

func IncConflict() {
	conflicts.Inc()
}

// AddConflicts counts n skipped occurrences.
func AddConflicts(n int) {
	conflicts.Add(float64(n))
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

func IncCascadeFailure() {
	cascadeFailures.Inc()
}

// IncNotification records a delivery outcome: sent, retry, failed or queued.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

func ObserveHTTP(endpoint string, code int, took time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

// Subscriber is the part of the event bus the metrics need.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler)
}

// SubscribeEvents feeds reservation events into the counters.
func SubscribeEvents(bus Subscriber) {
	bus.Subscribe(events.EventReservationCreated, func(e *events.Event) error {
		var p events.ReservationEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		n := p.SeriesTotal
		if n == 0 {
			n = 1
		}
		AddReservationsCreated(p.Kind, n)
		if p.Skipped > 0 {
			AddConflicts(p.Skipped)
		}
		return nil
	})

	for _, t := range []string{events.EventReservationApproved, events.EventReservationRejected} {
		bus.Subscribe(t, func(e *events.Event) error {
			var p events.ReservationEventPayload
			if err := e.Decode(&p); err != nil {
				return err
			}
			IncStatusChange(p.Status)
			return nil
		})
	}
}
