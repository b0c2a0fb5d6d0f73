package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/models"
	"spacebook/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []notify.StatusChange
}

func (f *fakeSender) SendStatusChange(_ context.Context, n notify.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newQueue(t *testing.T, db *database.DB, sender notify.Sender, client *redis.Client, retry RetryPolicy) *NotificationQueue {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return NewNotificationQueue(db, sender, client, retry, 10*time.Millisecond, &logger)
}

func sampleReservation() *models.Reservation {
	return &models.Reservation{
		ID:        5,
		UserID:    1,
		SpaceID:   2,
		Date:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:00",
		Reason:    "Seminar",
		Status:    models.StatusApproved,
		SpaceName: "Room A",
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	q := newQueue(t, db, sender, nil, RetryPolicy{})
	ctx := context.Background()

	require.NoError(t, q.NotifyStatusChange(ctx, "ana@example.com", sampleReservation(), models.StatusApproved, "admin"))

	task, ok := q.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	q.processTask(ctx, &task)

	require.Equal(t, 1, sender.count())
	n := sender.sent[0]
	assert.Equal(t, int64(5), n.ReservationID)
	assert.Equal(t, "ana@example.com", n.Email)
	assert.Equal(t, "2025-01-06", n.Date)
	assert.Equal(t, "Room A", n.SpaceName)
	assert.Equal(t, "admin", n.ReviewerName)
	assert.Equal(t, models.StatusApproved, n.Status)

	stored, err := db.GetNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)

	// повторная доставка той же задачи пропускается
	q.processTask(ctx, &task)
	assert.Equal(t, 1, sender.count())
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{err: errors.New("smtp timeout")}
	q := newQueue(t, db, sender, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Minute})
	ctx := context.Background()

	require.NoError(t, q.NotifyStatusChange(ctx, "ana@example.com", sampleReservation(), models.StatusRejected, "admin"))
	task, ok := q.tryLocalQueue()
	require.True(t, ok)
	q.processTask(ctx, &task)

	stored, err := db.GetNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRetry, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
	assert.True(t, stored.NextRetryAt.After(time.Now()))
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "smtp timeout", *stored.LastError)

	due, err := db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "retry is scheduled in the future")
}

func TestProcessTaskFailToDeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sender := &fakeSender{err: errors.New("mailbox unavailable")}
	q := newQueue(t, db, sender, client, RetryPolicy{MaxRetries: 1})
	ctx := context.Background()

	require.NoError(t, q.NotifyStatusChange(ctx, "ana@example.com", sampleReservation(), models.StatusApproved, "admin"))

	task, ok := q.tryRedis(ctx)
	require.True(t, ok, "expected task in redis queue")
	q.processTask(ctx, &task)

	stored, err := db.GetNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)

	dead, err := client.LLen(ctx, deadLetterKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	q := newQueue(t, db, sender, nil, RetryPolicy{})
	ctx := context.Background()

	task := models.NotificationTask{ReservationID: 1, Email: "a@example.com", Payload: "not json"}
	require.NoError(t, db.CreateNotificationTask(ctx, &task))
	q.processTask(ctx, &task)

	stored, err := db.GetNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
	assert.Equal(t, 0, sender.count())
}

func TestNotifyStatusChange_Validation(t *testing.T) {
	q := newQueue(t, newTestDB(t), &fakeSender{}, nil, RetryPolicy{})
	ctx := context.Background()

	assert.Error(t, q.NotifyStatusChange(ctx, "", sampleReservation(), models.StatusApproved, "admin"))
	assert.Error(t, q.NotifyStatusChange(ctx, "ana@example.com", &models.Reservation{}, models.StatusApproved, "admin"))
}

func TestStartDeliversAndStops(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	q := newQueue(t, db, sender, nil, RetryPolicy{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Start(ctx)
		close(done)
	}()

	require.NoError(t, q.NotifyStatusChange(ctx, "ana@example.com", sampleReservation(), models.StatusApproved, "admin"))
	assert.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, sender.count())
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 5*time.Second, policy.NextDelay(5))
	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.WorkerConfig{MaxRetries: 4, InitialDelay: "3s", MaxDelay: "1m"})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 3*time.Second, p.InitialDelay)
	assert.Equal(t, time.Minute, p.MaxDelay)
	assert.Equal(t, float64(2), p.BackoffFactor)
}
