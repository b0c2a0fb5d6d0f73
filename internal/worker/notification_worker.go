package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/domain"
	"spacebook/internal/metrics"
	"spacebook/internal/models"
	"spacebook/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "notifications:queue"
	deadLetterKey = "notifications:deadletter"
)

// TaskStore persists queued notifications.
type TaskStore interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// NotificationQueue accepts status notices and delivers them in the
// background. Tasks are persisted first, then handed over through redis when
// available, an in-memory channel otherwise, and finally DB polling.
type NotificationQueue struct {
	store        TaskStore
	sender       notify.Sender
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.NotificationTask
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

var _ domain.Notifier = (*NotificationQueue)(nil)

// NewNotificationQueue builds a worker with sane defaults.
func NewNotificationQueue(
	store TaskStore,
	sender notify.Sender,
	redisClient *redis.Client,
	retry RetryPolicy,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *NotificationQueue {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	l := logger.With().Str("component", "notification_worker").Logger()

	return &NotificationQueue{
		store:        store,
		sender:       sender,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.NotificationTask, models.WorkerQueueSize),
		pollInterval: pollInterval,
		batchSize:    20,
		logger:       &l,
	}
}

// NotifyStatusChange persists and schedules a notice for the reservation owner.
func (q *NotificationQueue) NotifyStatusChange(ctx context.Context, email string, r *models.Reservation, newStatus, reviewerName string) error {
	if email == "" {
		return errors.New("recipient email is required")
	}
	if r == nil || r.ID == 0 {
		return errors.New("reservation id is required")
	}

	payload, err := json.Marshal(notify.StatusChange{
		ReservationID: r.ID,
		Email:         email,
		UserName:      r.UserName,
		SpaceName:     r.SpaceName,
		Date:          r.DateString(),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Reason:        r.Reason,
		Status:        newStatus,
		ReviewerName:  reviewerName,
		IsRecurring:   r.IsSeriesParent(),
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		ReservationID: r.ID,
		Email:         email,
		Payload:       string(payload),
		Status:        models.TaskStatusPending,
	}
	if err := q.store.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}
	metrics.IncNotification("queued")

	if q.redis != nil {
		if err := q.pushRedis(ctx, redisQueueKey, &task); err != nil {
			q.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case q.queue <- task:
	default:
		q.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}
	return nil
}

// Start launches main loop; stops when ctx is done.
func (q *NotificationQueue) Start(ctx context.Context) {
	q.logger.Info().Msg("Notification worker started")
	defer q.logger.Info().Msg("Notification worker stopped")

	for ctx.Err() == nil {
		if t, ok := q.tryLocalQueue(); ok {
			q.processTask(ctx, &t)
			continue
		}

		if t, ok := q.tryRedis(ctx); ok {
			q.processTask(ctx, &t)
			continue
		}

		if n := q.processDue(ctx); n == 0 {
			q.sleep(ctx, q.pollInterval)
		}
	}
}

// processDue delivers tasks that are due according to the store.
func (q *NotificationQueue) processDue(ctx context.Context) int {
	tasks, err := q.store.GetPendingNotificationTasks(ctx, q.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			q.logger.Error().Err(err).Msg("Fetch pending notification tasks")
		}
		return 0
	}
	for i := range tasks {
		q.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (q *NotificationQueue) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (q *NotificationQueue) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-q.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (q *NotificationQueue) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if q.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := q.redis.BRPop(ctx, time.Second, redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			q.logger.Warn().Err(err).Msg("Redis BRPOP error")
		}
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		q.logger.Error().Err(err).Msg("Decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (q *NotificationQueue) processTask(ctx context.Context, task *models.NotificationTask) {
	log := q.logger.With().Int64("task_id", task.ID).Int64("reservation_id", task.ReservationID).Logger()

	// Копия из очереди могла быть уже обработана через опрос БД
	current, err := q.store.GetNotificationTask(ctx, task.ID)
	if err != nil {
		log.Error().Err(err).Msg("Load notification task")
		return
	}
	if current.Status == models.TaskStatusCompleted || current.Status == models.TaskStatusFailed {
		return
	}
	task = current

	var n notify.StatusChange
	if err := json.Unmarshal([]byte(task.Payload), &n); err != nil {
		q.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := q.sender.SendStatusChange(ctx, n); err != nil {
		q.retryOrFail(ctx, task, err)
		return
	}

	if err := q.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("Mark notification completed")
	}
	metrics.IncNotification("sent")
}

func (q *NotificationQueue) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= q.retryPolicy.MaxRetries {
		q.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(q.retryPolicy.NextDelay(attempt))
	if err := q.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		q.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark notification retry")
	}
	q.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Notification delivery failed, will retry")
	metrics.IncNotification("retry")
}

func (q *NotificationQueue) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	if err := q.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		q.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark notification failed")
	}
	q.logger.Error().Err(cause).Int64("task_id", task.ID).Msg("Notification dead-lettered")
	metrics.IncNotification("failed")
	if q.redis != nil {
		if err := q.pushRedis(ctx, deadLetterKey, task); err != nil {
			q.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push")
		}
	}
}

func (q *NotificationQueue) pushRedis(ctx context.Context, key string, task *models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, key, data).Err()
}
