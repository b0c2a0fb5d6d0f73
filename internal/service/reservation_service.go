package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/metrics"
	"spacebook/internal/models"
	"spacebook/internal/schedule"
	"spacebook/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	CascadeRetries int
	CascadeBackoff worker.RetryPolicy
	Location       *time.Location
	Now            func() time.Time
}

type ReservationService struct {
	store    domain.Store
	spaces   domain.SpaceDirectory
	users    domain.UserDirectory
	notifier domain.Notifier
	locker   domain.SlotLocker
	events   domain.EventPublisher
	validate *validator.Validate
	opts     Options
	logger   *zerolog.Logger
}

var _ domain.ReservationService = (*ReservationService)(nil)

func NewReservationService(
	store domain.Store,
	spaces domain.SpaceDirectory,
	users domain.UserDirectory,
	notifier domain.Notifier,
	locker domain.SlotLocker,
	publisher domain.EventPublisher,
	opts Options,
	logger *zerolog.Logger,
) *ReservationService {
	if opts.CascadeRetries <= 0 {
		opts.CascadeRetries = models.DefaultCascadeRetries
	}
	if opts.CascadeBackoff.InitialDelay <= 0 {
		opts.CascadeBackoff.InitialDelay = 50 * time.Millisecond
	}
	if opts.CascadeBackoff.MaxDelay <= 0 {
		opts.CascadeBackoff.MaxDelay = time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		store:    store,
		spaces:   spaces,
		users:    users,
		notifier: notifier,
		locker:   locker,
		events:   publisher,
		validate: validator.New(),
		opts:     opts,
		logger:   logger,
	}
}

func (s *ReservationService) CreateSingle(ctx context.Context, in domain.CreateSingleInput) (*models.Reservation, error) {
	req, err := validateSingle(s.validate, in)
	if err != nil {
		return nil, err
	}

	actor, err := s.checkRefs(ctx, in.ActorID, in.SpaceID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, []string{domain.SlotKey(in.SpaceID, req.date)})
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.opts.Now().UTC()
	r := &models.Reservation{
		UserID:    in.ActorID,
		SpaceID:   in.SpaceID,
		Date:      req.date,
		StartTime: req.start(),
		EndTime:   req.end(),
		Reason:    req.reason,
		Status:    models.StatusPending,
		CreatedAt: now,
	}
	// Администратор бронирует сразу с подтверждением
	if actor.IsAdmin() {
		r.Status = models.StatusApproved
		r.ReviewedBy = &actor.ID
		r.ReviewedAt = &now
	}

	err = s.store.RunInTx(ctx, func(tx domain.ReservationStore) error {
		if err := s.ensureFree(ctx, tx, r); err != nil {
			return err
		}
		return tx.InsertReservation(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("space_id", r.SpaceID).
		Int64("user_id", r.UserID).
		Str("date", r.DateString()).
		Str("status", r.Status).
		Msg("Reservation created")

	s.publish(events.EventReservationCreated, events.ReservationEventPayload{
		ReservationID: r.ID,
		UserID:        r.UserID,
		SpaceID:       r.SpaceID,
		Date:          r.DateString(),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Status:        r.Status,
		Kind:          events.KindSingle,
	})

	return r, nil
}

func (s *ReservationService) CreateRecurring(ctx context.Context, in domain.CreateRecurringInput) (*domain.SeriesResult, error) {
	req, err := validateRecurring(s.validate, in)
	if err != nil {
		return nil, err
	}

	if _, err := s.checkRefs(ctx, in.ActorID, in.SpaceID); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.dates)+1)
	keys = append(keys, domain.SlotKey(in.SpaceID, req.date))
	for _, d := range req.dates {
		keys = append(keys, domain.SlotKey(in.SpaceID, d))
	}
	unlock, err := s.lock(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.opts.Now().UTC()
	until := req.until
	parent := &models.Reservation{
		UserID:            in.ActorID,
		SpaceID:           in.SpaceID,
		Date:              req.date,
		StartTime:         req.start(),
		EndTime:           req.end(),
		Reason:            req.reason,
		Status:            models.StatusPending,
		IsRecurring:       true,
		RecurrenceType:    string(req.cadence),
		RecurrenceEndDate: &until,
		CreatedAt:         now,
	}

	var result *domain.SeriesResult
	err = s.store.RunInTx(ctx, func(tx domain.ReservationStore) error {
		res := &domain.SeriesResult{}

		if err := s.ensureFree(ctx, tx, parent); err != nil {
			return err
		}
		if err := tx.InsertReservation(ctx, parent); err != nil {
			return err
		}
		res.Reservations = append(res.Reservations, parent)

		for _, d := range req.dates {
			child := &models.Reservation{
				UserID:              in.ActorID,
				SpaceID:             in.SpaceID,
				Date:                d,
				StartTime:           parent.StartTime,
				EndTime:             parent.EndTime,
				Reason:              parent.Reason,
				Status:              models.StatusPending,
				ParentReservationID: &parent.ID,
				CreatedAt:           now,
			}
			busy, err := s.hasConflict(ctx, tx, child)
			if err != nil {
				return err
			}
			if busy {
				res.SkippedDates = append(res.SkippedDates, d)
				continue
			}
			if err := tx.InsertReservation(ctx, child); err != nil {
				return err
			}
			res.Reservations = append(res.Reservations, child)
		}

		res.Total = len(res.Reservations)
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("reservation_id", parent.ID).
		Int64("space_id", parent.SpaceID).
		Int64("user_id", parent.UserID).
		Str("cadence", parent.RecurrenceType).
		Int("total", result.Total).
		Int("skipped", len(result.SkippedDates)).
		Msg("Recurring reservation created")

	s.publish(events.EventReservationCreated, events.ReservationEventPayload{
		ReservationID: parent.ID,
		UserID:        parent.UserID,
		SpaceID:       parent.SpaceID,
		Date:          parent.DateString(),
		StartTime:     parent.StartTime,
		EndTime:       parent.EndTime,
		Status:        parent.Status,
		Kind:          events.KindSeries,
		SeriesTotal:   result.Total,
		Skipped:       len(result.SkippedDates),
	})

	return result, nil
}

func (s *ReservationService) SetStatus(ctx context.Context, in domain.SetStatusInput) (*domain.StatusChangeResult, error) {
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}
	if !models.IsDecided(in.Status) {
		return nil, &domain.InvalidStatusError{Status: in.Status}
	}

	current, err := s.store.FindByID(ctx, in.ReservationID)
	if err != nil {
		return nil, s.translate(err, in.ReservationID)
	}
	if current.Status != models.StatusPending {
		return nil, &domain.InvalidTransitionError{ID: current.ID, From: current.Status, To: in.Status}
	}

	reviewer, err := s.users.GetUser(ctx, in.ActorID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &domain.ValidationError{Field: "user_id", Reason: domain.ReasonInvalidUser}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}

	at := s.opts.Now().UTC()
	updated, err := s.store.UpdateStatus(ctx, in.ReservationID, in.Status, reviewer.ID, at)
	if errors.Is(err, database.ErrConcurrentModification) {
		from := models.StatusPending
		if updated != nil {
			from = updated.Status
		}
		return nil, &domain.InvalidTransitionError{ID: in.ReservationID, From: from, To: in.Status}
	}
	if err != nil {
		return nil, s.translate(err, in.ReservationID)
	}

	result := &domain.StatusChangeResult{Reservation: updated}
	if updated.IsSeriesParent() {
		result.Children, result.CascadeErr = s.cascade(ctx, updated.ID, in.Status, reviewer.ID, at)
		if result.CascadeErr != nil {
			metrics.IncCascadeFailure()
			s.logger.Warn().Err(result.CascadeErr).Int64("reservation_id", updated.ID).Msg("Series children were not updated")
		}
	}

	s.logger.Info().
		Int64("reservation_id", updated.ID).
		Str("status", updated.Status).
		Int64("reviewer_id", reviewer.ID).
		Int("children", len(result.Children)).
		Msg("Reservation status changed")

	s.notifyOwner(ctx, updated, reviewer.Username)

	s.publish(events.StatusEventType(updated.Status), events.ReservationEventPayload{
		ReservationID: updated.ID,
		UserID:        updated.UserID,
		SpaceID:       updated.SpaceID,
		Date:          updated.DateString(),
		StartTime:     updated.StartTime,
		EndTime:       updated.EndTime,
		Status:        updated.Status,
		ChildrenCount: len(result.Children),
		ChangedByID:   reviewer.ID,
	})

	return result, nil
}

// CheckConflict reports whether the slot overlaps a non-rejected reservation.
func (s *ReservationService) CheckConflict(ctx context.Context, q models.ConflictQuery) (bool, error) {
	q, err := validateConflictQuery(q)
	if err != nil {
		return false, err
	}
	found, err := s.store.FindConflicts(ctx, q)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (s *ReservationService) ComputeStats(ctx context.Context) (*models.Stats, error) {
	today := schedule.Day(s.opts.Now().In(s.opts.Location))
	return s.store.ListStats(ctx, today)
}

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	if id <= 0 {
		return nil, &domain.ValidationError{Field: "id", Reason: domain.ReasonInvalidID}
	}
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return r, nil
}

// TodayReservations lists the approved occurrences booked for the current day.
func (s *ReservationService) TodayReservations(ctx context.Context) ([]*models.Reservation, error) {
	today := schedule.Day(s.opts.Now().In(s.opts.Location))
	return s.store.ListReservations(ctx, models.ReservationFilter{
		Date:            &today,
		Status:          models.StatusApproved,
		IncludeChildren: true,
	})
}

func (s *ReservationService) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	if filter.Status != "" && filter.Status != models.StatusPending && !models.IsDecided(filter.Status) {
		return nil, &domain.InvalidStatusError{Status: filter.Status}
	}
	return s.store.ListReservations(ctx, filter)
}

// checkRefs resolves the actor and makes sure the space exists.
func (s *ReservationService) checkRefs(ctx context.Context, actorID, spaceID int64) (*models.User, error) {
	actor, err := s.users.GetUser(ctx, actorID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &domain.ValidationError{Field: "user_id", Reason: domain.ReasonInvalidUser}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.spaces.SpaceExists(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check space: %w", err)
	}
	if !ok {
		return nil, &domain.NotFoundError{Entity: "space", ID: spaceID}
	}
	return actor, nil
}

func (s *ReservationService) hasConflict(ctx context.Context, tx domain.ReservationStore, r *models.Reservation) (bool, error) {
	found, err := tx.FindConflicts(ctx, models.ConflictQuery{
		SpaceID:   r.SpaceID,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (s *ReservationService) ensureFree(ctx context.Context, tx domain.ReservationStore, r *models.Reservation) error {
	busy, err := s.hasConflict(ctx, tx, r)
	if err != nil {
		return err
	}
	if busy {
		metrics.IncConflict()
		return &domain.ConflictError{SpaceID: r.SpaceID, Date: r.DateString(), Start: r.StartTime, End: r.EndTime}
	}
	return nil
}

// lock acquires slot locks in sorted order and returns a release for all of them.
func (s *ReservationService) lock(ctx context.Context, keys []string) (domain.Unlock, error) {
	if s.locker == nil {
		return func() {}, nil
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]domain.Unlock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	prev := ""
	for _, key := range sorted {
		if key == prev {
			continue
		}
		prev = key

		unlock, err := s.locker.Acquire(ctx, key)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to lock %s: %w", key, err)
		}
		held = append(held, unlock)
	}
	return release, nil
}

// cascade force-sets the children of a decided parent with bounded retries.
func (s *ReservationService) cascade(ctx context.Context, parentID int64, status string, reviewerID int64, at time.Time) ([]*models.Reservation, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.CascadeRetries; attempt++ {
		children, err := s.store.UpdateChildrenStatus(ctx, parentID, status, reviewerID, at)
		if err == nil {
			return children, nil
		}
		lastErr = err

		s.logger.Warn().Err(err).
			Int64("reservation_id", parentID).
			Int("attempt", attempt).
			Msg("Failed to update series children")

		if attempt == s.opts.CascadeRetries {
			break
		}
		timer := time.NewTimer(s.opts.CascadeBackoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &domain.CascadeError{ParentID: parentID, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return nil, &domain.CascadeError{ParentID: parentID, Attempts: s.opts.CascadeRetries, Err: lastErr}
}

func (s *ReservationService) notifyOwner(ctx context.Context, r *models.Reservation, reviewerName string) {
	if s.notifier == nil {
		return
	}

	email := r.UserEmail
	if email == "" {
		owner, err := s.users.GetUser(ctx, r.UserID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", r.UserID).Msg("Failed to resolve reservation owner")
			return
		}
		email = owner.Email
	}
	if email == "" {
		return
	}

	if err := s.notifier.NotifyStatusChange(ctx, email, r, r.Status, reviewerName); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to notify reservation owner")
	}
}

func (s *ReservationService) publish(eventType string, payload events.ReservationEventPayload) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to publish event")
	}
}

func (s *ReservationService) translate(err error, id int64) error {
	if errors.Is(err, database.ErrNotFound) {
		return &domain.NotFoundError{Entity: "reservation", ID: id}
	}
	return err
}
