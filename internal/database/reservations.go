package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"spacebook/internal/models"
)

const selectReservation = `
	SELECT r.id, r.user_id, r.space_id, r.date, r.start_time, r.end_time, r.reason, r.status,
	       r.is_recurring, r.recurrence_type, r.recurrence_end_date, r.parent_reservation_id,
	       r.reviewed_by, r.reviewed_at, r.created_at,
	       COALESCE(u.username, ''), COALESCE(u.email, ''), COALESCE(s.name, ''), COALESCE(rv.username, ''),
	       (SELECT COUNT(*) FROM reservations c WHERE c.parent_reservation_id = r.id)
	FROM reservations r
	LEFT JOIN users u ON u.id = r.user_id
	LEFT JOIN spaces s ON s.id = r.space_id
	LEFT JOIN users rv ON rv.id = r.reviewed_by`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r          models.Reservation
		dateStr    string
		recurEnd   sql.NullString
		parentID   sql.NullInt64
		reviewedBy sql.NullInt64
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.SpaceID, &dateStr, &r.StartTime, &r.EndTime, &r.Reason, &r.Status,
		&r.IsRecurring, &r.RecurrenceType, &recurEnd, &parentID,
		&reviewedBy, &reviewedAt, &r.CreatedAt,
		&r.UserName, &r.UserEmail, &r.SpaceName, &r.ReviewerName, &r.ChildrenCount,
	)
	if err != nil {
		return nil, err
	}

	r.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation date %s: %w", dateStr, err)
	}
	if recurEnd.Valid {
		end, err := time.Parse(models.DateLayout, recurEnd.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recurrence end date %s: %w", recurEnd.String, err)
		}
		r.RecurrenceEndDate = &end
	}
	if parentID.Valid {
		r.ParentReservationID = &parentID.Int64
	}
	if reviewedBy.Valid {
		r.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time.UTC()
		r.ReviewedAt = &at
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return out, nil
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}

func (s queries) InsertReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
				user_id, space_id, date, start_time, end_time, reason, status,
				is_recurring, recurrence_type, recurrence_end_date, parent_reservation_id,
				reviewed_by, reviewed_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	result, err := s.q.ExecContext(ctx, query,
		r.UserID,
		r.SpaceID,
		r.DateString(),
		r.StartTime,
		r.EndTime,
		r.Reason,
		r.Status,
		r.IsRecurring,
		r.RecurrenceType,
		formatDate(r.RecurrenceEndDate),
		r.ParentReservationID,
		r.ReviewedBy,
		r.ReviewedAt,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

func (s queries) FindByID(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := scanReservation(s.q.QueryRowContext(ctx, selectReservation+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return r, nil
}

// FindConflicts returns non-rejected reservations on the same space and date
// whose half-open interval intersects [StartTime, EndTime).
func (s queries) FindConflicts(ctx context.Context, q models.ConflictQuery) ([]*models.Reservation, error) {
	query := selectReservation + `
		WHERE r.space_id = ? AND r.date = ? AND r.status <> ?
		  AND r.start_time < ? AND ? < r.end_time
		  AND (? = 0 OR r.id <> ?)
		ORDER BY r.start_time`
	rows, err := s.q.QueryContext(ctx, query,
		q.SpaceID, q.Date.Format(models.DateLayout), models.StatusRejected,
		q.EndTime, q.StartTime,
		q.ExcludeID, q.ExcludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find conflicts: %w", err)
	}
	return collectReservations(rows)
}

// UpdateStatus decides a pending reservation. It returns ErrConcurrentModification
// when the row exists but is no longer pending.
func (s queries) UpdateStatus(ctx context.Context, id int64, status string, reviewerID int64, at time.Time) (*models.Reservation, error) {
	query := `UPDATE reservations SET status = ?, reviewed_by = ?, reviewed_at = ?
              WHERE id = ? AND status = ?`
	result, err := s.q.ExecContext(ctx, query, status, reviewerID, at.UTC(), id, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return current, ErrConcurrentModification
	}
	return current, nil
}

// UpdateChildrenStatus force-sets every child of parentID in one statement.
func (s queries) UpdateChildrenStatus(ctx context.Context, parentID int64, status string, reviewerID int64, at time.Time) ([]*models.Reservation, error) {
	query := `UPDATE reservations SET status = ?, reviewed_by = ?, reviewed_at = ?
              WHERE parent_reservation_id = ?`
	if _, err := s.q.ExecContext(ctx, query, status, reviewerID, at.UTC(), parentID); err != nil {
		return nil, fmt.Errorf("failed to update child reservations: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, selectReservation+` WHERE r.parent_reservation_id = ? ORDER BY r.date`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child reservations: %w", err)
	}
	return collectReservations(rows)
}

func (s queries) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID > 0 {
		where = append(where, "r.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.SpaceID > 0 {
		where = append(where, "r.space_id = ?")
		args = append(args, filter.SpaceID)
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Date != nil {
		where = append(where, "r.date = ?")
		args = append(args, filter.Date.Format(models.DateLayout))
	}
	if filter.From != nil {
		where = append(where, "r.date >= ?")
		args = append(args, filter.From.Format(models.DateLayout))
	}
	if filter.To != nil {
		where = append(where, "r.date <= ?")
		args = append(args, filter.To.Format(models.DateLayout))
	}
	if !filter.IncludeChildren {
		where = append(where, "r.parent_reservation_id IS NULL")
	}

	query := selectReservation
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	query += " ORDER BY r.date, r.start_time, r.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return collectReservations(rows)
}

func (s queries) ListStats(ctx context.Context, day time.Time) (*models.Stats, error) {
	var stats models.Stats
	dayStr := day.Format(models.DateLayout)

	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE date = ? AND status = ?`,
		dayStr, models.StatusApproved).Scan(&stats.TodayApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to count approved reservations: %w", err)
	}

	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE status = ?`,
		models.StatusPending).Scan(&stats.PendingCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending reservations: %w", err)
	}

	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spaces WHERE id NOT IN (
            SELECT space_id FROM reservations WHERE date = ? AND status = ?
        )`,
		dayStr, models.StatusApproved).Scan(&stats.FreeSpacesToday)
	if err != nil {
		return nil, fmt.Errorf("failed to count free spaces: %w", err)
	}

	return &stats, nil
}
