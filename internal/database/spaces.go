package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/models"
)

func (db *DB) CreateSpace(ctx context.Context, space *models.Space) error {
	query := `INSERT INTO spaces (name, capacity, category, location, description, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		space.Name, space.Capacity, space.Category, space.Location, space.Description, now)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	space.ID = id
	space.CreatedAt = now
	return nil
}

// UpsertSpaces inserts or refreshes seed spaces keyed by name.
func (db *DB) UpsertSpaces(ctx context.Context, spaces []models.Space) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO spaces (name, capacity, category, location, description, created_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(name) DO UPDATE SET
                capacity = excluded.capacity,
                category = excluded.category,
                location = excluded.location,
                description = excluded.description`
	now := time.Now().UTC()
	for _, s := range spaces {
		if _, err := tx.ExecContext(ctx, query, s.Name, s.Capacity, s.Category, s.Location, s.Description, now); err != nil {
			return fmt.Errorf("failed to upsert space %q: %w", s.Name, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	var s models.Space
	query := `SELECT id, name, capacity, category, location, description, created_at FROM spaces WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Capacity, &s.Category, &s.Location, &s.Description, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &s, nil
}

func (db *DB) ListSpaces(ctx context.Context) ([]models.Space, error) {
	query := `SELECT id, name, capacity, category, location, description, created_at FROM spaces ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.Space
	for rows.Next() {
		var s models.Space
		if err := rows.Scan(&s.ID, &s.Name, &s.Capacity, &s.Category, &s.Location, &s.Description, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, s)
	}
	return spaces, rows.Err()
}

func (db *DB) SpaceExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM spaces WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check space: %w", err)
	}
	return exists, nil
}
