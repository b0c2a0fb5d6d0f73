package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	query := `INSERT INTO users (username, email, role, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, user.Username, user.Email, user.Role, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

// UpsertUsers inserts or refreshes seed users keyed by email.
func (db *DB) UpsertUsers(ctx context.Context, users []models.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO users (username, email, role, created_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                username = excluded.username,
                role = excluded.role`
	now := time.Now().UTC()
	for _, u := range users {
		role := u.Role
		if role == "" {
			role = models.RoleUser
		}
		if _, err := tx.ExecContext(ctx, query, u.Username, u.Email, role, now); err != nil {
			return fmt.Errorf("failed to upsert user %q: %w", u.Email, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT id, username, email, role, created_at FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT id, username, email, role, created_at FROM users WHERE email = ?`, email)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
