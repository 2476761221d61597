package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/studyagent/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram creates the user on first contact and refreshes the
// profile fields on every subsequent /start. Returns the stored user.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	existing, err := r.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing == nil {
		query := r.db.Rebind(`
			INSERT INTO users (telegram_id, username, first_name, last_name, timezone, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'UTC', true, ?, ?)`)
		if _, err := r.db.ExecContext(ctx, query, telegramID, username, firstName, lastName, now, now); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return r.GetByTelegramID(ctx, telegramID)
	}

	query := r.db.Rebind(`
		UPDATE users SET username = ?, first_name = ?, last_name = ?, is_active = true, updated_at = ?
		WHERE telegram_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, username, firstName, lastName, now, telegramID); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return r.GetByTelegramID(ctx, telegramID)
}

// GetByTelegramID returns the user for a Telegram account, or nil
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT * FROM users WHERE telegram_id = ?")
	err := r.db.GetContext(ctx, &user, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return &user, nil
}

// GetByID returns a user by internal ID, or nil
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT * FROM users WHERE id = ?")
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}
