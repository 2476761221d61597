package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/studyagent/pkg/models"
)

// ScheduleRepository handles database operations for schedule configs
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new repository instance
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Upsert stores the user's reminder preference, one row per user
func (r *ScheduleRepository) Upsert(ctx context.Context, cfg *models.ScheduleConfig) error {
	existing, err := r.GetByUser(ctx, cfg.UserID)
	if err != nil {
		return err
	}

	if existing == nil {
		query := r.db.Rebind(`
			INSERT INTO schedule_configs (user_id, is_enabled, preferred_time, days_of_week, questions_per_session)
			VALUES (?, ?, ?, ?, ?)`)
		if _, err := r.db.ExecContext(ctx, query, cfg.UserID, cfg.IsEnabled, cfg.PreferredTime, cfg.DaysOfWeek, cfg.QuestionsPerSession); err != nil {
			return fmt.Errorf("failed to create schedule config: %w", err)
		}
		return nil
	}

	query := r.db.Rebind(`
		UPDATE schedule_configs
		SET is_enabled = ?, preferred_time = ?, days_of_week = ?, questions_per_session = ?
		WHERE user_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, cfg.IsEnabled, cfg.PreferredTime, cfg.DaysOfWeek, cfg.QuestionsPerSession, cfg.UserID); err != nil {
		return fmt.Errorf("failed to update schedule config: %w", err)
	}
	return nil
}

// GetByUser returns the user's schedule config, or nil
func (r *ScheduleRepository) GetByUser(ctx context.Context, userID int64) (*models.ScheduleConfig, error) {
	var cfg models.ScheduleConfig
	query := r.db.Rebind("SELECT * FROM schedule_configs WHERE user_id = ?")
	err := r.db.GetContext(ctx, &cfg, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule config for user %d: %w", userID, err)
	}
	return &cfg, nil
}

// EnabledConfigs returns every enabled reminder preference
func (r *ScheduleRepository) EnabledConfigs(ctx context.Context) ([]models.ScheduleConfig, error) {
	var configs []models.ScheduleConfig
	if err := r.db.SelectContext(ctx, &configs, "SELECT * FROM schedule_configs WHERE is_enabled = true"); err != nil {
		return nil, fmt.Errorf("failed to get enabled schedule configs: %w", err)
	}
	return configs, nil
}
