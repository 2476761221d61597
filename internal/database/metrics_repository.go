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

// MetricsRepository handles database operations for performance metrics
type MetricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository creates a new repository instance
func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// ApplyAfterSession runs the load-modify-store cycle for one (user, topic)
// row inside a single transaction, creating the row on first use. Concurrent
// recordings for the same pair serialize on the transaction.
func (r *MetricsRepository) ApplyAfterSession(ctx context.Context, userID, topicID int64, apply func(models.PerformanceMetrics) models.PerformanceMetrics) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metrics update: %w", err)
	}
	defer tx.Rollback()

	selectQuery := "SELECT * FROM performance_metrics WHERE user_id = ? AND topic_id = ?"
	if r.db.DriverName() == "postgres" {
		selectQuery += " FOR UPDATE"
	}
	selectQuery = tx.Rebind(selectQuery)

	var current models.PerformanceMetrics
	exists := true
	err = tx.GetContext(ctx, &current, selectQuery, userID, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
		current = models.PerformanceMetrics{UserID: userID, TopicID: topicID}
	} else if err != nil {
		return fmt.Errorf("failed to load metrics for user %d topic %d: %w", userID, topicID, err)
	}

	updated := apply(current)
	now := time.Now().UTC()

	if exists {
		query := tx.Rebind(`
			UPDATE performance_metrics
			SET total_sessions = ?, total_questions = ?, total_correct = ?, average_score = ?,
			    last_studied_at = ?, next_review_at = ?, retention_score = ?, updated_at = ?
			WHERE user_id = ? AND topic_id = ?`)
		_, err = tx.ExecContext(ctx, query,
			updated.TotalSessions, updated.TotalQuestions, updated.TotalCorrect, updated.AverageScore,
			updated.LastStudiedAt, updated.NextReviewAt, updated.RetentionScore, now, userID, topicID)
	} else {
		query := tx.Rebind(`
			INSERT INTO performance_metrics
				(user_id, topic_id, total_sessions, total_questions, total_correct, average_score,
				 last_studied_at, next_review_at, retention_score, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, err = tx.ExecContext(ctx, query,
			userID, topicID, updated.TotalSessions, updated.TotalQuestions, updated.TotalCorrect,
			updated.AverageScore, updated.LastStudiedAt, updated.NextReviewAt, updated.RetentionScore, now, now)
	}
	if err != nil {
		return fmt.Errorf("failed to store metrics for user %d topic %d: %w", userID, topicID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics update: %w", err)
	}
	return nil
}

// GetByUserAndTopic returns one aggregate row, or nil
func (r *MetricsRepository) GetByUserAndTopic(ctx context.Context, userID, topicID int64) (*models.PerformanceMetrics, error) {
	var m models.PerformanceMetrics
	query := r.db.Rebind("SELECT * FROM performance_metrics WHERE user_id = ? AND topic_id = ?")
	err := r.db.GetContext(ctx, &m, query, userID, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	return &m, nil
}

// GetByUser returns all aggregate rows for a user
func (r *MetricsRepository) GetByUser(ctx context.Context, userID int64) ([]models.PerformanceMetrics, error) {
	var rows []models.PerformanceMetrics
	query := r.db.Rebind("SELECT * FROM performance_metrics WHERE user_id = ? ORDER BY topic_id")
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get metrics for user %d: %w", userID, err)
	}
	return rows, nil
}

// TopicsDue returns the user's topic IDs with next_review_at at or before now
func (r *MetricsRepository) TopicsDue(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	var ids []int64
	query := r.db.Rebind(`
		SELECT topic_id FROM performance_metrics
		WHERE user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?
		ORDER BY next_review_at`)
	if err := r.db.SelectContext(ctx, &ids, query, userID, now); err != nil {
		return nil, fmt.Errorf("failed to get due topics for user %d: %w", userID, err)
	}
	return ids, nil
}

// DueByUser returns due topic IDs grouped by user, most overdue first
func (r *MetricsRepository) DueByUser(ctx context.Context, now time.Time) (map[int64][]int64, error) {
	var rows []struct {
		UserID  int64 `db:"user_id"`
		TopicID int64 `db:"topic_id"`
	}
	query := r.db.Rebind(`
		SELECT user_id, topic_id FROM performance_metrics
		WHERE next_review_at IS NOT NULL AND next_review_at <= ?
		ORDER BY next_review_at`)
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to scan due reviews: %w", err)
	}

	out := make(map[int64][]int64)
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], row.TopicID)
	}
	return out, nil
}

// ProgressReport returns the user's per-topic aggregates joined with topic
// titles, for the XLSX export.
func (r *MetricsRepository) ProgressReport(ctx context.Context, userID int64) ([]models.ProgressRow, error) {
	var rows []models.ProgressRow
	query := r.db.Rebind(`
		SELECT t.title AS topic_title,
		       m.total_sessions, m.total_questions, m.total_correct, m.average_score,
		       m.last_studied_at, m.next_review_at
		FROM performance_metrics m
		JOIN topics t ON t.id = m.topic_id
		WHERE m.user_id = ?
		ORDER BY t.title`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to build progress report for user %d: %w", userID, err)
	}
	return rows, nil
}
