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

// SessionRepository handles database operations for study sessions
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session and fills its ID
func (r *SessionRepository) Create(ctx context.Context, session *models.StudySession) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO study_sessions (user_id, topic_id, session_type, status, started_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		if err := r.db.QueryRowContext(ctx, query, session.UserID, session.TopicID, session.SessionType, session.Status, session.StartedAt).Scan(&session.ID); err != nil {
			return fmt.Errorf("failed to create study session: %w", err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO study_sessions (user_id, topic_id, session_type, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.UserID, session.TopicID, session.SessionType, session.Status, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create study session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	session.ID = id
	return nil
}

// GetByID returns a session by ID, or nil
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.StudySession, error) {
	var session models.StudySession
	query := r.db.Rebind("SELECT * FROM study_sessions WHERE id = ?")
	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}
	return &session, nil
}

// UpdateStatus moves a session to a new state, setting completed_at when
// given
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error {
	query := r.db.Rebind("UPDATE study_sessions SET status = ?, completed_at = ? WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, query, status, completedAt, id); err != nil {
		return fmt.Errorf("failed to update session %d status: %w", id, err)
	}
	return nil
}
