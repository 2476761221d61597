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

// AssessmentRepository handles database operations for assessments
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new repository instance
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts an unanswered assessment and fills its ID
func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO assessments (session_id, question, correct_answer)
			VALUES ($1, $2, $3)
			RETURNING id`
		if err := r.db.QueryRowContext(ctx, query, a.SessionID, a.Question, a.CorrectAnswer).Scan(&a.ID); err != nil {
			return fmt.Errorf("failed to create assessment: %w", err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO assessments (session_id, question, correct_answer)
		VALUES (?, ?, ?)`,
		a.SessionID, a.Question, a.CorrectAnswer)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	a.ID = id
	return nil
}

// GetByID returns an assessment by ID, or nil
func (r *AssessmentRepository) GetByID(ctx context.Context, id int64) (*models.Assessment, error) {
	var a models.Assessment
	query := r.db.Rebind("SELECT * FROM assessments WHERE id = ?")
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment by ID: %w", err)
	}
	return &a, nil
}

// GetBySession returns a session's assessments in creation order
func (r *AssessmentRepository) GetBySession(ctx context.Context, sessionID int64) ([]models.Assessment, error) {
	var assessments []models.Assessment
	query := r.db.Rebind("SELECT * FROM assessments WHERE session_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &assessments, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get assessments for session %d: %w", sessionID, err)
	}
	return assessments, nil
}

// SaveEvaluation writes the grading result. The answered_at guard makes the
// write one-shot even if two submissions race.
func (r *AssessmentRepository) SaveEvaluation(ctx context.Context, id int64, userAnswer string, eval models.Evaluation, answeredAt time.Time) error {
	query := r.db.Rebind(`
		UPDATE assessments
		SET user_answer = ?, score = ?, is_correct = ?, feedback = ?, answered_at = ?
		WHERE id = ? AND answered_at IS NULL`)
	result, err := r.db.ExecContext(ctx, query, userAnswer, eval.Score, eval.IsCorrect, eval.Feedback, answeredAt, id)
	if err != nil {
		return fmt.Errorf("failed to save evaluation for assessment %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assessment %d already answered or missing", id)
	}
	return nil
}
