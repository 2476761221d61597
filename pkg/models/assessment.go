package models

import "time"

// Assessment represents one question within a study session. It is created
// unanswered; the grading step fills user_answer, score, is_correct, feedback
// and answered_at together, exactly once.
type Assessment struct {
	ID            int64      `json:"id" db:"id"`
	SessionID     int64      `json:"session_id" db:"session_id"`
	Question      string     `json:"question" db:"question"`
	CorrectAnswer string     `json:"correct_answer" db:"correct_answer"`
	UserAnswer    *string    `json:"user_answer" db:"user_answer"`
	Score         *float64   `json:"score" db:"score"`
	IsCorrect     *bool      `json:"is_correct" db:"is_correct"`
	Feedback      *string    `json:"feedback" db:"feedback"`
	AnsweredAt    *time.Time `json:"answered_at" db:"answered_at"`
}

// Answered reports whether the grading mutation has been applied
func (a *Assessment) Answered() bool {
	return a.AnsweredAt != nil
}
