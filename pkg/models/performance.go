package models

import "time"

// PerformanceMetrics is the per-(user, topic) spaced-repetition aggregate.
// One row per pair; total_sessions only grows. average_score is a running
// mean over session scores, weighted equally per session regardless of how
// many questions each session had.
type PerformanceMetrics struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	TopicID        int64      `json:"topic_id" db:"topic_id"`
	TotalSessions  int        `json:"total_sessions" db:"total_sessions"`
	TotalCorrect   int        `json:"total_correct" db:"total_correct"`
	TotalQuestions int        `json:"total_questions" db:"total_questions"`
	AverageScore   float64    `json:"average_score" db:"average_score"`
	LastStudiedAt  *time.Time `json:"last_studied_at" db:"last_studied_at"`
	NextReviewAt   *time.Time `json:"next_review_at" db:"next_review_at"`
	RetentionScore *float64   `json:"retention_score" db:"retention_score"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
