package models

import "time"

// ProgressRow is one line of the exported progress report: a topic joined
// with its performance aggregates.
type ProgressRow struct {
	TopicTitle     string     `db:"topic_title"`
	TotalSessions  int        `db:"total_sessions"`
	TotalQuestions int        `db:"total_questions"`
	TotalCorrect   int        `db:"total_correct"`
	AverageScore   float64    `db:"average_score"`
	LastStudiedAt  *time.Time `db:"last_studied_at"`
	NextReviewAt   *time.Time `db:"next_review_at"`
}
