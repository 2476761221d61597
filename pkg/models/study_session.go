package models

import "time"

// Session type values
const (
	SessionTypeManual    = "manual"
	SessionTypeScheduled = "scheduled"
)

// Session status values. A session starts in_progress and ends in exactly
// one of the terminal states.
const (
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusCancelled  = "cancelled"
)

// StudySession represents one quiz run over a single topic
type StudySession struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	TopicID     int64      `json:"topic_id" db:"topic_id"`
	SessionType string     `json:"session_type" db:"session_type"`
	Status      string     `json:"status" db:"status"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// IsTerminal reports whether the session has reached a final state
func (s *StudySession) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusCancelled
}
