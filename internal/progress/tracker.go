// Package progress owns the per-(user, topic) performance aggregate and
// feeds session outcomes through the review scheduler.
package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/example/studyagent/internal/spaced_repetition"
	"github.com/example/studyagent/pkg/models"
)

// MetricsStore is the persistence contract the tracker needs. ApplyAfterSession
// must run the whole load-modify-store sequence for one (user, topic) row in a
// single transaction so concurrent recordings cannot interleave.
type MetricsStore interface {
	ApplyAfterSession(ctx context.Context, userID, topicID int64, apply func(models.PerformanceMetrics) models.PerformanceMetrics) error
	GetByUserAndTopic(ctx context.Context, userID, topicID int64) (*models.PerformanceMetrics, error)
	GetByUser(ctx context.Context, userID int64) ([]models.PerformanceMetrics, error)
	TopicsDue(ctx context.Context, userID int64, now time.Time) ([]int64, error)
	DueByUser(ctx context.Context, now time.Time) (map[int64][]int64, error)
}

// Tracker applies completed-session outcomes to performance metrics and
// answers due-topic queries.
type Tracker struct {
	store MetricsStore
	sched *spaced_repetition.Scheduler
}

// NewTracker creates a tracker over the given store and review scheduler
func NewTracker(store MetricsStore, sched *spaced_repetition.Scheduler) *Tracker {
	return &Tracker{store: store, sched: sched}
}

// RecordSession folds one completed session into the (user, topic) metrics
// row: counters, running per-session mean, and the next review timestamp.
// The row is created lazily on the first completed session.
func (t *Tracker) RecordSession(ctx context.Context, userID, topicID int64, score float64, numQuestions int, studiedAt time.Time) error {
	if score < 0 || score > 1 {
		return spaced_repetition.ErrInvalidScore
	}

	err := t.store.ApplyAfterSession(ctx, userID, topicID, func(m models.PerformanceMetrics) models.PerformanceMetrics {
		return applySession(t.sched, m, score, numQuestions, studiedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to record session for user %d topic %d: %w", userID, topicID, err)
	}
	return nil
}

// applySession is the pure aggregate step. average_score stays a per-session
// mean: each session contributes equal weight no matter how many questions it
// had. total_correct accumulates round(n * score) per session, which is an
// approximation rather than an exact count of correct answers.
func applySession(sched *spaced_repetition.Scheduler, m models.PerformanceMetrics, score float64, numQuestions int, studiedAt time.Time) models.PerformanceMetrics {
	prevSessions := m.TotalSessions

	m.TotalSessions = prevSessions + 1
	m.TotalQuestions += numQuestions
	m.TotalCorrect += int(math.Round(float64(numQuestions) * score))
	m.AverageScore = (m.AverageScore*float64(prevSessions) + score) / float64(m.TotalSessions)

	// Score already validated by the caller, so NextReview cannot fail here.
	next, _ := sched.NextReview(score, m.LastStudiedAt, m.NextReviewAt, studiedAt)
	m.NextReviewAt = &next
	studied := studiedAt
	m.LastStudiedAt = &studied

	return m
}

// TopicsDue returns the topic IDs whose next review time has passed for the
// user. Rows that have never been scheduled (null next_review_at) are not due.
func (t *Tracker) TopicsDue(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	return t.store.TopicsDue(ctx, userID, now)
}

// DueByUser returns every user's due topic IDs, for the periodic scan
func (t *Tracker) DueByUser(ctx context.Context, now time.Time) (map[int64][]int64, error) {
	return t.store.DueByUser(ctx, now)
}

// MetricsFor returns the aggregate row for one (user, topic), or nil if the
// pair has never completed a session.
func (t *Tracker) MetricsFor(ctx context.Context, userID, topicID int64) (*models.PerformanceMetrics, error) {
	return t.store.GetByUserAndTopic(ctx, userID, topicID)
}

// MetricsByUser returns all aggregate rows for a user
func (t *Tracker) MetricsByUser(ctx context.Context, userID int64) ([]models.PerformanceMetrics, error) {
	return t.store.GetByUser(ctx, userID)
}
