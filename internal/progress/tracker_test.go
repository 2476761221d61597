package progress

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/studyagent/internal/spaced_repetition"
	"github.com/example/studyagent/pkg/models"
)

type pairKey struct {
	user, topic int64
}

// fakeMetricsStore keeps rows in a map and applies mutations synchronously.
type fakeMetricsStore struct {
	rows map[pairKey]models.PerformanceMetrics
}

func newFakeMetricsStore() *fakeMetricsStore {
	return &fakeMetricsStore{rows: make(map[pairKey]models.PerformanceMetrics)}
}

func (f *fakeMetricsStore) ApplyAfterSession(_ context.Context, userID, topicID int64, apply func(models.PerformanceMetrics) models.PerformanceMetrics) error {
	key := pairKey{userID, topicID}
	m, ok := f.rows[key]
	if !ok {
		m = models.PerformanceMetrics{UserID: userID, TopicID: topicID}
	}
	f.rows[key] = apply(m)
	return nil
}

func (f *fakeMetricsStore) GetByUserAndTopic(_ context.Context, userID, topicID int64) (*models.PerformanceMetrics, error) {
	if m, ok := f.rows[pairKey{userID, topicID}]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *fakeMetricsStore) GetByUser(_ context.Context, userID int64) ([]models.PerformanceMetrics, error) {
	var out []models.PerformanceMetrics
	for k, m := range f.rows {
		if k.user == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetricsStore) TopicsDue(_ context.Context, userID int64, now time.Time) ([]int64, error) {
	var due []int64
	for k, m := range f.rows {
		if k.user != userID || m.NextReviewAt == nil {
			continue
		}
		if !m.NextReviewAt.After(now) {
			due = append(due, k.topic)
		}
	}
	return due, nil
}

func (f *fakeMetricsStore) DueByUser(_ context.Context, now time.Time) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for k, m := range f.rows {
		if m.NextReviewAt == nil || m.NextReviewAt.After(now) {
			continue
		}
		out[k.user] = append(out[k.user], k.topic)
	}
	return out, nil
}

func newTestTracker() (*Tracker, *fakeMetricsStore) {
	store := newFakeMetricsStore()
	return NewTracker(store, spaced_repetition.New()), store
}

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// average_score is a per-session mean, not per-question: 0.8 over 5 questions
// followed by 0.6 over 3 must average to 0.7.
func TestRecordSessionAggregates(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	if err := tracker.RecordSession(ctx, 1, 10, 0.8, 5, baseTime); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	if err := tracker.RecordSession(ctx, 1, 10, 0.6, 3, baseTime.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	m := store.rows[pairKey{1, 10}]
	if m.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", m.TotalSessions)
	}
	if m.TotalQuestions != 8 {
		t.Errorf("TotalQuestions = %d, want 8", m.TotalQuestions)
	}
	if m.TotalCorrect != 6 { // round(5*0.8) + round(3*0.6) = 4 + 2
		t.Errorf("TotalCorrect = %d, want 6", m.TotalCorrect)
	}
	if math.Abs(m.AverageScore-0.7) > 1e-9 {
		t.Errorf("AverageScore = %v, want 0.7", m.AverageScore)
	}
}

func TestRecordSessionSchedulesNextReview(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	if err := tracker.RecordSession(ctx, 1, 10, 0.95, 5, baseTime); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	m := store.rows[pairKey{1, 10}]
	if m.LastStudiedAt == nil || !m.LastStudiedAt.Equal(baseTime) {
		t.Fatalf("LastStudiedAt = %v, want %v", m.LastStudiedAt, baseTime)
	}
	// No prior metrics: interval = floor(1 * 2.5) = 2 days.
	want := baseTime.AddDate(0, 0, 2)
	if m.NextReviewAt == nil || !m.NextReviewAt.Equal(want) {
		t.Fatalf("NextReviewAt = %v, want %v", m.NextReviewAt, want)
	}
	if m.NextReviewAt.Before(*m.LastStudiedAt) {
		t.Error("next review must not precede last studied")
	}
}

func TestRecordSessionGrowsIntervalAcrossSessions(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	when := baseTime
	prevInterval := time.Duration(0)
	for i := 0; i < 4; i++ {
		if err := tracker.RecordSession(ctx, 1, 10, 1.0, 5, when); err != nil {
			t.Fatalf("RecordSession: %v", err)
		}
		m := store.rows[pairKey{1, 10}]
		interval := m.NextReviewAt.Sub(*m.LastStudiedAt)
		if interval < prevInterval {
			t.Fatalf("interval shrank at session %d: %v -> %v", i+1, prevInterval, interval)
		}
		prevInterval = interval
		// Study exactly when the review falls due.
		when = *m.NextReviewAt
	}
}

func TestRecordSessionRejectsInvalidScore(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	if err := tracker.RecordSession(ctx, 1, 10, 1.5, 5, baseTime); !errors.Is(err, spaced_repetition.ErrInvalidScore) {
		t.Fatalf("error = %v, want ErrInvalidScore", err)
	}
	if len(store.rows) != 0 {
		t.Error("invalid score must not create a metrics row")
	}
}

func TestTopicsDue(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()
	now := baseTime

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 3)
	store.rows[pairKey{1, 10}] = models.PerformanceMetrics{UserID: 1, TopicID: 10, NextReviewAt: &past}
	store.rows[pairKey{1, 11}] = models.PerformanceMetrics{UserID: 1, TopicID: 11, NextReviewAt: &now}
	store.rows[pairKey{1, 12}] = models.PerformanceMetrics{UserID: 1, TopicID: 12, NextReviewAt: &future}
	store.rows[pairKey{1, 13}] = models.PerformanceMetrics{UserID: 1, TopicID: 13} // never scheduled
	store.rows[pairKey{2, 10}] = models.PerformanceMetrics{UserID: 2, TopicID: 10, NextReviewAt: &past}

	due, err := tracker.TopicsDue(ctx, 1, now)
	if err != nil {
		t.Fatalf("TopicsDue: %v", err)
	}

	want := map[int64]bool{10: true, 11: true}
	if len(due) != len(want) {
		t.Fatalf("TopicsDue = %v, want topics 10 and 11", due)
	}
	for _, id := range due {
		if !want[id] {
			t.Errorf("unexpected due topic %d", id)
		}
	}
}
