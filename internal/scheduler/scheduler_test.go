package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/studyagent/pkg/models"
)

// Monday 2026-06-01, 09:15 UTC.
var monday0915 = time.Date(2026, 6, 1, 9, 15, 0, 0, time.UTC)

func TestShouldRemind(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ScheduleConfig
		now  time.Time
		want bool
	}{
		{
			"matching hour and day",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "09:00", DaysOfWeek: "monday,wednesday"},
			monday0915, true,
		},
		{
			"minutes ignored within the hour",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "09:45", DaysOfWeek: "monday"},
			monday0915, true,
		},
		{
			"wrong hour",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "10:00", DaysOfWeek: "monday"},
			monday0915, false,
		},
		{
			"wrong day",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "09:00", DaysOfWeek: "tuesday"},
			monday0915, false,
		},
		{
			"empty days means every day",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "09:00"},
			monday0915, true,
		},
		{
			"disabled",
			models.ScheduleConfig{IsEnabled: false, PreferredTime: "09:00", DaysOfWeek: "monday"},
			monday0915, false,
		},
		{
			"malformed time",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "morning", DaysOfWeek: "monday"},
			monday0915, false,
		},
		{
			"case-insensitive day",
			models.ScheduleConfig{IsEnabled: true, PreferredTime: "09:00", DaysOfWeek: "Monday"},
			monday0915, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRemind(tt.cfg, tt.now); got != tt.want {
				t.Errorf("shouldRemind = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeNotifier struct {
	studyReminders []int64
	reviewNotices  map[int64][]string
	failFor        map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{reviewNotices: make(map[int64][]string), failFor: make(map[int64]bool)}
}

func (f *fakeNotifier) NotifyStudyReminder(userID int64) error {
	if f.failFor[userID] {
		return errors.New("chat unreachable")
	}
	f.studyReminders = append(f.studyReminders, userID)
	return nil
}

func (f *fakeNotifier) NotifyReviewsDue(userID int64, titles []string) error {
	if f.failFor[userID] {
		return errors.New("chat unreachable")
	}
	f.reviewNotices[userID] = titles
	return nil
}

type fakeScheduleStore struct {
	configs []models.ScheduleConfig
}

func (f *fakeScheduleStore) EnabledConfigs(_ context.Context) ([]models.ScheduleConfig, error) {
	return f.configs, nil
}

type fakeScanner struct {
	due map[int64][]int64
}

func (f *fakeScanner) DueByUser(_ context.Context, _ time.Time) (map[int64][]int64, error) {
	return f.due, nil
}

type fakeTitler struct{}

func (fakeTitler) TitlesByID(_ context.Context, ids []int64) ([]string, error) {
	titles := make([]string, len(ids))
	for i, id := range ids {
		titles[i] = "Topic " + string(rune('A'+id))
	}
	return titles, nil
}

func TestRunScheduledRemindersSwallowsPerUserFailure(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.failFor[1] = true
	trigger := NewTrigger(notifier, &fakeScheduleStore{configs: []models.ScheduleConfig{
		{UserID: 1, IsEnabled: true, PreferredTime: "09:00"},
		{UserID: 2, IsEnabled: true, PreferredTime: "09:00"},
		{UserID: 3, IsEnabled: true, PreferredTime: "11:00"},
	}}, &fakeScanner{}, fakeTitler{})
	trigger.now = func() time.Time { return monday0915 }

	trigger.runScheduledReminders()

	if len(notifier.studyReminders) != 1 || notifier.studyReminders[0] != 2 {
		t.Errorf("reminders = %v, want only user 2", notifier.studyReminders)
	}
}

func TestRunDueScanCapsTitles(t *testing.T) {
	notifier := newFakeNotifier()
	trigger := NewTrigger(notifier, &fakeScheduleStore{}, &fakeScanner{due: map[int64][]int64{
		1: {1, 2, 3, 4, 5, 6, 7},
		2: {1},
	}}, fakeTitler{})
	trigger.now = func() time.Time { return monday0915 }

	trigger.runDueScan()

	if got := len(notifier.reviewNotices[1]); got != maxTitlesPerReminder {
		t.Errorf("user 1 got %d titles, want %d", got, maxTitlesPerReminder)
	}
	if got := len(notifier.reviewNotices[2]); got != 1 {
		t.Errorf("user 2 got %d titles, want 1", got)
	}
}

func TestRunDueScanContinuesPastFailure(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.failFor[1] = true
	trigger := NewTrigger(notifier, &fakeScheduleStore{}, &fakeScanner{due: map[int64][]int64{
		1: {1},
		2: {2},
	}}, fakeTitler{})
	trigger.now = func() time.Time { return monday0915 }

	trigger.runDueScan()

	if _, ok := notifier.reviewNotices[2]; !ok {
		t.Error("failure for user 1 must not block user 2")
	}
}
