// Package scheduler runs the time-driven side of the assistant: scheduled
// study reminders at each user's preferred hour and periodic scans for topics
// whose review has fallen due. All clock arithmetic is UTC.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/studyagent/pkg/models"
)

// maxTitlesPerReminder caps how many due topics one reminder message lists.
const maxTitlesPerReminder = 5

// Notifier delivers reminders to a user. Implemented by the Telegram bot.
type Notifier interface {
	NotifyStudyReminder(userID int64) error
	NotifyReviewsDue(userID int64, topicTitles []string) error
}

// ScheduleStore lists the standing reminder preferences.
type ScheduleStore interface {
	EnabledConfigs(ctx context.Context) ([]models.ScheduleConfig, error)
}

// DueScanner reports which topics are due per user. Implemented by the
// progress tracker.
type DueScanner interface {
	DueByUser(ctx context.Context, now time.Time) (map[int64][]int64, error)
}

// TopicTitler resolves topic IDs to titles for reminder text.
type TopicTitler interface {
	TitlesByID(ctx context.Context, ids []int64) ([]string, error)
}

// Trigger owns the gocron jobs.
type Trigger struct {
	cron      *gocron.Scheduler
	notifier  Notifier
	schedules ScheduleStore
	scanner   DueScanner
	titler    TopicTitler
	now       func() time.Time
}

// NewTrigger builds the trigger; call Start to begin firing jobs.
func NewTrigger(notifier Notifier, schedules ScheduleStore, scanner DueScanner, titler TopicTitler) *Trigger {
	return &Trigger{
		cron:      gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		schedules: schedules,
		scanner:   scanner,
		titler:    titler,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the hourly preference job and the 30-minute due scan and
// runs them asynchronously.
func (t *Trigger) Start() error {
	if _, err := t.cron.Every(1).Hour().Do(t.runScheduledReminders); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	if _, err := t.cron.Every(30).Minutes().Do(t.runDueScan); err != nil {
		return fmt.Errorf("failed to schedule due scan job: %w", err)
	}
	t.cron.StartAsync()
	log.Println("Notification trigger started")
	return nil
}

// Stop halts the jobs; running jobs finish first
func (t *Trigger) Stop() {
	t.cron.Stop()
	log.Println("Notification trigger stopped")
}

// runScheduledReminders fires a study reminder for every user whose
// preference matches the current hour and weekday. One user's delivery
// failure never blocks the rest.
func (t *Trigger) runScheduledReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	configs, err := t.schedules.EnabledConfigs(ctx)
	if err != nil {
		log.Printf("Failed to load schedule configs: %v", err)
		return
	}

	now := t.now()
	for _, cfg := range configs {
		if !shouldRemind(cfg, now) {
			continue
		}
		if err := t.notifier.NotifyStudyReminder(cfg.UserID); err != nil {
			log.Printf("Failed to send study reminder to user %d: %v", cfg.UserID, err)
		}
	}
}

// runDueScan notifies every user with overdue reviews, listing up to
// maxTitlesPerReminder topic titles per message.
func (t *Trigger) runDueScan() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := t.scanner.DueByUser(ctx, t.now())
	if err != nil {
		log.Printf("Failed to scan for due reviews: %v", err)
		return
	}

	// Stable iteration keeps logs readable across runs.
	userIDs := make([]int64, 0, len(due))
	for userID := range due {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		topicIDs := due[userID]
		if len(topicIDs) > maxTitlesPerReminder {
			topicIDs = topicIDs[:maxTitlesPerReminder]
		}
		titles, err := t.titler.TitlesByID(ctx, topicIDs)
		if err != nil {
			log.Printf("Failed to resolve due topic titles for user %d: %v", userID, err)
			continue
		}
		if len(titles) == 0 {
			continue
		}
		if err := t.notifier.NotifyReviewsDue(userID, titles); err != nil {
			log.Printf("Failed to send review reminder to user %d: %v", userID, err)
		}
	}
}

// shouldRemind reports whether the config's preferred hour and weekday match
// now. Minutes are ignored: the job runs hourly, so 09:30 fires in the 09:00
// run.
func shouldRemind(cfg models.ScheduleConfig, now time.Time) bool {
	if !cfg.IsEnabled {
		return false
	}
	hour, ok := parseHour(cfg.PreferredTime)
	if !ok {
		log.Printf("User %d has malformed preferred_time %q", cfg.UserID, cfg.PreferredTime)
		return false
	}
	if hour != now.Hour() {
		return false
	}
	return cfg.IncludesDay(strings.ToLower(now.Weekday().String()))
}

func parseHour(preferred string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(preferred), ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}
