package models

import "strings"

// ScheduleConfig is a user's standing preference for automatic study
// reminders. preferred_time is HH:MM, days_of_week a comma-separated list of
// lowercase day names.
type ScheduleConfig struct {
	ID                  int64  `json:"id" db:"id"`
	UserID              int64  `json:"user_id" db:"user_id"`
	IsEnabled           bool   `json:"is_enabled" db:"is_enabled"`
	PreferredTime       string `json:"preferred_time" db:"preferred_time"`
	DaysOfWeek          string `json:"days_of_week" db:"days_of_week"`
	QuestionsPerSession int    `json:"questions_per_session" db:"questions_per_session"`
}

// IncludesDay reports whether the given lowercase weekday name ("monday"...)
// is part of the configured days. An empty days_of_week means every day.
func (c *ScheduleConfig) IncludesDay(day string) bool {
	if strings.TrimSpace(c.DaysOfWeek) == "" {
		return true
	}
	for _, d := range strings.Split(c.DaysOfWeek, ",") {
		if strings.EqualFold(strings.TrimSpace(d), day) {
			return true
		}
	}
	return false
}
