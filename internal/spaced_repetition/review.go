package spaced_repetition

import (
	"errors"
	"time"
)

// Default parameters for the three-tier review schedule. A session score at
// or above the excellent threshold grows the interval aggressively, a good
// score grows it moderately, anything below resets accumulated growth.
const (
	InitialIntervalDays     = 1
	ExcellentScoreThreshold = 0.9
	ExcellentMultiplier     = 2.5
	GoodScoreThreshold      = 0.6
	GoodMultiplier          = 1.5
)

// ErrInvalidScore is returned for scores outside [0, 1].
var ErrInvalidScore = errors.New("score must be between 0.0 and 1.0")

// Scheduler computes review intervals from session outcomes. The zero value
// is not usable; construct with New.
type Scheduler struct {
	// Minimum interval in days, also the reset target after poor performance
	InitialInterval int
	// Score at or above which the excellent multiplier applies
	ExcellentThreshold float64
	// Interval growth factor for excellent performance
	ExcellentFactor float64
	// Score at or above which the good multiplier applies
	GoodThreshold float64
	// Interval growth factor for good performance
	GoodFactor float64
}

// New returns a scheduler with the default three-tier parameters
func New() *Scheduler {
	return &Scheduler{
		InitialInterval:    InitialIntervalDays,
		ExcellentThreshold: ExcellentScoreThreshold,
		ExcellentFactor:    ExcellentMultiplier,
		GoodThreshold:      GoodScoreThreshold,
		GoodFactor:         GoodMultiplier,
	}
}

// NextInterval returns the next review interval in days given the most
// recent session score and the previous interval length. prevDays below the
// configured minimum is treated as the minimum.
func (s *Scheduler) NextInterval(score float64, prevDays int) (int, error) {
	if score < 0 || score > 1 {
		return 0, ErrInvalidScore
	}
	if prevDays < s.InitialInterval {
		prevDays = s.InitialInterval
	}

	switch {
	case score >= s.ExcellentThreshold:
		return int(float64(prevDays) * s.ExcellentFactor), nil
	case score >= s.GoodThreshold:
		return int(float64(prevDays) * s.GoodFactor), nil
	default:
		// Poor performance forfeits accumulated interval growth
		return s.InitialInterval, nil
	}
}

// PrevIntervalDays derives the previous interval from the stored metrics
// timestamps. The interval is not persisted directly; it is reconstructed as
// the whole-day distance between the last study and its scheduled review,
// floored at the initial interval. Missing timestamps fall back to the
// initial interval.
func (s *Scheduler) PrevIntervalDays(lastStudied, nextReview *time.Time) int {
	if lastStudied == nil || nextReview == nil {
		return s.InitialInterval
	}
	days := int(nextReview.Sub(*lastStudied).Hours() / 24)
	if days < s.InitialInterval {
		return s.InitialInterval
	}
	return days
}

// NextReview computes the next review timestamp for a session outcome. The
// caller supplies now so the computation stays deterministic; all timestamps
// are expected in UTC.
func (s *Scheduler) NextReview(score float64, lastStudied, nextReview *time.Time, now time.Time) (time.Time, error) {
	prev := s.PrevIntervalDays(lastStudied, nextReview)
	days, err := s.NextInterval(score, prev)
	if err != nil {
		return time.Time{}, err
	}
	return now.AddDate(0, 0, days), nil
}
