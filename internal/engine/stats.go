package engine

import (
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/units"
)

// SessionStats summarises engine output since startup or the last reset.
type SessionStats struct {
	TotalSamples       int     `json:"total_samples"`
	ActiveSamples      int     `json:"active_samples"`
	InactiveSamples    int     `json:"inactive_samples"`
	ActivePercentage   float64 `json:"active_percentage"`
	LongestInactiveSec int     `json:"longest_inactive_period_seconds"`
	AlertCount         int     `json:"alert_count"`
}

// statsTracker accumulates session statistics from the decision stream. It
// is owned by the engine and updated once per tick.
type statsTracker struct {
	total           int
	active          int
	inactive        int
	longestInactive time.Duration
	alertCount      int
	alertOpen       bool
}

func (s *statsTracker) observe(state State, inactive time.Duration, alerted bool) {
	s.total++
	if state == StateActive {
		s.active++
	} else {
		s.inactive++
	}
	if inactive > s.longestInactive {
		s.longestInactive = inactive
	}
	// Count episodes, not alerted ticks.
	if alerted && !s.alertOpen {
		s.alertCount++
	}
	s.alertOpen = alerted
}

func (s *statsTracker) snapshot() SessionStats {
	stats := SessionStats{
		TotalSamples:       s.total,
		ActiveSamples:      s.active,
		InactiveSamples:    s.inactive,
		LongestInactiveSec: units.WholeSeconds(s.longestInactive),
		AlertCount:         s.alertCount,
	}
	if s.total > 0 {
		stats.ActivePercentage = units.RoundPercent(float64(s.active) / float64(s.total) * 100)
	}
	return stats
}

func (s *statsTracker) reset() {
	*s = statsTracker{}
}
