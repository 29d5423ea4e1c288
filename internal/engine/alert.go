package engine

import (
	"time"

	"github.com/google/uuid"
)

// Episode is one maximal contiguous inactivity run that crossed the alert
// threshold. At most one episode is open at a time.
type Episode struct {
	ID       string
	OpenedAt time.Time
	ClosedAt time.Time
	Duration time.Duration
}

// EpisodeHook receives episode open/close transitions, typically to persist
// them. A nil hook is valid.
type EpisodeHook interface {
	EpisodeOpened(Episode)
	EpisodeClosed(Episode)
}

// AlertDispatcher emits at most one alert per unbroken inactivity run. It
// arms the instant the inactive duration first exceeds the sedentary
// threshold while no episode is open, and disarms the instant fresh motion
// is observed, guaranteeing the next crossing produces a new, independent
// alert.
type AlertDispatcher struct {
	threshold time.Duration
	hook      EpisodeHook

	open *Episode
}

// NewAlertDispatcher creates a dispatcher for the given sedentary threshold.
func NewAlertDispatcher(threshold time.Duration, hook EpisodeHook) *AlertDispatcher {
	return &AlertDispatcher{threshold: threshold, hook: hook}
}

// Check is called once per tick after the state machine. It returns true for
// the tick on which the threshold is first crossed and every subsequent tick
// while the episode remains open.
func (d *AlertDispatcher) Check(combined bool, inactive time.Duration, now time.Time) bool {
	if combined {
		if d.open != nil {
			// The run was already ep.Duration long when the episode opened;
			// it ends now.
			ep := *d.open
			ep.ClosedAt = now
			ep.Duration += now.Sub(ep.OpenedAt)
			d.open = nil
			if d.hook != nil {
				d.hook.EpisodeClosed(ep)
			}
		}
		return false
	}

	if d.open != nil {
		return true
	}

	if inactive >= d.threshold {
		d.open = &Episode{
			ID:       uuid.NewString(),
			OpenedAt: now,
			Duration: inactive,
		}
		if d.hook != nil {
			d.hook.EpisodeOpened(*d.open)
		}
		return true
	}

	return false
}

// Open returns the currently open episode, or nil.
func (d *AlertDispatcher) Open() *Episode {
	if d.open == nil {
		return nil
	}
	ep := *d.open
	return &ep
}
