package engine

import (
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/monitoring"
)

// State is the discrete activity classification. Exactly one is current at
// any time; it changes only on tick boundaries.
type State string

const (
	StateActive     State = "active"
	StateTransition State = "transition"
	StateInactive   State = "inactive"
)

// Confidence bounds for the three states. Active confidence scales with the
// observed delta magnitude; transition confidence decays linearly across the
// transition window; inactive confidence is pinned low.
const (
	presenceOnlyConfidence = 0.9
	inactiveConfidence     = 0.1
)

// StateMachine classifies activity over time. It owns the inactivity timer:
// lastMotion is reset whenever fresh motion is observed and otherwise left
// untouched so the inactive duration keeps growing.
type StateMachine struct {
	movementThreshold float64
	transitionWindow  time.Duration

	state          State
	lastMotion     time.Time
	baselined      bool
	lastActiveConf float64
}

// NewStateMachine creates a state machine in the Active state, treating
// startup as the last observed motion.
func NewStateMachine(movementThreshold float64, transitionWindow time.Duration) *StateMachine {
	return &StateMachine{
		movementThreshold: movementThreshold,
		transitionWindow:  transitionWindow,
		state:             StateActive,
		lastActiveConf:    presenceOnlyConfidence,
	}
}

// Advance consumes one motion verdict and returns the new state and a
// confidence score in [0,1]. The next state is a pure function of the current
// state, the fused motion bit, and the inactivity duration.
func (m *StateMachine) Advance(verdict MotionVerdict, now time.Time) (State, float64) {
	if !m.baselined {
		m.lastMotion = now
		m.baselined = true
	}

	if verdict.Combined {
		m.lastMotion = now
		m.state = StateActive
		m.lastActiveConf = m.activeConfidence(verdict)
		return m.state, m.lastActiveConf
	}

	inactive := m.inactiveDuration(now)
	if inactive < m.transitionWindow {
		// Motion just stopped. A short grace window absorbs sensor jitter so
		// a single missed tick of motion does not read as inactive.
		m.state = StateTransition
		frac := 1 - float64(inactive)/float64(m.transitionWindow)
		return m.state, clamp01(m.lastActiveConf * frac)
	}

	m.state = StateInactive
	return m.state, inactiveConfidence
}

// InactiveDuration returns the time since the last observed motion, clamped
// to zero if the clock appears to have moved backwards.
func (m *StateMachine) InactiveDuration(now time.Time) time.Duration {
	if !m.baselined {
		return 0
	}
	return m.inactiveDuration(now)
}

// LastMotion returns the timestamp of the last observed motion.
func (m *StateMachine) LastMotion() time.Time {
	return m.lastMotion
}

// State returns the current activity state.
func (m *StateMachine) State() State {
	return m.state
}

func (m *StateMachine) inactiveDuration(now time.Time) time.Duration {
	d := now.Sub(m.lastMotion)
	if d < 0 {
		// Clock anomaly: a timestamp before the last motion. Re-baseline so
		// the duration can never go negative and keep going.
		monitoring.Logf("clock anomaly: now %v precedes last motion %v, re-baselining", now, m.lastMotion)
		m.lastMotion = now
		return 0
	}
	return d
}

func (m *StateMachine) activeConfidence(verdict MotionVerdict) float64 {
	if verdict.InertialTriggered {
		return clamp01(verdict.DeltaMag / (2 * m.movementThreshold))
	}
	return presenceOnlyConfidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
