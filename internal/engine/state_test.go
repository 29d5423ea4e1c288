package engine

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func motion(delta float64) MotionVerdict {
	return MotionVerdict{
		DeltaMag:          delta,
		InertialTriggered: delta > 0.5,
		Combined:          true,
	}
}

func presenceOnly() MotionVerdict {
	return MotionVerdict{PresenceTriggered: true, Combined: true}
}

func still() MotionVerdict {
	return MotionVerdict{}
}

func TestAdvanceMotionForcesActive(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)

	state, conf := m.Advance(motion(0.8), t0)
	if state != StateActive {
		t.Errorf("state = %v, want active", state)
	}
	if got, want := conf, 0.8; got != want {
		t.Errorf("confidence = %v, want %v", got, want)
	}
	if d := m.InactiveDuration(t0); d != 0 {
		t.Errorf("inactive duration = %v, want 0 on motion tick", d)
	}
}

func TestAdvanceConfidenceClamped(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)

	_, conf := m.Advance(motion(5.0), t0)
	if conf != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", conf)
	}
}

func TestAdvancePresenceOnlyConfidence(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)

	_, conf := m.Advance(presenceOnly(), t0)
	if conf != 0.9 {
		t.Errorf("confidence = %v, want 0.9 for presence-only motion", conf)
	}
}

func TestAdvanceTransitionWithinWindow(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)
	m.Advance(presenceOnly(), t0)

	state, conf := m.Advance(still(), t0.Add(2*time.Second))
	if state != StateTransition {
		t.Errorf("state = %v, want transition inside the grace window", state)
	}
	// Linear decay from 0.9 across the 5s window: 0.9 * (1 - 2/5).
	if got, want := conf, 0.9*0.6; !closeTo(got, want) {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestAdvanceInactiveAfterWindow(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)
	m.Advance(presenceOnly(), t0)

	state, conf := m.Advance(still(), t0.Add(6*time.Second))
	if state != StateInactive {
		t.Errorf("state = %v, want inactive past the grace window", state)
	}
	if conf != 0.1 {
		t.Errorf("confidence = %v, want inactive floor 0.1", conf)
	}
	if d := m.InactiveDuration(t0.Add(6 * time.Second)); d != 6*time.Second {
		t.Errorf("inactive duration = %v, want 6s", d)
	}
}

func TestAdvanceMotionResumesFromInactive(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)
	m.Advance(presenceOnly(), t0)
	m.Advance(still(), t0.Add(30*time.Second))

	state, _ := m.Advance(motion(1.0), t0.Add(31*time.Second))
	if state != StateActive {
		t.Errorf("state = %v, want active immediately on motion", state)
	}
	if d := m.InactiveDuration(t0.Add(31 * time.Second)); d != 0 {
		t.Errorf("inactive duration = %v, want 0 after motion", d)
	}
}

func TestAdvanceClockAnomalyClamped(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)
	m.Advance(presenceOnly(), t0)

	// The clock moves backwards past the last motion time.
	earlier := t0.Add(-time.Minute)
	state, _ := m.Advance(still(), earlier)

	if d := m.InactiveDuration(earlier); d < 0 {
		t.Errorf("inactive duration = %v, must never be negative", d)
	}
	if state != StateTransition {
		t.Errorf("state = %v, want transition after re-baseline", state)
	}
}

func TestAdvanceConfidenceAlwaysInRange(t *testing.T) {
	m := NewStateMachine(0.5, 5*time.Second)

	verdicts := []MotionVerdict{
		motion(0.6), motion(100), presenceOnly(), still(), still(), still(),
		motion(0.51), still(),
	}
	now := t0
	for i, v := range verdicts {
		_, conf := m.Advance(v, now)
		if conf < 0 || conf > 1 {
			t.Errorf("verdict %d: confidence %v outside [0,1]", i, conf)
		}
		now = now.Add(3 * time.Second)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
