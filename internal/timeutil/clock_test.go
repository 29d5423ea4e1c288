package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", now, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	c := RealClock{}
	start := c.Now()
	c.Sleep(10 * time.Millisecond)
	if got := c.Since(start); got < 10*time.Millisecond {
		t.Errorf("Since() = %v, want at least 10ms", got)
	}
}

func TestMockClockNowAndSet(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClockAdvance(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Advance(30 * time.Second)
	if got := c.Since(base); got != 30*time.Second {
		t.Errorf("Since(base) = %v, want 30s", got)
	}
}

func TestMockClockSetBackwards(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Set(base.Add(-time.Minute))
	if got := c.Since(base); got != -time.Minute {
		t.Errorf("Since(base) = %v, want -1m", got)
	}
}

func TestMockClockSleepRecorded(t *testing.T) {
	c := NewMockClock(time.Now())
	c.Sleep(5 * time.Second)
	c.Sleep(time.Second)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 5*time.Second || sleeps[1] != time.Second {
		t.Errorf("Sleeps() = %v, want [5s 1s]", sleeps)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	ticker := c.NewTicker(time.Second)

	c.Advance(time.Second)
	select {
	case got := <-ticker.C():
		if !got.Equal(base.Add(time.Second)) {
			t.Errorf("tick time = %v, want %v", got, base.Add(time.Second))
		}
	default:
		t.Fatal("expected tick after Advance")
	}
}

func TestMockTickerStopped(t *testing.T) {
	c := NewMockClock(time.Now())
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker should not fire")
	default:
	}
}

func TestMockTickerTrigger(t *testing.T) {
	c := NewMockClock(time.Now())
	ticker := c.NewTicker(time.Hour).(*MockTicker)

	now := time.Now()
	ticker.Trigger(now)
	select {
	case got := <-ticker.C():
		if !got.Equal(now) {
			t.Errorf("tick time = %v, want %v", got, now)
		}
	default:
		t.Fatal("expected tick after Trigger")
	}
}
