package engine

import (
	"testing"
	"time"
)

type episodeLog struct {
	opened []Episode
	closed []Episode
}

func (l *episodeLog) EpisodeOpened(e Episode) { l.opened = append(l.opened, e) }
func (l *episodeLog) EpisodeClosed(e Episode) { l.closed = append(l.closed, e) }

func TestCheckOpensOnceAtThreshold(t *testing.T) {
	log := &episodeLog{}
	d := NewAlertDispatcher(20*time.Second, log)

	now := t0
	for sec := 0; sec < 20; sec++ {
		if d.Check(false, time.Duration(sec)*time.Second, now) {
			t.Fatalf("alerted at %ds, before the threshold", sec)
		}
		now = now.Add(time.Second)
	}

	if !d.Check(false, 20*time.Second, now) {
		t.Fatal("expected alert the instant the threshold is crossed")
	}
	if len(log.opened) != 1 {
		t.Fatalf("opened %d episodes, want 1", len(log.opened))
	}

	// The alert stays on for every subsequent tick of the same run.
	for sec := 21; sec <= 25; sec++ {
		now = now.Add(time.Second)
		if !d.Check(false, time.Duration(sec)*time.Second, now) {
			t.Errorf("alert dropped at %ds while episode still open", sec)
		}
	}
	if len(log.opened) != 1 {
		t.Errorf("opened %d episodes over one unbroken run, want 1", len(log.opened))
	}
}

func TestCheckClosesOnMotion(t *testing.T) {
	log := &episodeLog{}
	d := NewAlertDispatcher(20*time.Second, log)

	d.Check(false, 20*time.Second, t0)
	if d.Check(true, 0, t0.Add(5*time.Second)) {
		t.Error("motion tick must not alert")
	}

	if len(log.closed) != 1 {
		t.Fatalf("closed %d episodes, want 1", len(log.closed))
	}
	// 20s of inactivity before opening plus 5s while open.
	if got, want := log.closed[0].Duration, 25*time.Second; got != want {
		t.Errorf("episode duration = %v, want %v", got, want)
	}
	if d.Open() != nil {
		t.Error("no episode should remain open after motion")
	}
}

func TestCheckRearmsForNextRun(t *testing.T) {
	log := &episodeLog{}
	d := NewAlertDispatcher(20*time.Second, log)

	d.Check(false, 20*time.Second, t0)
	d.Check(true, 0, t0.Add(time.Second))
	if !d.Check(false, 20*time.Second, t0.Add(30*time.Second)) {
		t.Fatal("second threshold crossing should open a new episode")
	}

	if len(log.opened) != 2 {
		t.Errorf("opened %d episodes over two runs, want 2", len(log.opened))
	}
	if log.opened[0].ID == log.opened[1].ID {
		t.Error("episodes must have independent IDs")
	}
}

func TestCheckBelowThresholdNeverAlerts(t *testing.T) {
	d := NewAlertDispatcher(20*time.Second, nil)

	now := t0
	for sec := 0; sec < 19; sec++ {
		if d.Check(false, time.Duration(sec)*time.Second, now) {
			t.Fatalf("alerted at %ds with threshold 20s", sec)
		}
		now = now.Add(time.Second)
	}
	if d.Open() != nil {
		t.Error("no episode should be open below the threshold")
	}
}

func TestCheckNilHook(t *testing.T) {
	d := NewAlertDispatcher(time.Second, nil)
	if !d.Check(false, 2*time.Second, t0) {
		t.Error("expected alert with nil hook")
	}
	d.Check(true, 0, t0.Add(time.Second))
}
