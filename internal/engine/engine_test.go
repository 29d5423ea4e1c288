package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/stillwatch-data/sedentary.report/internal/timeutil"
)

// scriptedSource replays a fixed sequence of samples, one per tick, then
// reports stale.
type scriptedSource struct {
	samples []RawSample
	next    int
}

func (s *scriptedSource) Sample() (RawSample, bool) {
	if s.next >= len(s.samples) {
		return RawSample{}, false
	}
	sample := s.samples[s.next]
	s.next++
	return sample, true
}

// captureSink collects the emitted record stream.
type captureSink struct {
	records []DecisionRecord
	err     error
}

func (s *captureSink) Record(r DecisionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func testParams() Params {
	return Params{
		MovementThreshold:  0.5,
		SedentaryThreshold: 20 * time.Second,
		TransitionWindow:   5 * time.Second,
		SmoothingWindow:    5,
		TickInterval:       time.Second,
	}
}

// stillSample is a sample with no presence and a steady 1g magnitude.
func stillSample() RawSample {
	return RawSample{Accel: [3]float64{9.8, 0, 0}}
}

func presenceSample() RawSample {
	return RawSample{Presence: true, Accel: [3]float64{9.8, 0, 0}}
}

// runTicks drives the engine directly, one tick per second.
func runTicks(e *Engine, start time.Time, n int) time.Time {
	now := start
	for i := 0; i < n; i++ {
		e.tick(now)
		now = now.Add(time.Second)
	}
	return now
}

// staleStartSource reports stale for a number of ticks before any reading
// has ever arrived, then replays one fixed sample forever.
type staleStartSource struct {
	staleTicks int
	sample     RawSample
	calls      int
}

func (s *staleStartSource) Sample() (RawSample, bool) {
	s.calls++
	if s.calls <= s.staleTicks {
		return RawSample{}, false
	}
	return s.sample, true
}

func TestEngineStaleStartFirstSampleIsNotMotion(t *testing.T) {
	// Two placeholder ticks before the sensor delivers anything, then a
	// steady 1g reading. The placeholders must not seed the inertial
	// baseline: the first genuine sample has no predecessor to differ from,
	// so it carries zero delta and leaves the inactivity timer running.
	src := &staleStartSource{staleTicks: 2, sample: RawSample{Accel: [3]float64{0, 0, 1.0}}}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 3)

	if len(sink.records) != 3 {
		t.Fatalf("emitted %d records, want 3", len(sink.records))
	}
	for i := 0; i < 2; i++ {
		if !sink.records[i].Degraded {
			t.Errorf("tick %d: degraded = false, want true before the first reading", i)
		}
	}
	first := sink.records[2]
	if first.Degraded {
		t.Errorf("first real sample marked degraded")
	}
	if first.DeltaMag != 0 {
		t.Errorf("first real sample delta = %v, want 0", first.DeltaMag)
	}
	if first.State == StateActive {
		t.Errorf("first real sample classified %v; a lone reading is not motion", first.State)
	}
	if first.InactiveSeconds != 2 {
		t.Errorf("first real sample inactive = %ds, want 2: it must not reset the timer", first.InactiveSeconds)
	}
}

func TestEngineAlertAfterThreshold(t *testing.T) {
	// Example: threshold 20s, tick 1s, one motion tick then 25 no-motion
	// ticks. The alert opens at the tick where the inactive duration first
	// reaches 20s and stays on through the end of the run.
	src := &scriptedSource{}
	src.samples = append(src.samples, presenceSample())
	for i := 0; i < 25; i++ {
		src.samples = append(src.samples, stillSample())
	}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 26)

	if len(sink.records) != 26 {
		t.Fatalf("emitted %d records, want 26", len(sink.records))
	}
	for i, r := range sink.records {
		wantAlert := r.InactiveSeconds >= 20
		if r.Alerted != wantAlert {
			t.Errorf("tick %d (inactive %ds): alerted = %v, want %v",
				i, r.InactiveSeconds, r.Alerted, wantAlert)
		}
	}
	if last := sink.records[25]; !last.Alerted || last.InactiveSeconds != 25 {
		t.Errorf("final record = %+v, want alerted at 25s inactive", last)
	}
}

func TestEngineMotionResetsTimer(t *testing.T) {
	// One motion tick inside an otherwise-inactive run resets the timer, so
	// the threshold is never reached and the alert never fires.
	src := &scriptedSource{}
	src.samples = append(src.samples, presenceSample())
	for i := 0; i < 25; i++ {
		if i == 14 {
			src.samples = append(src.samples, presenceSample())
			continue
		}
		src.samples = append(src.samples, stillSample())
	}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 26)

	for i, r := range sink.records {
		if r.Alerted {
			t.Errorf("tick %d alerted; a mid-run motion tick must prevent the alert", i)
		}
	}
	if r := sink.records[15]; r.InactiveSeconds != 0 || r.State != StateActive {
		t.Errorf("motion tick record = %+v, want active with timer reset", r)
	}
}

func TestEngineMotionTickIsActiveWithZeroTimer(t *testing.T) {
	src := &scriptedSource{samples: []RawSample{
		stillSample(), presenceSample(), presenceSample(),
	}}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 3)

	for i, r := range sink.records[1:] {
		if r.State != StateActive || r.InactiveSeconds != 0 {
			t.Errorf("motion tick %d: state=%v inactive=%ds, want active/0",
				i+1, r.State, r.InactiveSeconds)
		}
	}
}

func TestEngineStillSampleTrendsToFloor(t *testing.T) {
	// No presence, zero delta: combined is false and confidence decays to
	// the inactive floor.
	src := &scriptedSource{}
	for i := 0; i < 10; i++ {
		src.samples = append(src.samples, stillSample())
	}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 10)

	last := sink.records[9]
	if last.State != StateInactive {
		t.Errorf("state = %v, want inactive", last.State)
	}
	if last.Confidence != 0.1 {
		t.Errorf("confidence = %v, want floor 0.1", last.Confidence)
	}
	prev := sink.records[0].Confidence
	for i, r := range sink.records[1:] {
		if r.Confidence > prev {
			t.Errorf("tick %d: confidence rose from %v to %v without motion", i+1, prev, r.Confidence)
		}
		prev = r.Confidence
	}
}

func TestEngineDeterministicReplay(t *testing.T) {
	samples := []RawSample{
		presenceSample(), stillSample(), stillSample(),
		{Accel: [3]float64{11.0, 0, 0}}, stillSample(), presenceSample(),
	}

	run := func() []DecisionRecord {
		src := &scriptedSource{samples: samples}
		sink := &captureSink{}
		e := New(testParams(), timeutil.RealClock{}, src, sink, nil)
		runTicks(e, t0, len(samples))
		return sink.records
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("replaying an identical stream diverged (-first +second):\n%s", diff)
	}
}

func TestEngineDegradedSample(t *testing.T) {
	// Source goes stale after two samples: the engine reuses the last-known
	// values, marks records degraded, and keeps ticking.
	src := &scriptedSource{samples: []RawSample{presenceSample(), stillSample()}}
	sink := &captureSink{}
	e := New(testParams(), timeutil.RealClock{}, src, sink, nil)

	runTicks(e, t0, 5)

	if len(sink.records) != 5 {
		t.Fatalf("emitted %d records, want 5: loop must survive a dead source", len(sink.records))
	}
	for i, r := range sink.records[:2] {
		if r.Degraded {
			t.Errorf("tick %d: fresh sample marked degraded", i)
		}
	}
	for i, r := range sink.records[2:] {
		if !r.Degraded {
			t.Errorf("tick %d: stale sample not marked degraded", i+2)
		}
	}
}

func TestEngineStats(t *testing.T) {
	src := &scriptedSource{}
	src.samples = append(src.samples, presenceSample())
	for i := 0; i < 25; i++ {
		src.samples = append(src.samples, stillSample())
	}
	e := New(testParams(), timeutil.RealClock{}, src, &captureSink{}, nil)

	runTicks(e, t0, 26)

	stats := e.Stats()
	if stats.TotalSamples != 26 {
		t.Errorf("TotalSamples = %d, want 26", stats.TotalSamples)
	}
	if stats.ActiveSamples != 1 {
		t.Errorf("ActiveSamples = %d, want 1", stats.ActiveSamples)
	}
	if stats.AlertCount != 1 {
		t.Errorf("AlertCount = %d, want 1 episode", stats.AlertCount)
	}
	if stats.LongestInactiveSec != 25 {
		t.Errorf("LongestInactiveSec = %d, want 25", stats.LongestInactiveSec)
	}

	e.ResetStats()
	if got := e.Stats(); got.TotalSamples != 0 {
		t.Errorf("stats after reset = %+v, want zeroed", got)
	}
}

func TestEngineStatusSnapshot(t *testing.T) {
	src := &scriptedSource{samples: []RawSample{presenceSample(), stillSample()}}
	e := New(testParams(), timeutil.RealClock{}, src, &captureSink{}, nil)

	e.tick(t0)
	status := e.Status()
	if status.State != StateActive || status.InactiveSeconds != 0 {
		t.Errorf("status after motion = %+v", status)
	}
	if !status.LastMotion.Equal(t0) {
		t.Errorf("LastMotion = %v, want %v", status.LastMotion, t0)
	}

	e.tick(t0.Add(2 * time.Second))
	status = e.Status()
	if status.State != StateTransition || status.InactiveSeconds != 2 {
		t.Errorf("status after 2s still = %+v", status)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	src := &scriptedSource{samples: []RawSample{presenceSample()}}
	e := New(testParams(), clock, src, &captureSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestEngineRunTicksWithClock(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	src := &scriptedSource{samples: []RawSample{presenceSample(), stillSample()}}
	e := New(testParams(), clock, src, &captureSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// Let the goroutine install its ticker before advancing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		clock.Advance(time.Second)
		if e.Status().State == StateActive {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("engine never processed a tick")
		}
		time.Sleep(time.Millisecond)
	}
}
