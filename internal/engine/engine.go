// Package engine implements the real-time sensor-fusion, state-classification,
// and alert-debouncing pipeline. One sample is acquired, fused, classified,
// checked for alerts, and emitted per tick, on a single goroutine, so each
// component's small owned state is never mutated concurrently.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/monitoring"
	"github.com/stillwatch-data/sedentary.report/internal/timeutil"
)

// SampleSource supplies one raw sample per tick. Sample must return within
// the tick budget; ok reports whether a fresh reading arrived since the
// previous call. When ok is false the engine reuses the last-known values
// and marks the record as degraded rather than stalling the loop.
type SampleSource interface {
	Sample() (RawSample, bool)
}

// RecordSink consumes the per-tick decision record stream. Sink errors are
// logged and never halt the tick loop.
type RecordSink interface {
	Record(DecisionRecord) error
}

// Status is a point-in-time snapshot of the engine for the query layer.
type Status struct {
	State           State     `json:"activity_state"`
	InactiveSeconds int       `json:"inactive_seconds"`
	Confidence      float64   `json:"confidence"`
	Alerted         bool      `json:"is_alerted"`
	Degraded        bool      `json:"degraded"`
	LastMotion      time.Time `json:"last_movement"`
}

// Params are the validated tuning values the engine runs with.
type Params struct {
	MovementThreshold  float64
	SedentaryThreshold time.Duration
	TransitionWindow   time.Duration
	SmoothingWindow    int
	TickInterval       time.Duration
}

// Engine drives the fixed-cadence classification loop.
type Engine struct {
	params Params
	clock  timeutil.Clock
	source SampleSource
	sink   RecordSink

	fusion     *FusionEvaluator
	machine    *StateMachine
	dispatcher *AlertDispatcher
	emitter    Emitter
	stats      statsTracker

	lastSample RawSample
	haveSample bool

	// snapshot state, guarded for concurrent reads from the API layer
	snapMu sync.Mutex
	status Status
}

// New creates an engine from validated params and collaborators. hook may be
// nil if episode transitions need no persistence.
func New(params Params, clock timeutil.Clock, source SampleSource, sink RecordSink, hook EpisodeHook) *Engine {
	return &Engine{
		params:     params,
		clock:      clock,
		source:     source,
		sink:       sink,
		fusion:     NewFusionEvaluator(params.MovementThreshold, params.SmoothingWindow),
		machine:    NewStateMachine(params.MovementThreshold, params.TransitionWindow),
		dispatcher: NewAlertDispatcher(params.SedentaryThreshold, hook),
		status:     Status{State: StateActive},
	}
}

// Run executes the tick loop until the context is cancelled. There is no
// suspension mid-tick: each tick runs to completion before the next sample
// is acquired.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			e.tick(now)
		}
	}
}

// tick runs the sample→record pipeline once.
func (e *Engine) tick(now time.Time) {
	sample, fresh := e.source.Sample()
	if fresh {
		e.lastSample = sample
		e.haveSample = true
	} else {
		// Sensor unavailable: degrade gracefully with the last-known values.
		sample = e.lastSample
		sample.Degraded = true
	}

	// Until the first real reading arrives there is nothing to evaluate. A
	// zero-valued placeholder must not seed the inertial baseline, or the
	// first genuine ~1g sample would read as a large movement.
	var verdict MotionVerdict
	if e.haveSample {
		verdict = e.fusion.Evaluate(sample)
	}
	state, confidence := e.machine.Advance(verdict, now)
	inactive := e.machine.InactiveDuration(now)
	alerted := e.dispatcher.Check(verdict.Combined, inactive, now)

	record := e.emitter.Emit(now, sample, verdict, state, confidence, inactive, alerted)

	if e.sink != nil {
		if err := e.sink.Record(record); err != nil {
			monitoring.Logf("failed to record decision: %v", err)
		}
	}

	e.snapMu.Lock()
	e.stats.observe(state, inactive, alerted)
	e.status = Status{
		State:           state,
		InactiveSeconds: record.InactiveSeconds,
		Confidence:      record.Confidence,
		Alerted:         alerted,
		Degraded:        sample.Degraded,
		LastMotion:      e.machine.LastMotion(),
	}
	e.snapMu.Unlock()
}

// Status returns the most recent engine snapshot.
func (e *Engine) Status() Status {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.status
}

// Stats returns the session statistics accumulated since startup or the last
// reset.
func (e *Engine) Stats() SessionStats {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.stats.snapshot()
}

// ResetStats clears the session statistics.
func (e *Engine) ResetStats() {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	e.stats.reset()
}
