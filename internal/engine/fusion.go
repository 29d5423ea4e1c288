package engine

import "math"

// RawSample is one raw reading from the sample source: a binary presence
// signal and a 3-axis acceleration vector. Degraded marks a sample that was
// substituted from the last known values because the source had nothing
// fresh to offer.
type RawSample struct {
	Time     int64 // device uptime in milliseconds
	Presence bool
	Accel    [3]float64
	Degraded bool
}

// MotionVerdict is the fused motion decision for a single sample. It is
// derived entirely from the current and immediately preceding sample.
type MotionVerdict struct {
	DeltaMag          float64
	SmoothedDelta     float64
	PresenceTriggered bool
	InertialTriggered bool
	Combined          bool
}

// FusionEvaluator converts raw samples into motion verdicts. The only state
// carried between calls is the previous acceleration magnitude and the
// smoothing window.
type FusionEvaluator struct {
	movementThreshold float64

	prevMagnitude float64
	hasBaseline   bool

	smoothing []float64
	smoothLen int
}

// NewFusionEvaluator creates an evaluator with the given inertial trigger
// threshold and moving-average window size.
func NewFusionEvaluator(movementThreshold float64, smoothingWindow int) *FusionEvaluator {
	if smoothingWindow < 1 {
		smoothingWindow = 1
	}
	return &FusionEvaluator{
		movementThreshold: movementThreshold,
		smoothLen:         smoothingWindow,
	}
}

// Evaluate fuses a raw sample into a motion verdict. Either sensor alone is
// sufficient evidence of motion, so the fused decision is an OR of the two
// triggers. The very first sample has no magnitude baseline and never
// inertial-triggers.
func (f *FusionEvaluator) Evaluate(sample RawSample) MotionVerdict {
	magnitude := math.Sqrt(
		sample.Accel[0]*sample.Accel[0] +
			sample.Accel[1]*sample.Accel[1] +
			sample.Accel[2]*sample.Accel[2])

	var delta float64
	inertial := false
	if f.hasBaseline {
		delta = math.Abs(magnitude - f.prevMagnitude)
		inertial = delta > f.movementThreshold
	}
	f.prevMagnitude = magnitude
	f.hasBaseline = true

	smoothed := f.smooth(delta)

	return MotionVerdict{
		DeltaMag:          delta,
		SmoothedDelta:     smoothed,
		PresenceTriggered: sample.Presence,
		InertialTriggered: inertial,
		Combined:          sample.Presence || inertial,
	}
}

// smooth appends delta to the moving-average window and returns the mean.
// The smoothed value is recorded and charted; the raw delta still drives the
// inertial trigger.
func (f *FusionEvaluator) smooth(delta float64) float64 {
	f.smoothing = append(f.smoothing, delta)
	if len(f.smoothing) > f.smoothLen {
		f.smoothing = f.smoothing[1:]
	}
	sum := 0.0
	for _, v := range f.smoothing {
		sum += v
	}
	return sum / float64(len(f.smoothing))
}

// Reset clears the magnitude baseline and smoothing window.
func (f *FusionEvaluator) Reset() {
	f.prevMagnitude = 0
	f.hasBaseline = false
	f.smoothing = nil
}
