package engine

import (
	"fmt"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/units"
)

// DecisionRecord is the immutable per-tick output unit handed to the store
// and downstream consumers. It is never mutated after emission.
type DecisionRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Presence        bool      `json:"presence"`
	DeltaMag        float64   `json:"delta_mag"`
	SmoothedDelta   float64   `json:"delta_mag_smoothed"`
	InactiveSeconds int       `json:"inactive_seconds"`
	State           State     `json:"state"`
	Confidence      float64   `json:"confidence"`
	Alerted         bool      `json:"alerted"`
	Degraded        bool      `json:"degraded"`
}

// Emitter assembles decision records with stable field ordering and fixed
// numeric precision so downstream consumers get a consistent, parseable
// shape every tick. Pure assembly, no business logic.
type Emitter struct{}

// Emit builds the decision record for one tick.
func (Emitter) Emit(ts time.Time, sample RawSample, verdict MotionVerdict, state State, confidence float64, inactive time.Duration, alerted bool) DecisionRecord {
	return DecisionRecord{
		Timestamp:       ts,
		Presence:        sample.Presence,
		DeltaMag:        units.RoundMagnitude(verdict.DeltaMag),
		SmoothedDelta:   units.RoundMagnitude(verdict.SmoothedDelta),
		InactiveSeconds: units.WholeSeconds(inactive),
		State:           state,
		Confidence:      units.RoundPercent(confidence),
		Alerted:         alerted,
		Degraded:        sample.Degraded,
	}
}

// CSV renders the record as one comma-separated line, matching the column
// order of the struct. Used for the diagnostic record log.
func (r DecisionRecord) CSV() string {
	return fmt.Sprintf("%s,%s,%s,%s,%d,%s,%.2f,%s,%s",
		r.Timestamp.Format(time.RFC3339),
		boolBit(r.Presence),
		units.FormatMagnitude(r.DeltaMag),
		units.FormatMagnitude(r.SmoothedDelta),
		r.InactiveSeconds,
		r.State,
		r.Confidence,
		boolBit(r.Alerted),
		boolBit(r.Degraded),
	)
}

func boolBit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
