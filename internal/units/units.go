// Package units provides shared rounding and formatting helpers for sensor
// values exposed through records and the API.
package units

import (
	"fmt"
	"math"
	"time"
)

// MagnitudePrecision is the number of decimal places used when formatting
// acceleration magnitudes. Downstream consumers parse the record stream, so
// this must stay stable.
const MagnitudePrecision = 3

// RoundMagnitude rounds an acceleration magnitude to MagnitudePrecision
// decimal places.
func RoundMagnitude(v float64) float64 {
	scale := math.Pow10(MagnitudePrecision)
	return math.Round(v*scale) / scale
}

// FormatMagnitude formats an acceleration magnitude with a fixed number of
// decimal places, e.g. "0.234".
func FormatMagnitude(v float64) string {
	return fmt.Sprintf("%.*f", MagnitudePrecision, v)
}

// WholeSeconds converts a duration to whole seconds, never negative.
func WholeSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// RoundPercent rounds a percentage to two decimal places.
func RoundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
