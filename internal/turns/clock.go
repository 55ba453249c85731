package turns

import (
	"math"
	"time"
)

var epoch = time.Unix(0, 0).UTC()

// FormatClock renders seconds as a zero-padded HH:MM:SS wall-clock value.
// Fractional seconds are truncated and values wrap at 24 hours, matching a
// timestamp measured from the Unix epoch.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	return epoch.Add(d).Format(time.TimeOnly)
}
