package turns_test

import (
	"math"
	"testing"

	"minutes/internal/turns"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{3, "00:00:03"},
		{59.999, "00:00:59"},
		{3661.5, "01:01:01"},
		{86400 + 5, "00:00:05"},
		{-0.5, "23:59:59"},
		{math.NaN(), "00:00:00"},
	}
	for _, tc := range tests {
		if got := turns.FormatClock(tc.seconds); got != tc.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
