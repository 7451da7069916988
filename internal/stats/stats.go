// Package stats summarises timing series collected during an acquisition run.
package stats

import (
	"errors"
	"math"
)

// ErrEmpty is returned when a summary is requested for an empty series.
var ErrEmpty = errors.New("stats: empty series")

// Summary of a series of microsecond timings.
type Summary struct {
	Count uint64  `json:"count"`
	Avg   float64 `json:"avg"`
	Stdev float64 `json:"stdev"`
	Min   uint64  `json:"min"`
	Max   uint64  `json:"max"`
}

// Calculate returns mean, sample standard deviation (n-1 denominator), min and max.
// A single value has a standard deviation of 0.
func Calculate(values []uint64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrEmpty
	}

	s := Summary{
		Count: uint64(len(values)),
		Min:   math.MaxUint64,
	}

	var sum float64
	for _, v := range values {
		sum += float64(v)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(values))

	if len(values) == 1 {
		return s, nil
	}

	var sq float64
	for _, v := range values {
		d := float64(v) - s.Avg
		sq += d * d
	}
	s.Stdev = math.Sqrt(sq / float64(len(values)-1))

	return s, nil
}

// AchievedFrequency returns samples / (intervals * avgInterval) in Hz, where
// avgIntervalMicros is the mean interval in microseconds. It returns 0 when
// nothing was measured.
func AchievedFrequency(samples, intervals uint64, avgIntervalMicros float64) float64 {
	d := float64(intervals) * avgIntervalMicros / 1e6
	if d <= 0 {
		return 0
	}
	return float64(samples) / d
}
