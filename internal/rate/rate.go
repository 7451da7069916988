// Package rate decides whether a run achieved its target sampling frequency.
package rate

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultTolerance accepts an achieved rate within ±5 % of the target.
const DefaultTolerance = 0.05

// Verdict is the tri-state outcome of a scenario.
type Verdict int

const (
	Skip Verdict = iota
	Pass
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	default:
		return "SKIP"
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

func (v *Verdict) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "PASS":
		*v = Pass
	case "FAIL":
		*v = Fail
	case "SKIP":
		*v = Skip
	default:
		return fmt.Errorf("unknown verdict %q", s)
	}
	return nil
}

// Combine folds verdicts the way a suite is reported: any FAIL wins, then any
// PASS, and only an all-SKIP set is SKIP.
func Combine(vs ...Verdict) Verdict {
	out := Skip
	for _, v := range vs {
		switch v {
		case Fail:
			return Fail
		case Pass:
			out = Pass
		}
	}
	return out
}

// ChannelResult is the frequency check of one sensor channel.
type ChannelResult struct {
	Name       string  `json:"name"`
	TargetHz   float64 `json:"target_hz"`
	AchievedHz float64 `json:"achieved_hz"`
	Tolerance  float64 `json:"tolerance"`
	Pass       bool    `json:"pass"`
}

// Error returns the absolute deviation from the target, in Hz.
func (c ChannelResult) Error() float64 { return math.Abs(c.TargetHz - c.AchievedHz) }

// Check compares achieved against target. A deviation of exactly
// tolerance*target is still accepted.
func Check(name string, targetHz, achievedHz, tolerance float64) ChannelResult {
	return ChannelResult{
		Name:       name,
		TargetHz:   targetHz,
		AchievedHz: achievedHz,
		Tolerance:  tolerance,
		Pass:       math.Abs(targetHz-achievedHz) <= tolerance*targetHz,
	}
}

// Validate passes only when every evaluated channel passes. With no channels
// there is nothing to judge and the result is Skip.
func Validate(channels ...ChannelResult) Verdict {
	if len(channels) == 0 {
		return Skip
	}
	for _, c := range channels {
		if !c.Pass {
			return Fail
		}
	}
	return Pass
}
