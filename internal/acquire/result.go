// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"fmt"
	"time"

	"github.com/relabs-tech/imu_tester/internal/imu"
	"github.com/relabs-tech/imu_tester/internal/rate"
	"github.com/relabs-tech/imu_tester/internal/stats"
)

// State of a run.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StatePassed
	StateFailed
	StateSkipped
)

func (s State) String() string {
	return [...]string{"not_started", "running", "passed", "failed", "skipped"}[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := StateNotStarted; st <= StateSkipped; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", b)
}

// RunResult is the summary of one scenario run.
type RunResult struct {
	RunID    string       `json:"run_id"`
	Scenario string       `json:"scenario"`
	Mode     Mode         `json:"mode"`
	State    State        `json:"state"`
	Verdict  rate.Verdict `json:"verdict"`
	Message  string       `json:"message,omitempty"`

	Samples        int    `json:"samples"`
	MagSamples     uint64 `json:"mag_samples"`
	Outliers       int    `json:"outliers"`
	ReadErrors     uint64 `json:"read_errors"`
	SpuriousWakes  uint64 `json:"spurious_wakes"`
	Interrupts     uint64 `json:"interrupts"`
	Cycles         uint64 `json:"cycles"`
	InitRuns       int    `json:"init_runs,omitempty"`
	InitFailures   int    `json:"init_failures,omitempty"`

	Channels []rate.ChannelResult `json:"channels,omitempty"`

	WakeLatency *stats.Summary `json:"wake_latency_us,omitempty"`
	IOLatency   *stats.Summary `json:"io_latency_us,omitempty"`
	Interval    *stats.Summary `json:"interval_us,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Recorded data handed over by the worker after the join.
	Data   []imu.Sample      `json:"-"`
	Timing *imu.TimingSeries `json:"-"`
}

// Channel returns the frequency check for name, if it was evaluated.
func (r *RunResult) Channel(name string) (rate.ChannelResult, bool) {
	for _, c := range r.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return rate.ChannelResult{}, false
}
