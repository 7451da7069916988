// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"fmt"
	"time"

	"github.com/relabs-tech/imu_tester/internal/imu"
	"github.com/relabs-tech/imu_tester/internal/outlier"
	"github.com/relabs-tech/imu_tester/internal/rate"
)

// Mode selects how a scenario talks to the device.
type Mode int

const (
	// ModeInterrupt wakes on the data-ready interrupt and reads one sample.
	ModeInterrupt Mode = iota
	// ModePoll wakes on a timer at the sample rate and reads one sample.
	ModePoll
	// ModeFIFO wakes on a timer every FIFOBatch samples and drains the FIFO.
	ModeFIFO
	// ModeInit initializes and closes the device once.
	ModeInit
	// ModeInitMulti repeats ModeInit InitRuns times.
	ModeInitMulti
)

var modeNames = map[Mode]string{
	ModeInterrupt: "interrupt",
	ModePoll:      "poll",
	ModeFIFO:      "fifo",
	ModeInit:      "init",
	ModeInitMulti: "init_multi",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	p, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = p
	return nil
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown acquisition mode %q", s)
}

// Worker exit statuses, checked by the spawner after the join.
const (
	exitMeasurement = 1
	exitFIFOPoll    = 3
)

func (m Mode) exitCode() int {
	if m == ModeFIFO {
		return exitFIFOPoll
	}
	return exitMeasurement
}

// Defaults applied by Scenario.WithDefaults.
const (
	DefaultFIFOBatch   = 16
	DefaultWaitTimeout = time.Second
	DefaultInitRuns    = 100
	DefaultInitPause   = 100 * time.Millisecond
)

// Scenario is one test case: a device configuration, a strategy and the
// numbers the verdict is judged with.
type Scenario struct {
	Name   string
	Mode   Mode
	Config imu.Config

	Quota            int     // samples to collect
	InterruptLine    int     // data-ready GPIO line (ModeInterrupt)
	FIFOBatch        int     // samples per FIFO burst period (ModeFIFO)
	Tolerance        float64 // accepted relative rate error
	OutlierThreshold float64 // physical units

	// WaitTimeout bounds a single wait for a wake event. A run that stalls
	// this long fails instead of hanging. Unset, it is two wake periods but
	// never less than DefaultWaitTimeout.
	WaitTimeout time.Duration

	InitRuns  int
	InitPause time.Duration

	// DumpSamples logs every recorded sample at debug level after the run.
	DumpSamples bool
}

// WithDefaults fills zero fields.
func (s Scenario) WithDefaults() Scenario {
	if s.Quota <= 0 {
		s.Quota = imu.MaxSamples
	}
	if s.FIFOBatch <= 0 {
		s.FIFOBatch = DefaultFIFOBatch
	}
	if s.Tolerance <= 0 {
		s.Tolerance = rate.DefaultTolerance
	}
	if s.OutlierThreshold <= 0 {
		s.OutlierThreshold = outlier.DefaultThreshold
	}
	if s.WaitTimeout == 0 {
		s.WaitTimeout = max(DefaultWaitTimeout, 2*s.WakePeriod())
	}
	if s.InitRuns <= 0 {
		s.InitRuns = DefaultInitRuns
	}
	if s.InitPause < 0 {
		s.InitPause = 0
	}
	return s
}

// SamplePeriod is the interval between two samples at the configured gyro rate.
func (s Scenario) SamplePeriod() time.Duration {
	hz := s.Config.GyroRate.Hz()
	if hz == 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}

// WakePeriod is the timer period used by the polled strategies.
func (s Scenario) WakePeriod() time.Duration {
	if s.Mode == ModeFIFO {
		return s.SamplePeriod() * time.Duration(s.FIFOBatch)
	}
	return s.SamplePeriod()
}
