// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a deterministic stand-in for the sensor and the OS timer
// facility. Time is virtual: it only moves when the worker waits or when the
// device is charged an I/O cost, so a 10000 sample run completes instantly and
// always produces the same numbers.
package sim

import (
	"github.com/relabs-tech/imu_tester/internal/acquire"
)

// Options configures a World. Zero values describe an ideal device.
type Options struct {
	// IOCost is the virtual time, in µs, a single-sample read takes.
	IOCost uint64
	// FIFOSampleCost is charged per sample drained by ReadFIFO.
	FIFOSampleCost uint64
	// FIFOBytes is the size of the device FIFO. Defaults to 512.
	FIFOBytes int
	// NoFIFO makes FIFOCapacity report 0.
	NoFIFO bool

	// InitErr fails every Initialize call. InitFailEvery fails every n-th.
	InitErr       error
	InitFailEvery int
	RegisterErr   error
	StartFIFOErr  error
	// ReadFailEvery fails every n-th GetData call.
	ReadFailEvery int
	// FIFOFailAtSample fails ReadFIFO once this many samples were drained.
	FIFOFailAtSample int
	// NoInterrupts keeps the data-ready line silent after registration.
	NoInterrupts bool
	// CorruptEvery replaces every n-th sample's gyro reading with garbage.
	CorruptEvery int

	// WakeDelay is added between an event becoming due and the worker waking.
	WakeDelay uint64
	// SpuriousEvery delivers a foreign timer event on every n-th wait.
	SpuriousEvery int
}

// World owns the virtual clock shared by its device and signal facilities.
type World struct {
	opts Options
	now  uint64
	dev  *Device
}

func NewWorld(opts Options) *World {
	if opts.FIFOBytes <= 0 {
		opts.FIFOBytes = 512
	}
	w := &World{opts: opts}
	w.dev = &Device{w: w}
	return w
}

// NowMicros implements acquire.Clock.
func (w *World) NowMicros() uint64 { return w.now }

// Advance moves virtual time forward.
func (w *World) Advance(us uint64) { w.now += us }

func (w *World) Device() *Device { return w.dev }

// NewSignals returns a fresh wake facility bound to this world.
func (w *World) NewSignals() acquire.Signals {
	return &Signals{w: w}
}

// Scheduler wires a scheduler to this world.
func (w *World) Scheduler() *acquire.Scheduler {
	return &acquire.Scheduler{Device: w.dev, Clock: w, NewSignals: w.NewSignals}
}
