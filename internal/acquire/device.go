// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"time"

	"github.com/relabs-tech/imu_tester/internal/imu"
)

// InterruptFunc is called by the device on every data-ready interrupt. It runs
// in the driver's interrupt context and must return quickly without blocking.
type InterruptFunc func()

// Device is the IMU driver a run acquires samples from.
type Device interface {
	Initialize(cfg imu.Config) error
	Close() error
	RegisterInterrupt(line int, cb InterruptFunc) error
	GetData() (imu.Sample, error)

	// FIFOCapacity returns how many samples the hardware FIFO holds for the
	// configured channel mask, or 0 when the device has no FIFO.
	FIFOCapacity() int
	StartFIFO() error
	StopFIFO() error
	// ReadFIFO drains up to len(dst) samples into dst and returns the count.
	ReadFIFO(dst []imu.Sample) (int, error)
}

// Clock is a monotonic microsecond clock shared by the worker and the
// interrupt callback.
type Clock interface {
	NowMicros() uint64
}

// EventKind identifies what woke the worker.
type EventKind int

const (
	EventNone EventKind = iota
	EventInterrupt
	EventTimer
)

func (k EventKind) String() string {
	switch k {
	case EventInterrupt:
		return "interrupt"
	case EventTimer:
		return "timer"
	default:
		return "none"
	}
}

// TimerID names a periodic timer created through Signals.
type TimerID int

// Event is delivered to a waiting worker.
type Event struct {
	Kind  EventKind
	Timer TimerID // set for EventTimer
	At    uint64  // microseconds on the run's Clock when the event fired
}

// Signals is the wake facility a worker blocks on. A new instance is used for
// every run so that stale events never leak into the next one.
type Signals interface {
	// CreatePeriodic arms a timer that first fires after initialDelay and then
	// every interval.
	CreatePeriodic(initialDelay, interval time.Duration) (TimerID, error)
	Delete(id TimerID)
	// Notify posts ev without blocking. Safe to call from interrupt context.
	Notify(ev Event)
	// WaitForAny blocks until an event arrives. It returns false if nothing
	// arrived within timeout; a timeout <= 0 waits forever.
	WaitForAny(timeout time.Duration) (Event, bool)
}
