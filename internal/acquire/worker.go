// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"fmt"
	"sync/atomic"

	"github.com/relabs-tech/imu_tester/internal/imu"
)

// run is the per-run context. The worker owns it exclusively until it exits;
// afterwards it is handed to the spawner through the join channel.
type run struct {
	sc    Scenario
	dev   Device
	sig   Signals
	clock Clock

	buf    *imu.Buffer
	timing *imu.TimingSeries

	state State
	err   error

	magSamples  uint64
	cycles      uint64
	readErrors  uint64
	lastReadErr error
	spurious    uint64

	fired   atomic.Uint64
	stopped atomic.Bool

	timer       TimerID
	haveTimer   bool
	fifoStarted bool
	scratch     []imu.Sample
}

func newRun(sc Scenario, dev Device, sig Signals, clock Clock) *run {
	return &run{
		sc:     sc,
		dev:    dev,
		sig:    sig,
		clock:  clock,
		buf:    imu.NewBuffer(sc.Quota),
		timing: imu.NewTimingSeries(sc.Quota),
		state:  StateNotStarted,
	}
}

// work is the worker body. It returns the exit status checked after the join.
func (r *run) work() int {
	code := r.sc.Mode.exitCode()
	r.state = StateRunning
	defer r.release()

	if err := r.dev.Initialize(r.sc.Config); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrInit, err))
		return code
	}

	switch r.sc.Mode {
	case ModeInterrupt:
		r.acquireInterrupt()
	case ModePoll:
		r.acquirePoll()
	case ModeFIFO:
		r.acquireFIFO()
	default:
		r.fail(fmt.Errorf("mode %s has no acquisition loop", r.sc.Mode))
	}
	return code
}

// release runs on every exit path of the worker.
func (r *run) release() {
	r.stopped.Store(true)
	if r.haveTimer {
		r.sig.Delete(r.timer)
		r.haveTimer = false
	}
	if r.fifoStarted {
		_ = r.dev.StopFIFO()
		r.fifoStarted = false
	}
	r.scratch = nil
	_ = r.dev.Close()
}

func (r *run) fail(err error) {
	r.state = StateFailed
	r.err = err
}

func (r *run) skip(err error) {
	r.state = StateSkipped
	r.err = err
}

// onInterrupt runs in the driver's interrupt context: timestamp and wake only.
func (r *run) onInterrupt() {
	if r.stopped.Load() {
		return
	}
	at := r.clock.NowMicros()
	r.fired.Add(1)
	r.sig.Notify(Event{Kind: EventInterrupt, At: at})
}

// wait blocks until an event of the wanted kind arrives, dropping anything
// else. It returns false when the wait timed out.
func (r *run) wait(kind EventKind) (Event, bool) {
	for {
		ev, ok := r.sig.WaitForAny(r.sc.WaitTimeout)
		if !ok {
			return Event{}, false
		}
		if ev.Kind != kind || (kind == EventTimer && ev.Timer != r.timer) {
			r.spurious++
			continue
		}
		return ev, true
	}
}

func (r *run) stall() {
	r.fail(fmt.Errorf("%w for %v after %d samples", ErrStalled, r.sc.WaitTimeout, r.buf.Len()))
}

func (r *run) armTimer() bool {
	period := r.sc.WakePeriod()
	id, err := r.sig.CreatePeriodic(period, period)
	if err != nil {
		r.fail(fmt.Errorf("%w: timer (%v): %w", ErrRegistration, period, err))
		return false
	}
	r.timer = id
	r.haveTimer = true
	return true
}

// readOne performs one blocking single-sample read and records its timing.
// Failed reads are counted and the cycle is skipped.
func (r *run) readOne(ev Event, cycleStart *uint64) {
	ioStart := r.clock.NowMicros()
	s, err := r.dev.GetData()
	if err != nil {
		r.readErrors++
		r.lastReadErr = err
		return
	}
	ioEnd := r.clock.NowMicros()

	r.buf.Append(s)
	if s.MagDataReady {
		r.magSamples++
	}

	cycleEnd := r.clock.NowMicros()
	r.record(since(ioStart, ev.At), since(ioEnd, ioStart), since(cycleEnd, *cycleStart))
	*cycleStart = cycleEnd
}

// record stores one cycle's timing. Cycles past the series capacity are not
// counted, so Cycles always matches the timing series length.
func (r *run) record(wake, io, interval uint64) {
	if r.timing.Record(wake, io, interval) {
		r.cycles++
	}
}

func (r *run) acquireInterrupt() {
	if err := r.dev.RegisterInterrupt(r.sc.InterruptLine, r.onInterrupt); err != nil {
		r.fail(fmt.Errorf("%w: interrupt line %d: %w", ErrRegistration, r.sc.InterruptLine, err))
		return
	}

	cycleStart := r.clock.NowMicros()
	for !r.buf.Full() {
		ev, ok := r.wait(EventInterrupt)
		if !ok {
			r.stall()
			return
		}
		r.readOne(ev, &cycleStart)
	}
}

func (r *run) acquirePoll() {
	if !r.armTimer() {
		return
	}

	cycleStart := r.clock.NowMicros()
	for !r.buf.Full() {
		ev, ok := r.wait(EventTimer)
		if !ok {
			r.stall()
			return
		}
		r.readOne(ev, &cycleStart)
	}
}

func (r *run) acquireFIFO() {
	capacity := r.dev.FIFOCapacity()
	if capacity <= 0 {
		r.skip(fmt.Errorf("device has no FIFO for mask 0x%02X", r.sc.Config.FIFOMask))
		return
	}
	if r.sc.FIFOBatch > capacity {
		r.fail(fmt.Errorf("%w: batch %d, capacity %d", ErrFIFOBatch, r.sc.FIFOBatch, capacity))
		return
	}
	r.scratch = make([]imu.Sample, capacity)

	if err := r.dev.StartFIFO(); err != nil {
		r.fail(fmt.Errorf("%w: start: %w", ErrInit, err))
		return
	}
	r.fifoStarted = true

	if !r.armTimer() {
		return
	}

	cycleStart := r.clock.NowMicros()
	for !r.buf.Full() {
		ev, ok := r.wait(EventTimer)
		if !ok {
			r.stall()
			return
		}

		ioStart := r.clock.NowMicros()
		n, err := r.dev.ReadFIFO(r.scratch)
		if err != nil {
			r.fail(fmt.Errorf("%w after %d samples: %w", ErrFIFORead, r.buf.Len(), err))
			return
		}
		if n > len(r.scratch) {
			n = len(r.scratch)
		}
		// anything past the quota is dropped
		r.buf.AppendBatch(r.scratch[:n])
		ioEnd := r.clock.NowMicros()

		cycleEnd := r.clock.NowMicros()
		r.record(since(ioStart, ev.At), since(ioEnd, ioStart), since(cycleEnd, cycleStart))
		cycleStart = cycleEnd
	}
}

// since returns a-b, or 0 if b is later than a.
func since(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
