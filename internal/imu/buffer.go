// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// MaxSamples is the default sample quota of a run.
const MaxSamples = 10000

// Buffer is an append-only, fixed-capacity store of samples.
// It never grows past the capacity given to NewBuffer: appends beyond it are
// dropped and reported to the caller.
type Buffer struct {
	samples []Sample
}

// NewBuffer allocates a buffer able to hold exactly capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{samples: make([]Sample, 0, capacity)}
}

// Append stores s and reports whether there was room for it.
func (b *Buffer) Append(s Sample) bool {
	if len(b.samples) == cap(b.samples) {
		return false
	}
	b.samples = append(b.samples, s)
	return true
}

// AppendBatch stores as many leading samples of batch as fit and returns how
// many were stored. The rest of the batch is discarded.
func (b *Buffer) AppendBatch(batch []Sample) int {
	n := len(batch)
	if r := b.Remaining(); n > r {
		n = r
	}
	b.samples = append(b.samples, batch[:n]...)
	return n
}

func (b *Buffer) Len() int       { return len(b.samples) }
func (b *Buffer) Cap() int       { return cap(b.samples) }
func (b *Buffer) Remaining() int { return cap(b.samples) - len(b.samples) }
func (b *Buffer) Full() bool     { return len(b.samples) == cap(b.samples) }

// Samples returns the recorded samples. Callers must treat the slice as read-only.
func (b *Buffer) Samples() []Sample {
	return b.samples[:len(b.samples):len(b.samples)]
}

// TimingSeries holds the three per-cycle timing measurements of a run, in
// microseconds. All three series always have the same length.
type TimingSeries struct {
	WakeLatency []uint64 `json:"wake_latency_us"`
	IOLatency   []uint64 `json:"io_latency_us"`
	Interval    []uint64 `json:"interval_us"`
}

// NewTimingSeries preallocates room for capacity cycles.
func NewTimingSeries(capacity int) *TimingSeries {
	if capacity < 0 {
		capacity = 0
	}
	return &TimingSeries{
		WakeLatency: make([]uint64, 0, capacity),
		IOLatency:   make([]uint64, 0, capacity),
		Interval:    make([]uint64, 0, capacity),
	}
}

// Record appends one cycle. It reports false once the series is full.
func (t *TimingSeries) Record(wake, io, interval uint64) bool {
	if len(t.Interval) == cap(t.Interval) {
		return false
	}
	t.WakeLatency = append(t.WakeLatency, wake)
	t.IOLatency = append(t.IOLatency, io)
	t.Interval = append(t.Interval, interval)
	return true
}

func (t *TimingSeries) Len() int { return len(t.Interval) }
