// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/imu_tester/internal/acquire"
)

type vtimer struct {
	next     uint64
	interval uint64
}

// Signals is the virtual-time wake facility. Waiting advances the world clock
// to the earliest due timer or data-ready edge.
type Signals struct {
	w *World

	nextID  acquire.TimerID
	timers  map[acquire.TimerID]*vtimer
	pending []acquire.Event
	waits   int
}

func micros(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}

func (s *Signals) CreatePeriodic(initialDelay, interval time.Duration) (acquire.TimerID, error) {
	iv := micros(interval)
	if iv == 0 {
		return 0, fmt.Errorf("sim timer: interval must be at least 1µs, got %v", interval)
	}
	first := micros(initialDelay)
	if first == 0 {
		first = iv
	}
	if s.timers == nil {
		s.timers = make(map[acquire.TimerID]*vtimer)
	}
	s.nextID++
	s.timers[s.nextID] = &vtimer{next: s.w.now + first, interval: iv}
	return s.nextID, nil
}

func (s *Signals) Delete(id acquire.TimerID) {
	delete(s.timers, id)
}

// Notify queues ev. Only one event can be pending; later ones are dropped.
func (s *Signals) Notify(ev acquire.Event) {
	if len(s.pending) > 0 {
		return
	}
	s.pending = append(s.pending, ev)
}

func (s *Signals) WaitForAny(timeout time.Duration) (acquire.Event, bool) {
	s.waits++
	if n := s.w.opts.SpuriousEvery; n > 0 && s.waits%n == 0 {
		return acquire.Event{Kind: acquire.EventTimer, Timer: -1, At: s.w.now}, true
	}

	deadline := uint64(math.MaxUint64)
	if timeout > 0 {
		deadline = s.w.now + micros(timeout)
	}
	for len(s.pending) == 0 {
		due, fire, ok := s.nextDue()
		if !ok || due > deadline {
			if timeout > 0 {
				s.w.now = deadline
			}
			return acquire.Event{}, false
		}
		if due > s.w.now {
			s.w.now = due
		}
		fire()
	}

	ev := s.pending[0]
	s.pending = s.pending[:0]
	s.w.now += s.w.opts.WakeDelay
	return ev, true
}

// nextDue finds the earliest timer deadline or device edge. Ties between
// timers go to the lower id.
func (s *Signals) nextDue() (uint64, func(), bool) {
	var (
		best   uint64
		bestID acquire.TimerID
		ok     bool
	)
	for id, t := range s.timers {
		if !ok || t.next < best || (t.next == best && id < bestID) {
			best, bestID, ok = t.next, id, true
		}
	}
	var fire func()
	if ok {
		t := s.timers[bestID]
		fire = func() {
			s.Notify(acquire.Event{Kind: acquire.EventTimer, Timer: bestID, At: t.next})
			t.next += t.interval
		}
	}
	if at, has := s.w.dev.irqDue(); has && (!ok || at < best) {
		best, ok = at, true
		fire = s.w.dev.fireIRQ
	}
	return best, fire, ok
}
