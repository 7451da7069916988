// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package realtime provides the wall-clock Clock and the ticker-backed
// Signals used when the scheduler drives real hardware.
package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/imu_tester/internal/acquire"
)

// Clock reports microseconds since it was created, using Go's monotonic clock.
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

func (c *Clock) NowMicros() uint64 {
	return c.Micros(time.Now())
}

// Micros converts t to the clock's time base. Times before the clock start map to 0.
func (c *Clock) Micros(t time.Time) uint64 {
	d := t.Sub(c.start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}

type periodic struct {
	stop chan struct{}
}

// Signals delivers interrupt and timer events to a single waiting worker.
// The event queue holds one pending event; a wake that arrives while one is
// already pending is dropped, the same way a pending POSIX signal coalesces.
type Signals struct {
	clock  *Clock
	events chan acquire.Event

	mu     sync.Mutex
	nextID acquire.TimerID
	timers map[acquire.TimerID]*periodic

	wait *time.Timer
}

func NewSignals(clock *Clock) *Signals {
	return &Signals{
		clock:  clock,
		events: make(chan acquire.Event, 1),
		timers: make(map[acquire.TimerID]*periodic),
	}
}

// CreatePeriodic starts a timer that first fires after initialDelay and then
// every interval.
func (s *Signals) CreatePeriodic(initialDelay, interval time.Duration) (acquire.TimerID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("timer interval must be positive, got %v", interval)
	}
	if initialDelay <= 0 {
		initialDelay = interval
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	p := &periodic{stop: make(chan struct{})}
	s.timers[id] = p
	s.mu.Unlock()

	go s.tick(id, p, initialDelay, interval)
	return id, nil
}

func (s *Signals) tick(id acquire.TimerID, p *periodic, initialDelay, interval time.Duration) {
	first := time.NewTimer(initialDelay)
	select {
	case <-p.stop:
		first.Stop()
		return
	case t := <-first.C:
		s.Notify(acquire.Event{Kind: acquire.EventTimer, Timer: id, At: s.clock.Micros(t)})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case t := <-ticker.C:
			s.Notify(acquire.Event{Kind: acquire.EventTimer, Timer: id, At: s.clock.Micros(t)})
		}
	}
}

// Delete stops the timer. Unknown ids are ignored.
func (s *Signals) Delete(id acquire.TimerID) {
	s.mu.Lock()
	p, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		close(p.stop)
	}
}

// Notify queues ev without blocking.
func (s *Signals) Notify(ev acquire.Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// WaitForAny blocks for the next event or until timeout elapses. A timeout
// of zero or less waits forever.
func (s *Signals) WaitForAny(timeout time.Duration) (acquire.Event, bool) {
	if timeout <= 0 {
		return <-s.events, true
	}
	if s.wait == nil {
		s.wait = time.NewTimer(timeout)
	} else {
		s.wait.Reset(timeout)
	}
	select {
	case ev := <-s.events:
		if !s.wait.Stop() {
			select {
			case <-s.wait.C:
			default:
			}
		}
		return ev, true
	case <-s.wait.C:
		return acquire.Event{}, false
	}
}

// Close stops every timer still running.
func (s *Signals) Close() {
	s.mu.Lock()
	ids := make([]acquire.TimerID, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Delete(id)
	}
}
