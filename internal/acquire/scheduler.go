// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_tester/internal/imu"
	"github.com/relabs-tech/imu_tester/internal/outlier"
	"github.com/relabs-tech/imu_tester/internal/rate"
	"github.com/relabs-tech/imu_tester/internal/stats"
)

// Scheduler runs scenarios against one device, one at a time.
type Scheduler struct {
	Device Device
	Clock  Clock
	// NewSignals returns a fresh wake facility for each run.
	NewSignals func() Signals
}

type workerExit struct {
	code int
	run  *run
}

// Run executes sc to completion and returns its result. It never returns an
// error: every failure ends up in the verdict and the message.
func (s *Scheduler) Run(sc Scenario) RunResult {
	sc = sc.WithDefaults()
	res := RunResult{
		RunID:    uuid.NewString(),
		Scenario: sc.Name,
		Mode:     sc.Mode,
		State:    StateNotStarted,
		Started:  time.Now(),
	}

	log.Printf("**** %s (%s) ****", sc.Name, sc.Mode)

	switch sc.Mode {
	case ModeInit:
		s.runInit(sc, &res)
	case ModeInitMulti:
		s.runInitMulti(sc, &res)
	case ModeInterrupt, ModePoll, ModeFIFO:
		s.runWorker(sc, &res)
	default:
		finish(&res, StateFailed, fmt.Errorf("unknown mode %d", int(sc.Mode)))
	}

	res.Finished = time.Now()
	log.Printf("**** %s: %s ****", sc.Name, res.Verdict)
	return res
}

// runWorker spawns the acquisition worker and blocks until it exits. Only
// then is the recorded data analysed.
func (s *Scheduler) runWorker(sc Scenario, res *RunResult) {
	r := newRun(sc, s.Device, s.NewSignals(), s.Clock)
	log.Debugf("%s: worker created (quota %d, wake period %v)", sc.Name, sc.Quota, sc.WakePeriod())

	done := make(chan workerExit, 1)
	go func() {
		defer close(done)
		// keep the measurement loop on one OS thread for its whole life
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer func() {
			if p := recover(); p != nil {
				r.fail(fmt.Errorf("worker panic: %v", p))
				done <- workerExit{code: -1, run: r}
			}
		}()
		done <- workerExit{code: r.work(), run: r}
	}()

	exit, joined := <-done
	if !joined {
		finish(res, StateFailed, fmt.Errorf("%w: worker exited without status", ErrWorkerExit))
		return
	}
	if exit.code != sc.Mode.exitCode() {
		s.collect(exit.run, res)
		finish(res, StateFailed, fmt.Errorf("%w: got %d, want %d", ErrWorkerExit, exit.code, sc.Mode.exitCode()))
		return
	}

	s.analyze(exit.run, res)
}

// collect moves the worker's data into the result and computes the
// diagnostics that do not depend on the verdict.
func (s *Scheduler) collect(r *run, res *RunResult) {
	res.Data = r.buf.Samples()
	res.Timing = r.timing
	res.Samples = r.buf.Len()
	res.MagSamples = r.magSamples
	res.ReadErrors = r.readErrors
	res.SpuriousWakes = r.spurious
	res.Interrupts = r.fired.Load()
	res.Cycles = r.cycles

	if res.ReadErrors > 0 {
		log.Warnf("%s: %v %d times, last error: %v", r.sc.Name, ErrTransientRead, res.ReadErrors, r.lastReadErr)
	}
	if res.SpuriousWakes > 0 {
		log.Debugf("%s: ignored %d events (%v)", r.sc.Name, res.SpuriousWakes, ErrSpuriousWake)
	}

	res.Outliers = outlier.Count(res.Data, r.sc.OutlierThreshold)
	if r.sc.DumpSamples {
		dumpSamples(res.Data)
	}
	log.Printf("%s: total samples %d mag samples %d outliers %d", r.sc.Name, res.Samples, res.MagSamples, res.Outliers)

	res.WakeLatency = summarize(r.sc.Name, "thread wakeup delay(us)", r.timing.WakeLatency)
	res.IOLatency = summarize(r.sc.Name, "io time(us)", r.timing.IOLatency)
	res.Interval = summarize(r.sc.Name, "sample interval time(us)", r.timing.Interval)
}

func (s *Scheduler) analyze(r *run, res *RunResult) {
	s.collect(r, res)

	switch r.state {
	case StateSkipped:
		finish(res, StateSkipped, r.err)
		return
	case StateFailed:
		finish(res, StateFailed, r.err)
		return
	}

	res.Channels = achievedRates(r, res)
	for _, c := range res.Channels {
		log.Printf("%s: avg %s sample freq %.1f Hz (target %.0f Hz)", r.sc.Name, c.Name, c.AchievedHz, c.TargetHz)
	}

	if r.sc.Mode == ModeInterrupt && res.Interrupts == 0 {
		finish(res, StateFailed, ErrNoInterrupt)
		return
	}

	switch rate.Validate(res.Channels...) {
	case rate.Pass:
		finish(res, StatePassed, nil)
	case rate.Fail:
		finish(res, StateFailed, fmt.Errorf("%w (±%.0f%%)", ErrRateTolerance, r.sc.Tolerance*100))
	default:
		finish(res, StateSkipped, errors.New("no channel to validate"))
	}
}

// achievedRates derives per-channel frequencies from the mean wake interval.
// In FIFO mode one interval covers a whole burst.
func achievedRates(r *run, res *RunResult) []rate.ChannelResult {
	if res.Interval == nil {
		return []rate.ChannelResult{rate.Check("gyro", float64(r.sc.Config.GyroRate.Hz()), 0, r.sc.Tolerance)}
	}
	intervals := res.Interval.Count
	avg := res.Interval.Avg

	gyroHz := stats.AchievedFrequency(uint64(res.Samples), intervals, avg)
	channels := []rate.ChannelResult{
		rate.Check("gyro", float64(r.sc.Config.GyroRate.Hz()), gyroHz, r.sc.Tolerance),
	}
	if r.sc.Mode != ModeFIFO && r.sc.Config.CompassEnabled {
		magHz := stats.AchievedFrequency(res.MagSamples, intervals, avg)
		channels = append(channels, rate.Check("mag", float64(r.sc.Config.CompassRate.Hz()), magHz, r.sc.Tolerance))
	}
	return channels
}

func (s *Scheduler) runInit(sc Scenario, res *RunResult) {
	res.InitRuns = 1
	if err := s.initOnce(sc.Config); err != nil {
		res.InitFailures = 1
		finish(res, StateFailed, err)
		return
	}
	finish(res, StatePassed, nil)
}

func (s *Scheduler) runInitMulti(sc Scenario, res *RunResult) {
	var lastErr error
	for i := 0; i < sc.InitRuns; i++ {
		if i > 0 && sc.InitPause > 0 {
			time.Sleep(sc.InitPause)
		}
		err := s.initOnce(sc.Config)
		res.InitRuns++
		if err != nil {
			res.InitFailures++
			lastErr = err
		}
		log.Debugf("%s: run[%d]: %v", sc.Name, i, err == nil)
	}
	log.Printf("%s: total runs %d succ %d fail %d", sc.Name, res.InitRuns, res.InitRuns-res.InitFailures, res.InitFailures)

	if res.InitFailures > 0 {
		finish(res, StateFailed, fmt.Errorf("%d of %d initializations failed, last: %w", res.InitFailures, res.InitRuns, lastErr))
		return
	}
	finish(res, StatePassed, nil)
}

func (s *Scheduler) initOnce(cfg imu.Config) error {
	err := s.Device.Initialize(cfg)
	_ = s.Device.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInit, err)
	}
	return nil
}

func finish(res *RunResult, st State, err error) {
	res.State = st
	switch st {
	case StatePassed:
		res.Verdict = rate.Pass
	case StateSkipped:
		res.Verdict = rate.Skip
	default:
		res.Verdict = rate.Fail
	}
	if err != nil {
		res.Message = err.Error()
		if st == StateFailed {
			log.Warnf("%s: %v", res.Scenario, err)
		}
	}
}

func summarize(name, label string, series []uint64) *stats.Summary {
	sum, err := stats.Calculate(series)
	if err != nil {
		return nil
	}
	log.Printf("%s: %s: avg %.0f stdev %.0f min %d max %d", name, label, sum.Avg, sum.Stdev, sum.Min, sum.Max)
	return &sum
}

func dumpSamples(samples []imu.Sample) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	for i := range samples {
		c := samples[i].Channels()
		log.Debugf("[%d] ts %d temp %.3f accel %.3f %.3f %.3f gyro %.3f %.3f %.3f",
			i, samples[i].Timestamp, c[imu.ChanTemp],
			c[imu.ChanAccelX], c[imu.ChanAccelY], c[imu.ChanAccelZ],
			c[imu.ChanGyroX], c[imu.ChanGyroY], c[imu.ChanGyroZ])
	}
}
