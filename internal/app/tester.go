// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/config"
	"github.com/relabs-tech/imu_tester/internal/rate"
	"github.com/relabs-tech/imu_tester/internal/realtime"
	"github.com/relabs-tech/imu_tester/internal/report"
	"github.com/relabs-tech/imu_tester/internal/scenario"
	"github.com/relabs-tech/imu_tester/internal/sensors"
	"github.com/relabs-tech/imu_tester/internal/sim"
)

// Defaults maps the test parameters of cfg onto scenario defaults.
func Defaults(cfg *config.Config) scenario.Defaults {
	return scenario.Defaults{
		Quota:            cfg.SampleQuota,
		Tolerance:        cfg.RateTolerance,
		OutlierThreshold: cfg.OutlierThreshold,
		InterruptLine:    cfg.InterruptLine,
		InitRuns:         cfg.InitMultiRuns,
		BusPath:          cfg.SPIDevice,
		DumpSamples:      cfg.DumpSamples,
	}
}

// Scenarios returns the configured suite, narrowed to names when given.
func Scenarios(cfg *config.Config, names []string) ([]acquire.Scenario, error) {
	d := Defaults(cfg)
	all := scenario.Builtin(d)
	if cfg.ScenarioFile != "" {
		var err error
		if all, err = scenario.Load(cfg.ScenarioFile, d); err != nil {
			return nil, err
		}
		log.Infof("tester: loaded %d scenarios from %s", len(all), cfg.ScenarioFile)
	}
	return scenario.Select(all, names)
}

// NewScheduler builds the scheduler for cfg: a simulated world, or the SPI
// sensor driven by wall-clock timers.
func NewScheduler(cfg *config.Config) *acquire.Scheduler {
	if cfg.Simulate {
		log.Info("tester: using simulated IMU")
		return sim.NewWorld(sim.Options{}).Scheduler()
	}

	clock := realtime.NewClock()
	dev := sensors.NewMPU9250(sensors.Options{
		Name:      "imu",
		SPIDevice: cfg.SPIDevice,
		SPISpeed:  physic.Frequency(cfg.SPISpeedHz) * physic.Hertz,
		CSPin:     cfg.CSPin,
		DRDYPin:   cfg.DRDYPin,
		Clock:     clock,
	})
	log.Infof("tester: using MPU9250 on %s @ %d Hz", cfg.SPIDevice, cfg.SPISpeedHz)
	return &acquire.Scheduler{
		Device:     dev,
		Clock:      clock,
		NewSignals: func() acquire.Signals { return realtime.NewSignals(clock) },
	}
}

// Tester runs scenarios one after another and reports each result.
type Tester struct {
	Scheduler *acquire.Scheduler
	Publisher *report.Publisher // nil disables publishing
	Out       io.Writer
}

// Run executes the suite and returns every result with the combined verdict.
// Publishing problems are logged and do not affect the verdict.
func (t *Tester) Run(list []acquire.Scenario) ([]acquire.RunResult, rate.Verdict) {
	results := make([]acquire.RunResult, 0, len(list))
	for _, sc := range list {
		res := t.Scheduler.Run(sc)
		if t.Out != nil {
			report.PrintResult(t.Out, res)
		}
		if t.Publisher != nil {
			if err := t.Publisher.Publish(res); err != nil {
				log.Warnf("tester: %v", err)
			}
		}
		results = append(results, res)
	}
	var overall rate.Verdict
	if t.Out != nil {
		fmt.Fprintln(t.Out)
		overall = report.PrintSuite(t.Out, results)
	} else {
		verdicts := make([]rate.Verdict, len(results))
		for i, r := range results {
			verdicts[i] = r.Verdict
		}
		overall = rate.Combine(verdicts...)
	}
	return results, overall
}

// RunTester runs the configured suite against the configured backend. The
// returned verdict is FAIL if any scenario failed.
func RunTester(cfg *config.Config, names []string, out io.Writer) (rate.Verdict, error) {
	list, err := Scenarios(cfg, names)
	if err != nil {
		return rate.Fail, err
	}

	t := &Tester{Scheduler: NewScheduler(cfg), Out: out}

	if cfg.MQTTBroker != "" {
		client, err := report.Connect(cfg.MQTTBroker, cfg.MQTTClientIDTester)
		if err != nil {
			log.Warnf("tester: results will not be published: %v", err)
		} else {
			t.Publisher = report.NewPublisher(client, cfg.TopicResults)
			defer t.Publisher.Close()
			log.Infof("tester: publishing results to %s", report.Wildcard(cfg.TopicResults))
		}
	}

	_, overall := t.Run(list)
	log.Infof("tester: suite finished: %s", overall)
	return overall, nil
}
