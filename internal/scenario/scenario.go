// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scenario holds the built-in test suite and loads custom scenario
// lists from YAML.
package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/imu"
)

// Defaults are the suite-wide settings applied to every scenario that does
// not set its own.
type Defaults struct {
	Quota            int
	Tolerance        float64
	OutlierThreshold float64
	InterruptLine    int
	InitRuns         int
	BusPath          string
	DumpSamples      bool
}

// baseConfig is the sensor setup shared by the built-in scenarios.
func baseConfig(d Defaults) imu.Config {
	return imu.Config{
		GyroRate:       imu.GyroRate1000Hz,
		CompassRate:    imu.CompassRate100Hz,
		GyroLPF:        imu.LPF20Hz,
		AccelLPF:       imu.LPF20Hz,
		GyroFSR:        imu.GyroFSR500DPS,
		AccelFSR:       imu.AccelFSR4G,
		CompassEnabled: true,
		BusPath:        d.BusPath,
	}
}

func (d Defaults) apply(sc acquire.Scenario) acquire.Scenario {
	if sc.Quota == 0 {
		sc.Quota = d.Quota
	}
	if sc.Tolerance == 0 {
		sc.Tolerance = d.Tolerance
	}
	if sc.OutlierThreshold == 0 {
		sc.OutlierThreshold = d.OutlierThreshold
	}
	if sc.InterruptLine == 0 {
		sc.InterruptLine = d.InterruptLine
	}
	if sc.InitRuns == 0 {
		sc.InitRuns = d.InitRuns
	}
	if sc.Config.BusPath == "" {
		sc.Config.BusPath = d.BusPath
	}
	sc.DumpSamples = sc.DumpSamples || d.DumpSamples
	return sc
}

// Builtin returns the standard suite: single and repeated initialization,
// 1 kHz interrupt-driven and timer-polled acquisition, and 8 kHz FIFO
// batches.
func Builtin(d Defaults) []acquire.Scenario {
	initCfg := baseConfig(d)
	initCfg.GyroRate = imu.GyroRate200Hz

	fifoCfg := baseConfig(d)
	fifoCfg.GyroRate = imu.GyroRate8000Hz
	fifoCfg.GyroLPF = imu.LPF250Hz
	fifoCfg.CompassEnabled = false
	fifoCfg.FIFOEnabled = true
	fifoCfg.FIFOMask = imu.FIFOTemp | imu.FIFOGyro | imu.FIFOAccel

	list := []acquire.Scenario{
		{Name: "init", Mode: acquire.ModeInit, Config: initCfg},
		{Name: "init_multi", Mode: acquire.ModeInitMulti, Config: initCfg, InitPause: acquire.DefaultInitPause},
		{Name: "dri_1khz", Mode: acquire.ModeInterrupt, Config: baseConfig(d)},
		{Name: "poll_1khz", Mode: acquire.ModePoll, Config: baseConfig(d)},
		{Name: "fifo_8khz", Mode: acquire.ModeFIFO, Config: fifoCfg, FIFOBatch: acquire.DefaultFIFOBatch},
	}
	for i := range list {
		list[i] = d.apply(list[i])
	}
	return list
}

// Select keeps the scenarios named in names, in the order given. An empty
// names list selects everything.
func Select(all []acquire.Scenario, names []string) ([]acquire.Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]acquire.Scenario, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
	}
	out := make([]acquire.Scenario, 0, len(names))
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (have %s)", n, strings.Join(Names(all), ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}

func Names(all []acquire.Scenario) []string {
	names := make([]string, len(all))
	for i, sc := range all {
		names[i] = sc.Name
	}
	return names
}

// File is the YAML layout of a scenario list.
type File struct {
	Scenarios []Entry `yaml:"scenarios"`
}

// Entry is one scenario as written in YAML. Rates and ranges are given in
// physical units.
type Entry struct {
	Name          string        `yaml:"name"`
	Mode          string        `yaml:"mode"`
	GyroRateHz    int           `yaml:"gyro_rate_hz"`
	CompassRateHz int           `yaml:"compass_rate_hz"`
	Compass       *bool         `yaml:"compass"`
	GyroLPFHz     int           `yaml:"gyro_lpf_hz"`
	AccelLPFHz    int           `yaml:"accel_lpf_hz"`
	GyroFSRDPS    int           `yaml:"gyro_fsr_dps"`
	AccelFSRG     int           `yaml:"accel_fsr_g"`
	FIFO          []string      `yaml:"fifo"`
	FIFOBatch     int           `yaml:"fifo_batch"`
	Quota         int           `yaml:"quota"`
	Tolerance     float64       `yaml:"tolerance"`
	Threshold     float64       `yaml:"outlier_threshold"`
	InterruptLine int           `yaml:"interrupt_line"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	InitRuns      int           `yaml:"init_runs"`
	InitPause     time.Duration `yaml:"init_pause"`
	DumpSamples   bool          `yaml:"dump_samples"`
}

var fifoBits = map[string]byte{
	"temp":  imu.FIFOTemp,
	"gyro":  imu.FIFOGyro,
	"accel": imu.FIFOAccel,
}

// Scenario converts the entry, filling unset sensor settings from the
// built-in configuration.
func (s Entry) Scenario(d Defaults) (acquire.Scenario, error) {
	if s.Name == "" {
		return acquire.Scenario{}, fmt.Errorf("scenario without name")
	}
	mode, err := acquire.ParseMode(s.Mode)
	if err != nil {
		return acquire.Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	cfg := baseConfig(d)

	if s.GyroRateHz != 0 {
		if cfg.GyroRate, err = imu.GyroRateFromHz(s.GyroRateHz); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	if s.CompassRateHz != 0 {
		if cfg.CompassRate, err = imu.CompassRateFromHz(s.CompassRateHz); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	if s.Compass != nil {
		cfg.CompassEnabled = *s.Compass
	}
	if s.GyroLPFHz != 0 {
		if cfg.GyroLPF, err = imu.LPFFromHz(s.GyroLPFHz); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: gyro: %w", s.Name, err)
		}
	}
	if s.AccelLPFHz != 0 {
		if cfg.AccelLPF, err = imu.LPFFromHz(s.AccelLPFHz); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: accel: %w", s.Name, err)
		}
	}
	if s.GyroFSRDPS != 0 {
		if cfg.GyroFSR, err = imu.GyroFSRFromDPS(s.GyroFSRDPS); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	if s.AccelFSRG != 0 {
		if cfg.AccelFSR, err = imu.AccelFSRFromG(s.AccelFSRG); err != nil {
			return acquire.Scenario{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	if mode == acquire.ModeFIFO {
		cfg.FIFOEnabled = true
		cfg.CompassEnabled = false
		if len(s.FIFO) == 0 {
			s.FIFO = []string{"temp", "gyro", "accel"}
		}
		for _, ch := range s.FIFO {
			bit, ok := fifoBits[strings.ToLower(ch)]
			if !ok {
				return acquire.Scenario{}, fmt.Errorf("scenario %s: unknown FIFO channel %q", s.Name, ch)
			}
			cfg.FIFOMask |= bit
		}
		if cfg.GyroRate == imu.GyroRate8000Hz {
			cfg.GyroLPF = imu.LPF250Hz
		}
	}

	sc := acquire.Scenario{
		Name:             s.Name,
		Mode:             mode,
		Config:           cfg,
		Quota:            s.Quota,
		InterruptLine:    s.InterruptLine,
		FIFOBatch:        s.FIFOBatch,
		Tolerance:        s.Tolerance,
		OutlierThreshold: s.Threshold,
		WaitTimeout:      s.WaitTimeout,
		InitRuns:         s.InitRuns,
		InitPause:        s.InitPause,
		DumpSamples:      s.DumpSamples,
	}
	if mode == acquire.ModeInitMulti && sc.InitPause == 0 {
		sc.InitPause = acquire.DefaultInitPause
	}
	return d.apply(sc), nil
}

// Parse decodes a YAML scenario list.
func Parse(data []byte, d Defaults) ([]acquire.Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("parse scenarios: no scenarios defined")
	}
	seen := make(map[string]bool, len(f.Scenarios))
	out := make([]acquire.Scenario, 0, len(f.Scenarios))
	for _, e := range f.Scenarios {
		sc, err := e.Scenario(d)
		if err != nil {
			return nil, err
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("duplicate scenario %q", sc.Name)
		}
		seen[sc.Name] = true
		out = append(out, sc)
	}
	return out, nil
}

// Load reads and parses a scenario file.
func Load(path string, d Defaults) ([]acquire.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return Parse(data, d)
}
