// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/imu"
)

var (
	errClosed    = errors.New("sim IMU: device not initialized")
	errBus       = errors.New("sim IMU: bus transfer failed")
	errFIFOBurst = errors.New("sim IMU: FIFO burst read failed")
)

// Device is a virtual MPU9250. It produces a smooth synthetic motion signal
// sampled at the configured gyro rate.
type Device struct {
	w   *World
	cfg imu.Config

	open     bool
	irq      acquire.InterruptFunc
	nextIRQ  uint64
	reads    int
	produced uint64

	fifoOn   bool
	fifoBase uint64
	fifoRead uint64

	// Counters for tests.
	Inits, Closes, FIFOStops int
}

func (d *Device) Initialize(cfg imu.Config) error {
	d.Inits++
	o := d.w.opts
	if o.InitErr != nil {
		return o.InitErr
	}
	if o.InitFailEvery > 0 && d.Inits%o.InitFailEvery == 0 {
		return fmt.Errorf("sim IMU: WHO_AM_I mismatch on init %d", d.Inits)
	}
	if cfg.GyroRate.Hz() == 0 {
		return fmt.Errorf("sim IMU: invalid gyro rate selector %d", cfg.GyroRate)
	}
	d.cfg = cfg
	d.open = true
	d.reads = 0
	d.produced = 0
	return nil
}

func (d *Device) Close() error {
	d.Closes++
	d.open = false
	d.irq = nil
	d.fifoOn = false
	return nil
}

func (d *Device) period() uint64 {
	return uint64(1_000_000 / d.cfg.GyroRate.Hz())
}

func (d *Device) RegisterInterrupt(line int, cb acquire.InterruptFunc) error {
	if !d.open {
		return errClosed
	}
	if err := d.w.opts.RegisterErr; err != nil {
		return err
	}
	if line < 0 {
		return fmt.Errorf("sim IMU: invalid interrupt line %d", line)
	}
	d.irq = cb
	d.nextIRQ = d.w.now + d.period()
	return nil
}

// irqDue reports when the next data-ready edge fires, if any.
func (d *Device) irqDue() (uint64, bool) {
	if d.irq == nil || d.w.opts.NoInterrupts {
		return 0, false
	}
	return d.nextIRQ, true
}

// fireIRQ raises the data-ready edge. The callback runs inline, with the
// clock at the edge time.
func (d *Device) fireIRQ() {
	cb := d.irq
	d.nextIRQ += d.period()
	if cb != nil {
		cb()
	}
}

func (d *Device) GetData() (imu.Sample, error) {
	if !d.open {
		return imu.Sample{}, errClosed
	}
	d.reads++
	d.w.Advance(d.w.opts.IOCost)
	if n := d.w.opts.ReadFailEvery; n > 0 && d.reads%n == 0 {
		return imu.Sample{}, errBus
	}
	s := d.sample(d.produced, d.w.now, true)
	d.produced++
	return s, nil
}

func (d *Device) FIFOCapacity() int {
	per := d.cfg.FIFOSampleBytes()
	if d.w.opts.NoFIFO || per == 0 {
		return 0
	}
	return d.w.opts.FIFOBytes / per
}

func (d *Device) StartFIFO() error {
	if !d.open {
		return errClosed
	}
	if err := d.w.opts.StartFIFOErr; err != nil {
		return err
	}
	d.fifoOn = true
	d.fifoBase = d.w.now
	d.fifoRead = 0
	return nil
}

func (d *Device) StopFIFO() error {
	d.FIFOStops++
	d.fifoOn = false
	return nil
}

// ReadFIFO drains the samples produced since the FIFO was started, up to
// len(dst) and the FIFO capacity.
func (d *Device) ReadFIFO(dst []imu.Sample) (int, error) {
	if !d.fifoOn {
		return 0, errClosed
	}
	o := d.w.opts
	if o.FIFOFailAtSample > 0 && d.fifoRead >= uint64(o.FIFOFailAtSample) {
		return 0, errFIFOBurst
	}

	per := d.period()
	avail := (d.w.now-d.fifoBase)/per - d.fifoRead
	if c := uint64(d.FIFOCapacity()); avail > c {
		// overflowed samples are lost
		d.fifoRead += avail - c
		avail = c
	}
	n := int(avail)
	if n > len(dst) {
		n = len(dst)
	}
	if o.FIFOFailAtSample > 0 && d.fifoRead+uint64(n) > uint64(o.FIFOFailAtSample) {
		n = int(uint64(o.FIFOFailAtSample) - d.fifoRead)
	}

	for i := 0; i < n; i++ {
		idx := d.fifoRead + uint64(i)
		dst[i] = d.sample(idx, d.fifoBase+(idx+1)*per, false)
	}
	d.fifoRead += uint64(n)
	d.w.Advance(o.FIFOSampleCost * uint64(n))
	return n, nil
}

// sample synthesizes reading idx taken at ts µs.
func (d *Device) sample(idx, ts uint64, withMag bool) imu.Sample {
	t := float64(ts) / 1e6
	s := imu.Sample{
		Timestamp:    ts,
		Temperature:  float32(25 + 0.5*math.Sin(t*0.1)),
		AccelScaling: d.cfg.AccelFSR.Scaling(),
		GyroScaling:  d.cfg.GyroFSR.Scaling(),
		MagScaling:   0.15,
	}
	s.AccelRaw = [3]int16{
		int16(800 * math.Sin(t)),
		int16(600 * math.Cos(t*0.7)),
		int16(16384 / (d.cfg.AccelFSR.G() / 2)),
	}
	s.GyroRaw = [3]int16{
		int16(200 * math.Cos(t)),
		int16(150 * math.Sin(t*0.7)),
		int16(50 * math.Sin(t*0.3)),
	}
	if n := d.w.opts.CorruptEvery; n > 0 && idx%uint64(n) == uint64(n-1) {
		s.GyroRaw = [3]int16{math.MaxInt16, math.MinInt16, math.MaxInt16}
	}

	if withMag && d.cfg.CompassEnabled && d.cfg.CompassRate.Hz() > 0 {
		ratio := uint64(d.cfg.GyroRate.Hz() / d.cfg.CompassRate.Hz())
		if ratio == 0 || idx%ratio == 0 {
			s.MagDataReady = true
			s.MagRaw = [3]int16{
				int16(300 * math.Cos(t*0.2)),
				int16(300 * math.Sin(t*0.2)),
				-400,
			}
		}
	}
	return s
}
