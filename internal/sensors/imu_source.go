// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/imu"
)

// Options selects the bus and pins of one MPU9250.
type Options struct {
	Name      string // for logging
	SPIDevice string // e.g. /dev/spidev0.0; overridden by imu.Config.BusPath
	SPISpeed  physic.Frequency
	CSPin     string // optional GPIO driven as chip select
	DRDYPin   string // GPIO wired to INT, used when the interrupt line is 0
	Clock     acquire.Clock
}

// MPU9250 is an acquire.Device talking to the sensor registers over SPI.
type MPU9250 struct {
	opts Options

	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinIO
	cfg  imu.Config

	period  uint64 // µs between samples
	fifoRec int    // bytes per FIFO record

	// preallocated transfer buffers, sized for the largest burst
	tx []byte
	rx []byte

	drdy     gpio.PinIO
	watching atomic.Bool
	watchWG  sync.WaitGroup
}

var hostOnce sync.Once
var hostErr error

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

func NewMPU9250(opts Options) *MPU9250 {
	if opts.Name == "" {
		opts.Name = "mpu9250"
	}
	if opts.SPISpeed == 0 {
		opts.SPISpeed = 1 * physic.MegaHertz
	}
	return &MPU9250{
		opts: opts,
		tx:   make([]byte, fifoSize+1),
		rx:   make([]byte, fifoSize+1),
	}
}

// Initialize opens the bus, resets the part and programs rates, ranges,
// filters and the data-ready interrupt.
func (d *MPU9250) Initialize(cfg imu.Config) error {
	if err := initHost(); err != nil {
		return fmt.Errorf("%s IMU: %w", d.opts.Name, err)
	}
	dev := cfg.BusPath
	if dev == "" {
		dev = d.opts.SPIDevice
	}

	port, err := spireg.Open(dev)
	if err != nil {
		return fmt.Errorf("%s IMU: open SPI %q: %w", d.opts.Name, dev, err)
	}
	conn, err := port.Connect(d.opts.SPISpeed, spi.Mode3, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("%s IMU: SPI connect (%s): %w", d.opts.Name, dev, err)
	}
	d.port, d.conn = port, conn

	if d.opts.CSPin != "" {
		d.cs = gpioreg.ByName(d.opts.CSPin)
		if d.cs == nil {
			return fmt.Errorf("%s IMU: CS pin %q not found", d.opts.Name, d.opts.CSPin)
		}
		if err := d.cs.Out(gpio.High); err != nil {
			return fmt.Errorf("%s IMU: CS pin %q: %w", d.opts.Name, d.opts.CSPin, err)
		}
	}

	if err := d.reset(); err != nil {
		return fmt.Errorf("%s IMU: reset: %w", d.opts.Name, err)
	}
	if err := d.configure(cfg); err != nil {
		return fmt.Errorf("%s IMU: configure: %w", d.opts.Name, err)
	}
	if cfg.CompassEnabled {
		if err := d.initCompass(cfg); err != nil {
			return fmt.Errorf("%s IMU: compass: %w", d.opts.Name, err)
		}
	}
	d.cfg = cfg
	return nil
}

func (d *MPU9250) reset() error {
	if err := d.write(regPwrMgmt1, pwrReset); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.write(regPwrMgmt1, pwrClockAuto); err != nil {
		return err
	}
	if err := d.write(regUserCtrl, userI2CIfDis); err != nil {
		return err
	}
	if err := d.write(regPwrMgmt2, 0x00); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	id, err := d.read(regWhoAmI)
	if err != nil {
		return err
	}
	part, ok := whoAmIValues[id]
	if !ok {
		return fmt.Errorf("unexpected WHO_AM_I 0x%02X", id)
	}
	log.Debugf("%s IMU: found %s (WHO_AM_I=0x%02X)", d.opts.Name, part, id)
	return nil
}

// sampleRate maps the configured rate onto DLPF_CFG and SMPLRT_DIV. The
// divider only applies with the filter enabled, so 8 kHz needs DLPF_CFG 0
// and every lower rate needs a filter of 184 Hz or below.
func sampleRate(cfg imu.Config) (dlpf, div byte) {
	hz := cfg.GyroRate.Hz()
	if hz >= internalRateRaw {
		return byte(imu.LPF250Hz), 0
	}
	dlpf = byte(cfg.GyroLPF)
	if cfg.GyroLPF == imu.LPF250Hz {
		dlpf = byte(imu.LPF184Hz)
	}
	return dlpf, byte(internalRateLPF/hz - 1)
}

func (d *MPU9250) configure(cfg imu.Config) error {
	hz := cfg.GyroRate.Hz()
	if hz == 0 {
		return fmt.Errorf("invalid gyro rate selector %d", cfg.GyroRate)
	}
	dlpf, div := sampleRate(cfg)

	steps := []struct{ reg, val byte }{
		{regConfig, dlpf},
		{regSMPLRTDiv, div},
		{regGyroConfig, byte(cfg.GyroFSR&3) << 3},
		{regAccelConfig, byte(cfg.AccelFSR&3) << 3},
		{regAccelConfig2, byte(cfg.AccelLPF)},
		{regIntPinCfg, intAnyReadClear},
		{regIntEnable, intRawReady},
	}
	for _, s := range steps {
		if err := d.write(s.reg, s.val); err != nil {
			return fmt.Errorf("register 0x%02X: %w", s.reg, err)
		}
	}

	d.period = uint64(1_000_000 / hz)
	d.fifoRec = cfg.FIFOSampleBytes()
	log.Debugf("%s IMU: %d Hz (DLPF_CFG=%d SMPLRT_DIV=%d) gyro ±%d°/s accel ±%dg",
		d.opts.Name, hz, dlpf, div, cfg.GyroFSR.DPS(), cfg.AccelFSR.G())
	return nil
}

// initCompass starts the AK8963 in continuous mode and lets the I2C master
// copy its output into EXT_SENS_DATA at the compass rate.
func (d *MPU9250) initCompass(cfg imu.Config) error {
	if err := d.write(regUserCtrl, userI2CIfDis|userI2CMstEn); err != nil {
		return err
	}
	if err := d.write(regI2CMstCtrl, i2cMst400kHz); err != nil {
		return err
	}
	if err := d.akWrite(ak8963CNTL2, ak8963Reset); err != nil {
		return err
	}
	if err := d.akWrite(ak8963CNTL1, ak8963Cont16); err != nil {
		return err
	}

	dly := 0
	if c := cfg.CompassRate.Hz(); c > 0 {
		dly = cfg.GyroRate.Hz()/c - 1
	}
	if dly > 31 {
		dly = 31
	}
	if dly < 0 {
		dly = 0
	}
	steps := []struct{ reg, val byte }{
		{regI2CSlv4Ctrl, byte(dly)},
		{regI2CMstDelay, 0x01},
		{regI2CSlv0Addr, spiReadFlag | ak8963Addr},
		{regI2CSlv0Reg, ak8963ST1},
		{regI2CSlv0Ctrl, slvEnable | ak8963Bytes},
	}
	for _, s := range steps {
		if err := d.write(s.reg, s.val); err != nil {
			return err
		}
	}
	return nil
}

// akWrite writes one AK8963 register through slave 4.
func (d *MPU9250) akWrite(reg, val byte) error {
	steps := []struct{ reg, val byte }{
		{regI2CSlv4Addr, ak8963Addr},
		{regI2CSlv4Reg, reg},
		{regI2CSlv4DO, val},
		{regI2CSlv4Ctrl, slvEnable},
	}
	for _, s := range steps {
		if err := d.write(s.reg, s.val); err != nil {
			return err
		}
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

func (d *MPU9250) Close() error {
	d.stopWatch()
	var errs []error
	if d.conn != nil {
		errs = append(errs, d.write(regIntEnable, 0))
		errs = append(errs, d.write(regUserCtrl, userI2CIfDis))
	}
	if d.port != nil {
		errs = append(errs, d.port.Close())
	}
	d.port, d.conn = nil, nil
	return errors.Join(errs...)
}

// RegisterInterrupt watches the data-ready pin for rising edges and calls cb
// for each one from a dedicated goroutine.
func (d *MPU9250) RegisterInterrupt(line int, cb acquire.InterruptFunc) error {
	name := d.opts.DRDYPin
	if line > 0 {
		name = fmt.Sprintf("GPIO%d", line)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return fmt.Errorf("%s IMU: DRDY pin %q not found", d.opts.Name, name)
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return fmt.Errorf("%s IMU: DRDY pin %q edge detection: %w", d.opts.Name, name, err)
	}
	d.drdy = pin
	d.watching.Store(true)
	d.watchWG.Add(1)
	go func() {
		defer d.watchWG.Done()
		for d.watching.Load() {
			if pin.WaitForEdge(100*time.Millisecond) && d.watching.Load() {
				cb()
			}
		}
	}()
	log.Debugf("%s IMU: watching %s for data ready", d.opts.Name, name)
	return nil
}

func (d *MPU9250) stopWatch() {
	if d.drdy == nil {
		return
	}
	d.watching.Store(false)
	_ = d.drdy.Halt()
	d.watchWG.Wait()
	_ = d.drdy.In(gpio.PullDown, gpio.NoEdge)
	d.drdy = nil
}

// GetData reads accel, temperature, gyro and, with the compass enabled, the
// AK8963 block in one burst.
func (d *MPU9250) GetData() (imu.Sample, error) {
	n := 14
	if d.cfg.CompassEnabled {
		n += ak8963Bytes
	}
	buf, err := d.burst(regAccelXOutH, n)
	if err != nil {
		return imu.Sample{}, err
	}
	s := d.decode(buf)
	s.Timestamp = d.now()
	if d.cfg.CompassEnabled {
		mag := buf[14:]
		s.MagDataReady = mag[0]&ak8963ST1Rdy != 0
		s.MagRaw = [3]int16{le16(mag[1:]), le16(mag[3:]), le16(mag[5:])}
		s.MagScaling = ak8963LSBuT
	}
	return s, nil
}

func (d *MPU9250) FIFOCapacity() int {
	if d.fifoRec == 0 {
		return 0
	}
	return fifoSize / d.fifoRec
}

func (d *MPU9250) StartFIFO() error {
	user := byte(userI2CIfDis)
	if d.cfg.CompassEnabled {
		user |= userI2CMstEn
	}
	steps := []struct{ reg, val byte }{
		{regFIFOEn, 0},
		{regUserCtrl, user | userFIFORst},
		{regFIFOEn, d.cfg.FIFOMask},
		{regUserCtrl, user | userFIFOEn},
	}
	for _, s := range steps {
		if err := d.write(s.reg, s.val); err != nil {
			return fmt.Errorf("%s IMU: FIFO start: %w", d.opts.Name, err)
		}
	}
	return nil
}

func (d *MPU9250) StopFIFO() error {
	if err := d.write(regFIFOEn, 0); err != nil {
		return err
	}
	user := byte(userI2CIfDis)
	if d.cfg.CompassEnabled {
		user |= userI2CMstEn
	}
	return d.write(regUserCtrl, user|userFIFORst)
}

var errFIFOOverflow = errors.New("FIFO overflow")

// ReadFIFO drains whole records into dst. Samples are timestamped backwards
// from the read time at the configured sample period.
func (d *MPU9250) ReadFIFO(dst []imu.Sample) (int, error) {
	cnt, err := d.burst(regFIFOCountH, 2)
	if err != nil {
		return 0, err
	}
	count := int(cnt[0]&0x1F)<<8 | int(cnt[1])
	if count >= fifoSize {
		return 0, errFIFOOverflow
	}
	n := count / d.fifoRec
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0, nil
	}

	buf, err := d.burst(regFIFORW, n*d.fifoRec)
	if err != nil {
		return 0, err
	}
	now := d.now()
	for i := 0; i < n; i++ {
		rec := buf[i*d.fifoRec : (i+1)*d.fifoRec]
		dst[i] = d.decodeFIFO(rec)
		back := uint64(n-1-i) * d.period
		if back < now {
			dst[i].Timestamp = now - back
		}
	}
	return n, nil
}

func (d *MPU9250) now() uint64 {
	if d.opts.Clock == nil {
		return 0
	}
	return d.opts.Clock.NowMicros()
}

// decode parses the contiguous ACCEL_XOUT_H..GYRO_ZOUT_L block.
func (d *MPU9250) decode(b []byte) imu.Sample {
	s := imu.Sample{
		AccelScaling: d.cfg.AccelFSR.Scaling(),
		GyroScaling:  d.cfg.GyroFSR.Scaling(),
	}
	s.AccelRaw = [3]int16{be16(b[0:]), be16(b[2:]), be16(b[4:])}
	s.Temperature = temperature(be16(b[6:]))
	s.GyroRaw = [3]int16{be16(b[8:]), be16(b[10:]), be16(b[12:])}
	return s
}

// decodeFIFO parses one FIFO record. Enabled channels appear in register
// order: accel, temperature, gyro.
func (d *MPU9250) decodeFIFO(b []byte) imu.Sample {
	s := imu.Sample{
		AccelScaling: d.cfg.AccelFSR.Scaling(),
		GyroScaling:  d.cfg.GyroFSR.Scaling(),
	}
	mask := d.cfg.FIFOMask
	if mask&imu.FIFOAccel != 0 {
		s.AccelRaw = [3]int16{be16(b[0:]), be16(b[2:]), be16(b[4:])}
		b = b[6:]
	}
	if mask&imu.FIFOTemp != 0 {
		s.Temperature = temperature(be16(b))
		b = b[2:]
	}
	if mask&imu.FIFOGyro != 0 {
		s.GyroRaw = [3]int16{be16(b[0:]), be16(b[2:]), be16(b[4:])}
	}
	return s
}

func temperature(raw int16) float32 {
	return float32(raw)/333.87 + 21
}

func be16(b []byte) int16 { return int16(uint16(b[0])<<8 | uint16(b[1])) }
func le16(b []byte) int16 { return int16(uint16(b[1])<<8 | uint16(b[0])) }

func (d *MPU9250) write(reg, val byte) error {
	d.tx[0], d.tx[1] = reg&^spiReadFlag, val
	return d.tx2(d.tx[:2], d.rx[:2])
}

func (d *MPU9250) read(reg byte) (byte, error) {
	b, err := d.burst(reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// burst reads n consecutive registers starting at reg. The returned slice
// aliases the receive buffer and is valid until the next transfer.
func (d *MPU9250) burst(reg byte, n int) ([]byte, error) {
	if n+1 > len(d.tx) {
		return nil, fmt.Errorf("burst of %d bytes exceeds transfer buffer", n)
	}
	d.tx[0] = reg | spiReadFlag
	clear(d.tx[1 : n+1])
	if err := d.tx2(d.tx[:n+1], d.rx[:n+1]); err != nil {
		return nil, err
	}
	return d.rx[1 : n+1], nil
}

func (d *MPU9250) tx2(w, r []byte) error {
	if d.conn == nil {
		return fmt.Errorf("%s IMU: not initialized", d.opts.Name)
	}
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return err
		}
		defer d.cs.Out(gpio.High)
	}
	return d.conn.Tx(w, r)
}
