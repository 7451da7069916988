// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// GyroRate selects the gyro/accel output data rate.
type GyroRate byte

const (
	GyroRate100Hz GyroRate = iota
	GyroRate200Hz
	GyroRate500Hz
	GyroRate1000Hz
	GyroRate8000Hz
)

var gyroRateHz = []int{100, 200, 500, 1000, 8000}

// Hz returns the sample rate in Hz, or 0 for an unknown selector.
func (r GyroRate) Hz() int {
	if int(r) < len(gyroRateHz) {
		return gyroRateHz[r]
	}
	return 0
}

// GyroRateFromHz maps a frequency to its selector.
func GyroRateFromHz(hz int) (GyroRate, error) {
	for i, v := range gyroRateHz {
		if v == hz {
			return GyroRate(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported gyro sample rate %d Hz (want one of %v)", hz, gyroRateHz)
}

// CompassRate selects the magnetometer sample rate.
type CompassRate byte

const (
	CompassRate10Hz CompassRate = iota
	CompassRate25Hz
	CompassRate50Hz
	CompassRate100Hz
)

var compassRateHz = []int{10, 25, 50, 100}

func (r CompassRate) Hz() int {
	if int(r) < len(compassRateHz) {
		return compassRateHz[r]
	}
	return 0
}

func CompassRateFromHz(hz int) (CompassRate, error) {
	for i, v := range compassRateHz {
		if v == hz {
			return CompassRate(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported compass sample rate %d Hz (want one of %v)", hz, compassRateHz)
}

// LPF is a digital low pass filter bandwidth, stored as its DLPF_CFG code
// (0=250Hz, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz).
type LPF byte

const (
	LPF250Hz LPF = iota
	LPF184Hz
	LPF92Hz
	LPF41Hz
	LPF20Hz
	LPF10Hz
	LPF5Hz
)

var lpfHz = []int{250, 184, 92, 41, 20, 10, 5}

func (l LPF) Hz() int {
	if int(l) < len(lpfHz) {
		return lpfHz[l]
	}
	return 0
}

func LPFFromHz(hz int) (LPF, error) {
	for i, v := range lpfHz {
		if v == hz {
			return LPF(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported LPF bandwidth %d Hz (want one of %v)", hz, lpfHz)
}

// GyroFSR is the gyro full scale range code: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s.
type GyroFSR byte

const (
	GyroFSR250DPS GyroFSR = iota
	GyroFSR500DPS
	GyroFSR1000DPS
	GyroFSR2000DPS
)

// DPS returns the range in degrees per second.
func (f GyroFSR) DPS() int { return []int{250, 500, 1000, 2000}[f&3] }

// Scaling returns degrees per second per LSB.
func (f GyroFSR) Scaling() float32 { return float32(f.DPS()) / 32768 }

// GyroFSRFromDPS maps a range in degrees per second to its code.
func GyroFSRFromDPS(dps int) (GyroFSR, error) {
	for f := GyroFSR250DPS; f <= GyroFSR2000DPS; f++ {
		if f.DPS() == dps {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unsupported gyro range ±%d°/s", dps)
}

// AccelFSR is the accelerometer full scale range code: 0=±2g, 1=±4g, 2=±8g, 3=±16g.
type AccelFSR byte

const (
	AccelFSR2G AccelFSR = iota
	AccelFSR4G
	AccelFSR8G
	AccelFSR16G
)

func (f AccelFSR) G() int { return []int{2, 4, 8, 16}[f&3] }

// Scaling returns g per LSB.
func (f AccelFSR) Scaling() float32 { return float32(f.G()) / 32768 }

func AccelFSRFromG(g int) (AccelFSR, error) {
	for f := AccelFSR2G; f <= AccelFSR16G; f++ {
		if f.G() == g {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unsupported accel range ±%dg", g)
}

// FIFO channel enable bits (FIFO_EN register layout).
const (
	FIFOTemp  byte = 0x80
	FIFOGyro  byte = 0x70 // x, y and z
	FIFOAccel byte = 0x08
)

// Config describes how the device is set up for one run. It is built once per
// scenario and passed by value, so a run cannot change it.
type Config struct {
	GyroRate       GyroRate
	CompassRate    CompassRate
	GyroLPF        LPF
	AccelLPF       LPF
	GyroFSR        GyroFSR
	AccelFSR       AccelFSR
	CompassEnabled bool
	FIFOEnabled    bool
	FIFOMask       byte
	BusPath        string
}

// FIFOSampleBytes returns the size of one FIFO record for the configured mask.
func (c Config) FIFOSampleBytes() int {
	n := 0
	if c.FIFOMask&FIFOTemp != 0 {
		n += 2
	}
	if c.FIFOMask&FIFOGyro != 0 {
		n += 6
	}
	if c.FIFOMask&FIFOAccel != 0 {
		n += 6
	}
	return n
}
