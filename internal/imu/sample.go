// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Sample represents a single timestamped IMU reading as delivered by the driver.
// Raw values are kept together with their scaling so the physical value is
// raw * scaling.
type Sample struct {
	Timestamp uint64 `json:"ts_us"` // monotonic, microseconds

	Temperature float32 `json:"temp_c"`

	AccelRaw     [3]int16 `json:"accel_raw"`
	AccelScaling float32  `json:"accel_scaling"` // g per LSB

	GyroRaw     [3]int16 `json:"gyro_raw"`
	GyroScaling float32  `json:"gyro_scaling"` // dps per LSB

	MagRaw       [3]int16 `json:"mag_raw"`
	MagScaling   float32  `json:"mag_scaling"` // uT per LSB
	MagDataReady bool     `json:"mag_ready"`
}

// Channel indexes into the array returned by Channels.
const (
	ChanTemp = iota
	ChanAccelX
	ChanAccelY
	ChanAccelZ
	ChanGyroX
	ChanGyroY
	ChanGyroZ
	NumChannels
)

// ChannelNames matches the order of Channels.
var ChannelNames = [NumChannels]string{"temp", "accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z"}

// Channels returns temperature, accel x/y/z and gyro x/y/z in physical units.
func (s *Sample) Channels() [NumChannels]float64 {
	return [NumChannels]float64{
		float64(s.Temperature),
		float64(s.AccelRaw[0]) * float64(s.AccelScaling),
		float64(s.AccelRaw[1]) * float64(s.AccelScaling),
		float64(s.AccelRaw[2]) * float64(s.AccelScaling),
		float64(s.GyroRaw[0]) * float64(s.GyroScaling),
		float64(s.GyroRaw[1]) * float64(s.GyroScaling),
		float64(s.GyroRaw[2]) * float64(s.GyroScaling),
	}
}
