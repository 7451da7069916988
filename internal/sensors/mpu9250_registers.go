// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// MPU9250 register map (subset used by the acquisition backend).
const (
	regSMPLRTDiv    = 0x19 // SMPLRT_DIV: rate = internal / (1 + div)
	regConfig       = 0x1A // CONFIG: FIFO_MODE[6], DLPF_CFG[2:0]
	regGyroConfig   = 0x1B // GYRO_CONFIG: GYRO_FS_SEL[4:3], Fchoice_b[1:0]
	regAccelConfig  = 0x1C // ACCEL_CONFIG: ACCEL_FS_SEL[4:3]
	regAccelConfig2 = 0x1D // ACCEL_CONFIG2: A_DLPFCFG[2:0]
	regFIFOEn       = 0x23 // FIFO_EN: TEMP[7] XG[6] YG[5] ZG[4] ACCEL[3]
	regI2CMstCtrl   = 0x24
	regI2CSlv0Addr  = 0x25
	regI2CSlv0Reg   = 0x26
	regI2CSlv0Ctrl  = 0x27
	regI2CSlv4Addr  = 0x31
	regI2CSlv4Reg   = 0x32
	regI2CSlv4DO    = 0x33
	regI2CSlv4Ctrl  = 0x34 // I2C_MST_DLY[4:0]: slaves sampled every 1+dly samples
	regIntPinCfg    = 0x37
	regIntEnable    = 0x38 // RAW_RDY_EN[0]
	regIntStatus    = 0x3A
	regAccelXOutH   = 0x3B // start of the 14 byte accel/temp/gyro block
	regExtSensData0 = 0x49 // slave 0 data follows the gyro block
	regI2CMstDelay  = 0x67
	regUserCtrl     = 0x6A // FIFO_EN[6] I2C_MST_EN[5] I2C_IF_DIS[4] FIFO_RST[2]
	regPwrMgmt1     = 0x6B
	regPwrMgmt2     = 0x6C
	regFIFOCountH   = 0x72 // 13 bit count, high byte first
	regFIFORW       = 0x74
	regWhoAmI       = 0x75
)

const (
	spiReadFlag = 0x80

	pwrReset     = 0x80
	pwrClockAuto = 0x01

	userFIFOEn   = 0x40
	userI2CMstEn = 0x20
	userI2CIfDis = 0x10
	userFIFORst  = 0x04

	intAnyReadClear = 0x10
	intRawReady     = 0x01

	i2cMst400kHz = 0x0D
	slvEnable    = 0x80

	fifoSize = 512

	// internal sample rates selected by DLPF_CFG
	internalRateLPF = 1000
	internalRateRaw = 8000
)

// WHO_AM_I values accepted as an MPU9250 family part.
var whoAmIValues = map[byte]string{0x71: "MPU9250", 0x73: "MPU9255"}

// AK8963 magnetometer behind the MPU9250 auxiliary I2C master.
const (
	ak8963Addr   = 0x0C
	ak8963WIA    = 0x00
	ak8963ST1    = 0x02 // DRDY[0]; reading through ST2 starts the next cycle
	ak8963CNTL1  = 0x0A
	ak8963CNTL2  = 0x0B
	ak8963ID     = 0x48
	ak8963Cont16 = 0x16 // 16 bit, continuous mode 2 (100 Hz)
	ak8963Reset  = 0x01
	ak8963Bytes  = 8 // ST1, HXL..HZH, ST2
	ak8963ST1Rdy = 0x01
	ak8963LSBuT  = 0.15
)
