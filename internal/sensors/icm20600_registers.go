// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// ICM-20600 register addresses used by the driver.
const (
	regSmplrtDiv    = 0x19
	regConfig       = 0x1A
	regGyroConfig   = 0x1B
	regAccelConfig  = 0x1C
	regAccelConfig2 = 0x1D
	regIntPinCfg    = 0x37
	regIntEnable    = 0x38
	regIntStatus    = 0x3A
	regAccelXoutH   = 0x3B
	regTempOutH     = 0x41
	regGyroXoutH    = 0x43
	regPwrMgmt1     = 0x6B
	regPwrMgmt2     = 0x6C
	regWhoAmI       = 0x75

	// PWR_MGMT_1: SLEEP cleared, CLKSEL=1 (best available clock, PLL when ready).
	pwrWakeAutoClock = 0x01

	// WhoAmIICM20600 is the identity register value of an ICM-20600.
	WhoAmIICM20600 = 0x11
)

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"` // "4:3"
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is metadata for one device register.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     byte       `json:"default"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Readable reports whether the register can be read back.
func (r RegisterInfo) Readable() bool {
	return r.Access == "R" || r.Access == "RW"
}

// RegisterMap returns metadata for the ICM-20600 registers the firmware
// touches or that are useful when probing a board.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Configuration
		{Address: regSmplrtDiv, Name: "SMPLRT_DIV", Description: "Sample Rate Divider", Access: "RW",
			BitFields: []BitField{
				{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Internal_Sample_Rate / (1 + SMPLRT_DIV)", Values: "0-255"},
			}},
		{Address: regConfig, Name: "CONFIG", Description: "Configuration (DLPF)", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Overwrite, 1=Block new data"},
				{Bits: "2:0", Name: "DLPF_CFG", Description: "Gyro/temperature low pass filter"},
			}},
		{Address: regGyroConfig, Name: "GYRO_CONFIG", Description: "Gyroscope Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
				{Bits: "1:0", Name: "FCHOICE_B", Description: "Gyro DLPF bypass", Values: "0=DLPF enabled"},
			}},
		{Address: regAccelConfig, Name: "ACCEL_CONFIG", Description: "Accelerometer Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "ACCEL_FS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: regAccelConfig2, Name: "ACCEL_CONFIG2", Description: "Accelerometer Configuration 2", Access: "RW",
			BitFields: []BitField{
				{Bits: "3", Name: "ACCEL_FCHOICE_B", Description: "Accel DLPF bypass", Values: "0=DLPF enabled, 1=Bypass"},
				{Bits: "2:0", Name: "A_DLPF_CFG", Description: "Accel DLPF Config"},
			}},

		// Interrupts
		{Address: regIntPinCfg, Name: "INT_PIN_CFG", Description: "INT Pin Configuration", Access: "RW"},
		{Address: regIntEnable, Name: "INT_ENABLE", Description: "Interrupt Enable", Access: "RW",
			BitFields: []BitField{
				{Bits: "0", Name: "DATA_RDY_INT_EN", Description: "Data ready interrupt", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: regIntStatus, Name: "INT_STATUS", Description: "Interrupt Status", Access: "R"},

		// Sensor data, high bytes (low bytes follow at +1)
		{Address: regAccelXoutH, Name: "ACCEL_XOUT_H", Description: "Accelerometer X-Axis High Byte", Access: "R"},
		{Address: regAccelXoutH + 2, Name: "ACCEL_YOUT_H", Description: "Accelerometer Y-Axis High Byte", Access: "R"},
		{Address: regAccelXoutH + 4, Name: "ACCEL_ZOUT_H", Description: "Accelerometer Z-Axis High Byte", Access: "R"},
		{Address: regTempOutH, Name: "TEMP_OUT_H", Description: "Temperature High Byte", Access: "R"},
		{Address: regGyroXoutH, Name: "GYRO_XOUT_H", Description: "Gyroscope X-Axis High Byte", Access: "R"},
		{Address: regGyroXoutH + 2, Name: "GYRO_YOUT_H", Description: "Gyroscope Y-Axis High Byte", Access: "R"},
		{Address: regGyroXoutH + 4, Name: "GYRO_ZOUT_H", Description: "Gyroscope Z-Axis High Byte", Access: "R"},

		// Power management
		{Address: regPwrMgmt1, Name: "PWR_MGMT_1", Description: "Power Management 1", Access: "RW", Default: 0x41,
			BitFields: []BitField{
				{Bits: "7", Name: "DEVICE_RESET", Description: "Reset registers to default", Values: "1=Reset"},
				{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Awake, 1=Sleep"},
				{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 20MHz, 1-5=Auto select PLL"},
			}},
		{Address: regPwrMgmt2, Name: "PWR_MGMT_2", Description: "Power Management 2", Access: "RW",
			BitFields: []BitField{
				{Bits: "5:3", Name: "STBY_XA/YA/ZA", Description: "Accelerometer axis standby"},
				{Bits: "2:0", Name: "STBY_XG/YG/ZG", Description: "Gyroscope axis standby"},
			}},
		{Address: regWhoAmI, Name: "WHO_AM_I", Description: "Device identification (should be 0x11)", Access: "R", Default: WhoAmIICM20600},
	}
}
