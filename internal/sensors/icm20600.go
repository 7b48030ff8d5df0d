// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/timeutil"
)

const (
	wakeSettle   = 50 * time.Millisecond
	configSettle = 10 * time.Millisecond
)

// ErrUnexpectedID is returned by Init when WHO_AM_I does not match Opts.ExpectedID.
var ErrUnexpectedID = errors.New("unexpected WHO_AM_I")

// Full-scale sensitivities indexed by the FS_SEL range code (0..3).
var (
	accelLSBPerG  = [4]float32{16384, 8192, 4096, 2048}
	gyroLSBPerDPS = [4]float32{131, 65.5, 32.8, 16.4}

	accelRangeG  = [4]int{2, 4, 8, 16}
	gyroRangeDPS = [4]int{250, 500, 1000, 2000}
)

// Opts configures an ICM20600.
type Opts struct {
	Addr uint16

	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte

	// ExpectedID is compared to WHO_AM_I during Init; 0 skips the check.
	ExpectedID byte

	// Clock provides the settle delays; nil means the real clock.
	Clock timeutil.Clock
}

// DefaultOpts matches the wearable board: AD0 high, ±2g, ±250°/s.
var DefaultOpts = Opts{
	Addr:       0x69,
	ExpectedID: WhoAmIICM20600,
}

// ICM20600 drives an InvenSense ICM-20600 6-axis IMU over a register bus.
type ICM20600 struct {
	bus   Bus
	opts  Opts
	clock timeutil.Clock

	accelScale float32
	gyroScale  float32
	raw        [imu.RawBlockSize]byte
}

// NewICM20600 returns a driver for the device at opts.Addr. It does not
// touch the bus; call Init before reading samples.
func NewICM20600(bus Bus, opts Opts) (*ICM20600, error) {
	if opts.AccelRange > 3 {
		return nil, fmt.Errorf("accel range %d out of 0-3", opts.AccelRange)
	}
	if opts.GyroRange > 3 {
		return nil, fmt.Errorf("gyro range %d out of 0-3", opts.GyroRange)
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ICM20600{
		bus:        bus,
		opts:       opts,
		clock:      clock,
		accelScale: accelLSBPerG[opts.AccelRange],
		gyroScale:  gyroLSBPerDPS[opts.GyroRange],
	}, nil
}

// Addr returns the device bus address.
func (d *ICM20600) Addr() uint16 { return d.opts.Addr }

// AccelRangeG returns the configured accelerometer full scale in g.
func (d *ICM20600) AccelRangeG() int { return accelRangeG[d.opts.AccelRange] }

// GyroRangeDPS returns the configured gyroscope full scale in °/s.
func (d *ICM20600) GyroRangeDPS() int { return gyroRangeDPS[d.opts.GyroRange] }

// Init wakes the device and programs the full-scale ranges, then returns the
// WHO_AM_I value. The order of the steps is required by the device.
func (d *ICM20600) Init() (byte, error) {
	if err := d.write(regPwrMgmt1, pwrWakeAutoClock); err != nil {
		return 0, err
	}
	d.clock.Sleep(wakeSettle)

	if err := d.write(regAccelConfig, d.opts.AccelRange<<3); err != nil {
		return 0, err
	}
	if err := d.write(regGyroConfig, d.opts.GyroRange<<3); err != nil {
		return 0, err
	}
	d.clock.Sleep(configSettle)

	who, err := d.ReadRegister(regWhoAmI)
	if err != nil {
		return 0, err
	}
	if d.opts.ExpectedID != 0 && who != d.opts.ExpectedID {
		return who, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrUnexpectedID, who, d.opts.ExpectedID)
	}
	return who, nil
}

// ReadSample burst-reads the accel/temp/gyro block and converts it.
func (d *ICM20600) ReadSample() (imu.Sample, error) {
	if err := d.bus.ReadBurst(d.opts.Addr, regAccelXoutH, d.raw[:]); err != nil {
		return imu.Sample{}, &BusError{Op: "read", Reg: regAccelXoutH, Err: err}
	}
	return imu.DecodeRawBlock(d.raw[:], d.accelScale, d.gyroScale)
}

// ReadRegister reads a single register.
func (d *ICM20600) ReadRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := d.bus.ReadBurst(d.opts.Addr, reg, b[:]); err != nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: err}
	}
	return b[0], nil
}

func (d *ICM20600) write(reg, val byte) error {
	if err := d.bus.Write(d.opts.Addr, reg, val); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}
