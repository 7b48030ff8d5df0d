// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/swingsense/internal/config"
	"github.com/relabs-tech/swingsense/internal/sensors"
	"github.com/relabs-tech/swingsense/internal/timeutil"
)

// InspectOptions controls a bench check of the IMU.
type InspectOptions struct {
	Samples int
	Period  time.Duration
	JSON    bool // dump registers as a RegisterDump instead of a table
}

// RegisterDump is the JSON form of a register snapshot.
type RegisterDump struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Addr      string            `json:"addr"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// Inspect initializes drv, dumps its readable registers and prints a few
// converted samples.
func Inspect(drv *sensors.ICM20600, opts InspectOptions, clock timeutil.Clock, w io.Writer) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	who, err := drv.Init()
	if err != nil {
		return fmt.Errorf("imu init: %w", err)
	}
	fmt.Fprintf(w, "ICM20600 OK, WHO_AM_I=0x%02X (addr 0x%02X) accel ±%dg gyro ±%d°/s\n",
		who, drv.Addr(), drv.AccelRangeG(), drv.GyroRangeDPS())

	dump := RegisterDump{
		Version:   1,
		Device:    "icm20600",
		Addr:      fmt.Sprintf("0x%02X", drv.Addr()),
		Timestamp: clock.Now().UTC().Format(time.RFC3339),
		Registers: map[string]string{},
	}
	for _, r := range sensors.RegisterMap() {
		if !r.Readable() {
			continue
		}
		v, err := drv.ReadRegister(r.Address)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.Name, err)
		}
		dump.Registers[fmt.Sprintf("0x%02X", r.Address)] = fmt.Sprintf("0x%02X", v)
		if !opts.JSON {
			fmt.Fprintf(w, "  0x%02X %-14s = 0x%02X  %s\n", r.Address, r.Name, v, r.Description)
		}
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dump); err != nil {
			return err
		}
	}

	for i := 0; i < opts.Samples; i++ {
		if i > 0 {
			clock.Sleep(opts.Period)
		}
		s, err := drv.ReadSample()
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		fmt.Fprintln(w, FormatSample(s))
	}
	return nil
}

// RunInspect opens the configured bus and inspects the IMU on it.
func RunInspect(cfg *config.Config, opts InspectOptions, w io.Writer) error {
	bus, err := sensors.OpenI2C(cfg.I2CBus, physic.Frequency(cfg.I2CSpeedKHz)*physic.KiloHertz)
	if err != nil {
		return err
	}
	defer bus.Close()

	drv, err := sensors.NewICM20600(sensors.NewI2CBus(bus), sensors.Opts{
		Addr:       cfg.IMUI2CAddr,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
		ExpectedID: cfg.IMUWhoAmI,
	})
	if err != nil {
		return err
	}
	if opts.Period == 0 {
		opts.Period = cfg.SamplePeriod()
	}
	return Inspect(drv, opts, nil, w)
}
