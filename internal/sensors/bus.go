// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Bus is the register-addressed primitive the IMU driver needs.
type Bus interface {
	// Write stores val into register reg of the device at addr.
	Write(addr uint16, reg, val byte) error
	// ReadBurst reads len(buf) consecutive registers starting at reg using a
	// write-then-restart transaction. A short read is an error.
	ReadBurst(addr uint16, reg byte, buf []byte) error
}

// BusError reports a failed register transaction.
type BusError struct {
	Op  string // "write" or "read"
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s reg 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// I2CBus adapts a periph.io I²C bus to Bus.
type I2CBus struct {
	bus i2c.Bus
}

// NewI2CBus wraps an already opened periph bus.
func NewI2CBus(bus i2c.Bus) *I2CBus {
	return &I2CBus{bus: bus}
}

// Write implements Bus.
func (b *I2CBus) Write(addr uint16, reg, val byte) error {
	return b.bus.Tx(addr, []byte{reg, val}, nil)
}

// ReadBurst implements Bus. periph performs the register write and the read
// as a single transaction with a repeated start.
func (b *I2CBus) ReadBurst(addr uint16, reg byte, buf []byte) error {
	return b.bus.Tx(addr, []byte{reg}, buf)
}

// OpenI2C initializes the periph host drivers, opens the named bus ("" picks
// the first one) and sets its clock.
func OpenI2C(name string, speed physic.Frequency) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}

	if speed > 0 {
		if err := bus.SetSpeed(speed); err != nil {
			bus.Close()
			return nil, fmt.Errorf("i2c %s set speed %s: %w", bus, speed, err)
		}
	}
	return bus, nil
}
