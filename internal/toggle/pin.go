// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package toggle

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LevelReader samples a digital input.
type LevelReader interface {
	Read() gpio.Level
}

// OpenPin configures the named GPIO as an input with the internal pull-up
// enabled, as the switch shorts the pin to ground when closed.
func OpenPin(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("recording pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("recording pin %s: configure input: %w", name, err)
	}
	return pin, nil
}

// StaticLevel is a LevelReader that always returns the same level. It stands
// in for the switch on boards without one.
type StaticLevel gpio.Level

func (s StaticLevel) Read() gpio.Level { return gpio.Level(s) }
