// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package toggle turns the noisy recording switch into a stable level.
package toggle

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultSettle is the minimum time a level must hold before it is accepted.
const DefaultSettle = 100 * time.Millisecond

// Debouncer is a time-hysteresis filter for a maintained switch.
//
// The zero value is not usable; create one with NewDebouncer.
type Debouncer struct {
	settle     time.Duration
	lastRaw    gpio.Level
	lastChange time.Time
	accepted   gpio.Level
}

// NewDebouncer returns a debouncer whose raw and accepted levels start at
// initial. With a pull-up input the idle level is gpio.High.
func NewDebouncer(settle time.Duration, initial gpio.Level) *Debouncer {
	return &Debouncer{
		settle:   settle,
		lastRaw:  initial,
		accepted: initial,
	}
}

// Update feeds one raw observation taken at now and returns the accepted
// level. It must be called on every tick, including ticks where the input
// did not change, because acceptance happens only once the level has been
// stable for longer than the settle duration.
func (d *Debouncer) Update(raw gpio.Level, now time.Time) gpio.Level {
	if raw != d.lastRaw {
		d.lastRaw = raw
		d.lastChange = now
	}
	if now.Sub(d.lastChange) > d.settle {
		d.accepted = d.lastRaw
	}
	return d.accepted
}

// Accepted returns the current accepted level without sampling.
func (d *Debouncer) Accepted() gpio.Level { return d.accepted }

// Window returns the last raw level and when it was first observed.
func (d *Debouncer) Window() (gpio.Level, time.Time) { return d.lastRaw, d.lastChange }

// Active reports whether a level means "recording". The switch pulls the
// input low when closed.
func Active(l gpio.Level) bool { return l == gpio.Low }
