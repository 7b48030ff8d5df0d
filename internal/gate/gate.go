// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gate implements the stream on/off switch written by the control
// channel and read by the sampling loop.
package gate

import "sync/atomic"

// Gate is safe for concurrent use. Writers never block.
type Gate struct {
	on atomic.Bool
}

// New returns a gate in the given initial state.
func New(enabled bool) *Gate {
	g := &Gate{}
	g.on.Store(enabled)
	return g
}

// Enabled reports whether streaming is on.
func (g *Gate) Enabled() bool { return g.on.Load() }

// SetEnabled turns streaming on or off.
func (g *Gate) SetEnabled(enabled bool) { g.on.Store(enabled) }

// HandleControl applies a control message: a nonzero first byte enables
// streaming, zero disables it. Empty messages are ignored and reported as
// not applied.
func (g *Gate) HandleControl(msg []byte) (applied bool) {
	if len(msg) == 0 {
		return false
	}
	g.SetEnabled(msg[0] != 0)
	return true
}
