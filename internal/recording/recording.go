// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recording holds the Idle/Recording state machine.
package recording

// State is the recording state.
type State uint8

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Result is the outcome of one tick.
type Result struct {
	State      State
	Transition bool
}

// Machine tracks the recording state. The zero value starts Idle.
type Machine struct {
	state State
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// OnTick moves to the desired state and reports whether this tick changed it.
func (m *Machine) OnTick(desired bool) Result {
	next := Idle
	if desired {
		next = Recording
	}
	if next == m.state {
		return Result{State: m.state}
	}
	m.state = next
	return Result{State: next, Transition: true}
}
