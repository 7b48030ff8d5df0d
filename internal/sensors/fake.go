// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"sync"
)

// ErrShortRead is returned by FakeBus when ShortRead is set.
var ErrShortRead = errors.New("short read")

// BusOp is one transaction recorded by FakeBus.
type BusOp struct {
	Op   string // "write" or "read"
	Addr uint16
	Reg  byte
	Val  byte // written value, or first byte read
	Len  int
}

// FakeBus is an in-memory register file implementing Bus, for tests and
// for running the tools without hardware.
type FakeBus struct {
	mu   sync.Mutex
	regs map[byte]byte
	ops  []BusOp

	// WriteErr, when set, fails writes to the given register.
	WriteErr map[byte]error
	// ReadErr, when non-nil, fails every read.
	ReadErr error
	// ShortRead makes every read fail with ErrShortRead.
	ShortRead bool
}

// NewFakeBus returns a FakeBus with WHO_AM_I preset to an ICM-20600.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		regs:     map[byte]byte{regWhoAmI: WhoAmIICM20600},
		WriteErr: map[byte]error{},
	}
}

// Set stores consecutive register values starting at reg.
func (b *FakeBus) Set(reg byte, vals ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range vals {
		b.regs[reg+byte(i)] = v
	}
}

// Reg returns the current register value.
func (b *FakeBus) Reg(reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[reg]
}

// Ops returns a copy of the recorded transactions.
func (b *FakeBus) Ops() []BusOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BusOp(nil), b.ops...)
}

// Write implements Bus.
func (b *FakeBus) Write(addr uint16, reg, val byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, BusOp{Op: "write", Addr: addr, Reg: reg, Val: val, Len: 1})
	if err := b.WriteErr[reg]; err != nil {
		return err
	}
	b.regs[reg] = val
	return nil
}

// ReadBurst implements Bus.
func (b *FakeBus) ReadBurst(addr uint16, reg byte, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	op := BusOp{Op: "read", Addr: addr, Reg: reg, Len: len(buf)}
	switch {
	case b.ReadErr != nil:
		b.ops = append(b.ops, op)
		return b.ReadErr
	case b.ShortRead:
		b.ops = append(b.ops, op)
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, len(buf)/2, len(buf))
	}
	for i := range buf {
		buf[i] = b.regs[reg+byte(i)]
	}
	if len(buf) > 0 {
		op.Val = buf[0]
	}
	b.ops = append(b.ops, op)
	return nil
}
