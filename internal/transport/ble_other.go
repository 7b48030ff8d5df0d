// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package transport

import (
	"context"
	"errors"
)

// ErrBLEUnsupported is returned by BLE.Run off Linux.
var ErrBLEUnsupported = errors.New("ble: only supported on linux")

// BLE is unavailable on this platform.
type BLE struct {
	slot notifySlot
}

func NewBLE(string, ControlHandler) *BLE { return &BLE{} }

func (b *BLE) Name() string                { return "ble" }
func (b *BLE) Notify(payload []byte) error { return b.slot.write(payload) }
func (b *BLE) Subscribed() bool            { return false }
func (b *BLE) Run(context.Context) error   { return ErrBLEUnsupported }
func (b *BLE) Stats() LinkStats            { return LinkStats{Name: b.Name()} }

// BLECentral is unavailable on this platform.
type BLECentral struct{}

func NewBLECentral(string, func([]byte), Retrier) *BLECentral { return &BLECentral{} }

func (c *BLECentral) Run(context.Context) error { return ErrBLEUnsupported }
