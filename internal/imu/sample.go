// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"fmt"
)

// RawBlockSize is the length of the accel/temp/gyro burst-read region.
const RawBlockSize = 14

// Sample is one converted 6-axis reading.
type Sample struct {
	Ax float32 `json:"ax"` // g
	Ay float32 `json:"ay"`
	Az float32 `json:"az"`

	Gx float32 `json:"gx"` // °/s
	Gy float32 `json:"gy"`
	Gz float32 `json:"gz"`
}

// Values returns the six axes in wire order.
func (s Sample) Values() [6]float32 {
	return [6]float32{s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz}
}

// DecodeRawBlock converts a burst-read block into physical units.
//
// The block holds seven big-endian int16 words: accel X/Y/Z, temperature,
// gyro X/Y/Z. The temperature word is ignored.
func DecodeRawBlock(raw []byte, accelLSBPerG, gyroLSBPerDPS float32) (Sample, error) {
	if len(raw) < RawBlockSize {
		return Sample{}, fmt.Errorf("raw block: got %d bytes, want %d", len(raw), RawBlockSize)
	}

	word := func(i int) float32 {
		return float32(int16(binary.BigEndian.Uint16(raw[i : i+2])))
	}

	return Sample{
		Ax: word(0) / accelLSBPerG,
		Ay: word(2) / accelLSBPerG,
		Az: word(4) / accelLSBPerG,
		Gx: word(8) / gyroLSBPerDPS,
		Gy: word(10) / gyroLSBPerDPS,
		Gz: word(12) / gyroLSBPerDPS,
	}, nil
}
