// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire defines the notification payloads exchanged with the receiver.
//
// Frames are told apart by length only: a 1-byte frame is a recording
// header, a 24-byte frame is a sample (six little-endian float32 values in
// the order ax, ay, az, gx, gy, gz).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/swingsense/internal/imu"
)

const (
	HeaderRecordingStarted byte = 0x01
	HeaderRecordingStopped byte = 0x02

	HeaderSize = 1
	DataSize   = 24
)

// ErrUnknownFrame is returned by Decode for payloads that are neither a
// header nor a data frame.
var ErrUnknownFrame = errors.New("wire: unknown frame")

// Kind distinguishes the two frame types.
type Kind int

const (
	KindHeader Kind = iota + 1
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is a decoded payload.
type Frame struct {
	Kind      Kind
	Recording bool // headers only: true for "recording started"
	Sample    imu.Sample
}

// Header returns the 1-byte payload announcing the new recording state.
func Header(recording bool) []byte {
	if recording {
		return []byte{HeaderRecordingStarted}
	}
	return []byte{HeaderRecordingStopped}
}

// EncodeSample returns the 24-byte data payload for s.
func EncodeSample(s imu.Sample) []byte {
	buf := make([]byte, DataSize)
	for i, v := range s.Values() {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Decode parses a payload received from the device.
func Decode(p []byte) (Frame, error) {
	switch len(p) {
	case HeaderSize:
		switch p[0] {
		case HeaderRecordingStarted:
			return Frame{Kind: KindHeader, Recording: true}, nil
		case HeaderRecordingStopped:
			return Frame{Kind: KindHeader, Recording: false}, nil
		}
		return Frame{}, fmt.Errorf("%w: header byte 0x%02X", ErrUnknownFrame, p[0])
	case DataSize:
		var v [6]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		}
		return Frame{Kind: KindData, Sample: imu.Sample{
			Ax: v[0], Ay: v[1], Az: v[2],
			Gx: v[3], Gy: v[4], Gz: v[5],
		}}, nil
	default:
		return Frame{}, fmt.Errorf("%w: length %d", ErrUnknownFrame, len(p))
	}
}
