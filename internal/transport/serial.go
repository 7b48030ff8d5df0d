// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
)

// Serial is a wired tether. Each payload goes out as [len][payload]; every
// byte coming in is one control message.
type Serial struct {
	port      io.ReadWriteCloser
	onControl ControlHandler
	log       *logrus.Entry

	mu     sync.Mutex
	closed bool
}

// OpenSerial opens name at baud, 8N1. Reads return every 100ms so Run can
// observe cancellation.
func OpenSerial(name string, baud uint, onControl ControlHandler) (*Serial, error) {
	opts := serial.OpenOptions{
		PortName:              name,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	s := NewSerial(port, onControl)
	s.log.WithFields(logrus.Fields{"port": name, "baud": baud}).Info("port opened")
	return s, nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.ReadWriteCloser, onControl ControlHandler) *Serial {
	return &Serial{port: port, onControl: onControl, log: logging.For("serial")}
}

func (s *Serial) Name() string { return "serial" }

// Notify writes one length-prefixed frame.
func (s *Serial) Notify(payload []byte) error {
	if len(payload) > 0xFF {
		return fmt.Errorf("serial: payload too long (%d bytes)", len(payload))
	}
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, byte(len(payload)))
	frame = append(frame, payload...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if _, err := s.port.Write(frame); err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

// Run reads control bytes until ctx is done, then closes the port.
func (s *Serial) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.close()
	}()

	buf := make([]byte, 64)
	for {
		n, err := s.port.Read(buf)
		for _, b := range buf[:n] {
			if s.onControl != nil {
				s.onControl([]byte{b})
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			// read timeout with nothing pending
			continue
		}
		s.close()
		return fmt.Errorf("serial: read: %w", err)
	}
}

func (s *Serial) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		s.log.WithError(err).Debug("close")
	}
}
