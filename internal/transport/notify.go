// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"fmt"
	"sync"
)

// notifier is the subset of a GATT notifier the BLE link writes through.
type notifier interface {
	Write(data []byte) (int, error)
	Done() bool
	Cap() int
}

// notifySlot holds the single subscribed central. Writes with nobody
// subscribed are dropped without error, like a peripheral notifying into
// the air.
type notifySlot struct {
	mu sync.Mutex
	n  notifier
}

func (s *notifySlot) set(n notifier) {
	s.mu.Lock()
	s.n = n
	s.mu.Unlock()
}

func (s *notifySlot) clear() { s.set(nil) }

func (s *notifySlot) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n != nil && !s.n.Done()
}

func (s *notifySlot) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == nil {
		return nil
	}
	if s.n.Done() {
		s.n = nil
		return nil
	}
	if c := s.n.Cap(); len(p) > c {
		return fmt.Errorf("payload of %d bytes exceeds notify capacity %d", len(p), c)
	}
	if _, err := s.n.Write(p); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
