// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport carries sampling payloads to receivers and brings
// control messages back. Every link uses the same length-framed payloads:
// one header byte or a 24-byte data frame.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ControlHandler receives one inbound control message. Only the first byte
// is meaningful; empty messages may be passed through and are ignored by the
// gate.
type ControlHandler func(msg []byte)

// Sink delivers one payload at best effort.
type Sink interface {
	Notify(payload []byte) error
}

// Transport is a link that can be fanned out to and runs its own service
// goroutines until ctx is done.
type Transport interface {
	Sink
	Name() string
	Run(ctx context.Context) error
}

// Retrier paces reconnect attempts.
type Retrier interface {
	Next() time.Duration
	Reset()
}

// Status is the snapshot served by the monitor's status endpoint.
type Status struct {
	Device        string      `json:"device"`
	StreamEnabled bool        `json:"stream_enabled"`
	Recording     bool        `json:"recording"`
	IMUReady      bool        `json:"imu_ready"`
	Ticks         uint64      `json:"ticks"`
	ReadErrors    uint64      `json:"read_errors"`
	DataFrames    uint64      `json:"data_frames"`
	Headers       uint64      `json:"headers"`
	Transports    []string    `json:"transports"`
	Links         []LinkStats `json:"links"`
	UptimeS       int64       `json:"uptime_s"`
	Timestamp     string      `json:"timestamp"`
}

// LinkStats describes one link in Status. Peers is the number of connected
// receivers that will get the next payload.
type LinkStats struct {
	Name    string `json:"name"`
	Peers   int    `json:"peers"`
	Dropped uint64 `json:"dropped,omitempty"`
}

// StatsReporter is implemented by links that know their peers.
type StatsReporter interface {
	Stats() LinkStats
}

// StatusFunc produces a fresh status snapshot. It is called from HTTP
// handler goroutines.
type StatusFunc func() Status

// Fanout delivers each payload to every transport. A failing link never
// stops delivery to the others.
type Fanout struct {
	links []Transport
}

// NewFanout returns a fan-out over links.
func NewFanout(links ...Transport) *Fanout {
	return &Fanout{links: links}
}

// Add appends links. It must not race with Notify.
func (f *Fanout) Add(links ...Transport) { f.links = append(f.links, links...) }

// Links returns the transports in delivery order.
func (f *Fanout) Links() []Transport { return f.links }

// Names returns the transport names in delivery order.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.links))
	for i, l := range f.links {
		names[i] = l.Name()
	}
	return names
}

// Stats returns one entry per link. Links that do not implement
// StatsReporter are listed by name only.
func (f *Fanout) Stats() []LinkStats {
	out := make([]LinkStats, len(f.links))
	for i, l := range f.links {
		if r, ok := l.(StatsReporter); ok {
			out[i] = r.Stats()
			continue
		}
		out[i] = LinkStats{Name: l.Name()}
	}
	return out
}

// Notify sends payload to every link and joins their errors.
func (f *Fanout) Notify(payload []byte) error {
	var errs []error
	for _, l := range f.links {
		if err := l.Notify(payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	return errors.Join(errs...)
}
