// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline runs the fixed-cadence sampling loop: read the IMU,
// debounce the recording switch, track recording transitions and hand the
// resulting payload to the notification sink.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/swingsense/internal/gate"
	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/recording"
	"github.com/relabs-tech/swingsense/internal/timeutil"
	"github.com/relabs-tech/swingsense/internal/toggle"
	"github.com/relabs-tech/swingsense/internal/wire"
)

// Sensor produces one converted sample per call.
type Sensor interface {
	ReadSample() (imu.Sample, error)
}

// Sink delivers payloads to connected receivers at best effort.
type Sink interface {
	Notify(payload []byte) error
}

// Outcome describes what a single Poll did.
type Outcome int

const (
	GateClosed Outcome = iota // gate off, nothing touched
	NotDue                    // period not yet elapsed
	ReadFailed                // tick skipped, state untouched
	Quiet                     // tick ran, idle, nothing sent
	EmittedHeader
	EmittedData
)

var outcomeNames = [...]string{"gate-closed", "not-due", "read-failed", "quiet", "emitted-header", "emitted-data"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Config holds the loop timing.
type Config struct {
	Period   time.Duration // tick period, ~40 Hz by default
	IdlePoll time.Duration // sleep while the gate is off
	BusyPoll time.Duration // sleep while waiting for the period
	Settle   time.Duration // switch debounce
}

// DefaultConfig mirrors the wearable firmware timing.
var DefaultConfig = Config{
	Period:   25 * time.Millisecond,
	IdlePoll: 5 * time.Millisecond,
	BusyPoll: time.Millisecond,
	Settle:   toggle.DefaultSettle,
}

// Stats are running counters, read with Scheduler.Stats.
type Stats struct {
	Ticks      uint64
	ReadErrors uint64
	Headers    uint64
	DataFrames uint64
	SinkErrors uint64
	Recording  bool
}

type counters struct {
	ticks, readErrors, headers, dataFrames, sinkErrors atomic.Uint64
	recording                                          atomic.Bool
}

// Scheduler owns the recording state and the debounce window. Run, Poll and
// State must be called from one goroutine; only the gate and the counters
// are shared.
type Scheduler struct {
	cfg    Config
	sensor Sensor
	input  toggle.LevelReader
	sink   Sink
	gate   *gate.Gate
	clock  timeutil.Clock
	log    logrus.FieldLogger

	debounce *toggle.Debouncer
	machine  recording.Machine

	lastTick       time.Time
	ticked         bool
	failStreak     int
	sinkFailStreak int
	stats          counters
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLogger replaces the component logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Scheduler) { s.log = l } }

// New builds a scheduler. The switch is assumed open (pulled high) at boot,
// so the recording state starts Idle.
func New(cfg Config, sensor Sensor, input toggle.LevelReader, sink Sink, g *gate.Gate, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		sensor:   sensor,
		input:    input,
		sink:     sink,
		gate:     g,
		clock:    timeutil.RealClock{},
		log:      logging.For("pipeline"),
		debounce: toggle.NewDebouncer(cfg.Settle, gpio.High),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current recording state.
func (s *Scheduler) State() recording.State { return s.machine.State() }

// Debounce exposes the switch filter, mainly for inspection in tests.
func (s *Scheduler) Debounce() *toggle.Debouncer { return s.debounce }

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:      s.stats.ticks.Load(),
		ReadErrors: s.stats.readErrors.Load(),
		Headers:    s.stats.headers.Load(),
		DataFrames: s.stats.dataFrames.Load(),
		SinkErrors: s.stats.sinkErrors.Load(),
		Recording:  s.stats.recording.Load(),
	}
}

// Run polls until ctx is cancelled. It never blocks for a full period: it
// sleeps in short steps so transports sharing the CPU stay responsive.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("period", s.cfg.Period).Info("sampling loop started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sampling loop stopped")
			return ctx.Err()
		default:
		}

		switch s.Poll(s.clock.Now()) {
		case GateClosed:
			s.clock.Sleep(s.cfg.IdlePoll)
		case NotDue:
			s.clock.Sleep(s.cfg.BusyPoll)
		}
	}
}

// Poll runs one scheduling check at now and, when a tick is due, the whole
// read/debounce/transition/emit pipeline.
func (s *Scheduler) Poll(now time.Time) Outcome {
	if !s.gate.Enabled() {
		return GateClosed
	}
	if s.ticked && now.Sub(s.lastTick) < s.cfg.Period {
		return NotDue
	}
	s.lastTick = now
	s.ticked = true
	s.stats.ticks.Add(1)

	sample, err := s.sensor.ReadSample()
	if err != nil {
		s.readFailed(err)
		return ReadFailed
	}
	if s.failStreak > 0 {
		s.log.WithField("skipped", s.failStreak).Info("imu reads recovered")
		s.failStreak = 0
	}

	level := s.debounce.Update(s.input.Read(), now)
	res := s.machine.OnTick(toggle.Active(level))
	if res.Transition {
		s.stats.recording.Store(res.State == recording.Recording)
	}

	payload := Payload(res, sample)
	if payload == nil {
		return Quiet
	}
	if err := s.sink.Notify(payload); err != nil {
		s.notifyFailed(err, len(payload))
	} else if s.sinkFailStreak > 0 {
		s.log.WithField("failed", s.sinkFailStreak).Info("notify recovered")
		s.sinkFailStreak = 0
	}

	if res.Transition {
		s.stats.headers.Add(1)
		s.log.WithFields(logrus.Fields{
			"state":  res.State,
			"header": fmt.Sprintf("0x%02X", payload[0]),
		}).Info("recording state changed")
		return EmittedHeader
	}
	s.stats.dataFrames.Add(1)
	return EmittedData
}

func (s *Scheduler) readFailed(err error) {
	s.stats.readErrors.Add(1)
	if s.failStreak == 0 {
		s.log.WithError(err).Warn("imu read failed, skipping ticks")
	} else {
		s.log.WithError(err).Debug("imu read failed")
	}
	s.failStreak++
}

// notifyFailed warns on the first failure of a streak and logs the rest at
// debug. A BLE central left at the 20-byte default MTU rejects every data
// frame this way.
func (s *Scheduler) notifyFailed(err error, size int) {
	s.stats.sinkErrors.Add(1)
	entry := s.log.WithError(err).WithField("bytes", size)
	if s.sinkFailStreak == 0 {
		entry.Warn("notify failed, payloads are being lost")
	} else {
		entry.Debug("notify failed")
	}
	s.sinkFailStreak++
}

// Payload decides what a tick emits: exactly one header byte on a
// transition tick, the sample while recording, nothing while idle.
func Payload(res recording.Result, sample imu.Sample) []byte {
	switch {
	case res.Transition:
		return wire.Header(res.State == recording.Recording)
	case res.State == recording.Recording:
		return wire.EncodeSample(sample)
	default:
		return nil
	}
}
