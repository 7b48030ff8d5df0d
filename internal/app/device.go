// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/swingsense/internal/config"
	"github.com/relabs-tech/swingsense/internal/gate"
	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/pipeline"
	"github.com/relabs-tech/swingsense/internal/sensors"
	"github.com/relabs-tech/swingsense/internal/timeutil"
	"github.com/relabs-tech/swingsense/internal/toggle"
	"github.com/relabs-tech/swingsense/internal/transport"
)

// Hardware is what the device needs from the board.
type Hardware struct {
	Bus    sensors.Bus
	Switch toggle.LevelReader
}

// Device wires the IMU, the recording switch, the gate and the links into
// one sampling loop.
type Device struct {
	cfg      *config.Config
	clock    timeutil.Clock
	log      *logrus.Entry
	imuReady bool
	gate     *gate.Gate
	fanout   *transport.Fanout
	sched    *pipeline.Scheduler
	started  time.Time
}

// DeviceOption customizes a Device.
type DeviceOption func(*Device)

// WithDeviceClock replaces the real clock for the driver, loop and status log.
func WithDeviceClock(c timeutil.Clock) DeviceOption { return func(d *Device) { d.clock = c } }

// NewDevice initializes the IMU and builds the sampling loop. An IMU that
// fails to initialize is logged and the device keeps running without it:
// every tick's read fails and is skipped until the bus recovers.
func NewDevice(cfg *config.Config, hw Hardware, opts ...DeviceOption) (*Device, error) {
	d := &Device{
		cfg:    cfg,
		clock:  timeutil.RealClock{},
		log:    logging.For("device"),
		gate:   gate.New(cfg.StreamEnabledAtBoot),
		fanout: transport.NewFanout(),
	}
	for _, o := range opts {
		o(d)
	}
	d.started = d.clock.Now()

	drv, err := sensors.NewICM20600(hw.Bus, sensors.Opts{
		Addr:       cfg.IMUI2CAddr,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
		ExpectedID: cfg.IMUWhoAmI,
		Clock:      d.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("imu: %w", err)
	}

	who, err := drv.Init()
	if err != nil {
		d.log.WithError(err).WithField("addr", fmt.Sprintf("0x%02X", cfg.IMUI2CAddr)).Error("imu: init failed")
	} else {
		d.imuReady = true
		d.log.WithFields(logrus.Fields{
			"who_am_i": fmt.Sprintf("0x%02X", who),
			"addr":     fmt.Sprintf("0x%02X", drv.Addr()),
			"accel_g":  drv.AccelRangeG(),
			"gyro_dps": drv.GyroRangeDPS(),
		}).Info("imu: ICM20600 ok")
	}

	timing := pipeline.Config{
		Period:   cfg.SamplePeriod(),
		IdlePoll: cfg.IdlePoll(),
		BusyPoll: cfg.BusyPoll(),
		Settle:   cfg.Debounce(),
	}
	d.sched = pipeline.New(timing, drv, hw.Switch, d.fanout, d.gate,
		pipeline.WithClock(d.clock), pipeline.WithLogger(logging.For("pipeline")))
	return d, nil
}

// Attach adds links to the fan-out. Call before Run.
func (d *Device) Attach(links ...transport.Transport) { d.fanout.Add(links...) }

// IMUReady reports whether the IMU initialized at boot.
func (d *Device) IMUReady() bool { return d.imuReady }

// Gate exposes the stream gate.
func (d *Device) Gate() *gate.Gate { return d.gate }

// Scheduler exposes the sampling loop.
func (d *Device) Scheduler() *pipeline.Scheduler { return d.sched }

// Control applies one inbound control message from any link.
func (d *Device) Control(msg []byte) {
	if !d.gate.HandleControl(msg) {
		return
	}
	d.log.WithField("stream_on", d.gate.Enabled()).Info("control: stream state set")
}

// Status builds the snapshot served by the monitor.
func (d *Device) Status() transport.Status {
	st := d.sched.Stats()
	return transport.Status{
		Device:        d.cfg.DeviceName,
		StreamEnabled: d.gate.Enabled(),
		Recording:     st.Recording,
		IMUReady:      d.imuReady,
		Ticks:         st.Ticks,
		ReadErrors:    st.ReadErrors,
		DataFrames:    st.DataFrames,
		Headers:       st.Headers,
		Transports:    d.fanout.Names(),
		Links:         d.fanout.Stats(),
		UptimeS:       d.uptime(),
		Timestamp:     d.clock.Now().UTC().Format(time.RFC3339),
	}
}

func (d *Device) uptime() int64 { return int64(d.clock.Since(d.started) / time.Second) }

// Run starts every link, the status log and the sampling loop, and returns
// when ctx is done or a link fails.
func (d *Device) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range d.fanout.Links() {
		g.Go(func() error {
			if err := l.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", l.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error { return d.logStatus(gctx) })

	g.Go(func() error {
		if err := d.sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	d.log.WithFields(logrus.Fields{
		"name":       d.cfg.DeviceName,
		"transports": d.fanout.Names(),
		"stream_on":  d.gate.Enabled(),
	}).Info("device running")
	return g.Wait()
}

func (d *Device) logStatus(ctx context.Context) error {
	interval := d.cfg.StatusLogInterval()
	if interval <= 0 {
		return nil
	}
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			st := d.sched.Stats()
			d.log.WithFields(logrus.Fields{
				"ticks":       st.Ticks,
				"read_errors": st.ReadErrors,
				"data_frames": st.DataFrames,
				"headers":     st.Headers,
				"sink_errors": st.SinkErrors,
				"recording":   st.Recording,
				"stream_on":   d.gate.Enabled(),
				"uptime_s":    d.uptime(),
				"links":       d.fanout.Stats(),
			}).Info("status")
		}
	}
}
