// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display drives the optional SSD1306 status screen. It listens to
// the same payloads the transports carry and redraws on its own ticker, so
// the sampling loop never waits on the display bus.
package display

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/timeutil"
	"github.com/relabs-tech/swingsense/internal/wire"
)

// Panel is the drawable surface; *ssd1306.Dev satisfies it.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Open initializes an SSD1306 at its default address on bus.
func Open(bus i2c.Bus) (*ssd1306.Dev, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: init ssd1306: %w", err)
	}
	return dev, nil
}

// Snapshot is what one frame shows.
type Snapshot struct {
	Title      string
	StreamOn   bool
	Recording  bool
	HaveSample bool
	Sample     imu.Sample
	Sessions   int
}

// Screen keeps the latest state and redraws it periodically.
type Screen struct {
	panel    Panel
	title    string
	interval time.Duration
	streamOn func() bool
	clock    timeutil.Clock
	log      *logrus.Entry

	mu   sync.Mutex
	snap Snapshot
}

// NewScreen returns a screen titled title. streamOn reports the gate; it may
// be nil.
func NewScreen(panel Panel, title string, interval time.Duration, streamOn func() bool, clock timeutil.Clock) *Screen {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Screen{
		panel:    panel,
		title:    title,
		interval: interval,
		streamOn: streamOn,
		clock:    clock,
		log:      logging.For("display"),
		snap:     Snapshot{Title: title},
	}
}

func (s *Screen) Name() string { return "display" }

// Notify records a payload for the next redraw. Unknown frames are ignored.
func (s *Screen) Notify(payload []byte) error {
	f, err := wire.Decode(payload)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch f.Kind {
	case wire.KindHeader:
		if f.Recording && !s.snap.Recording {
			s.snap.Sessions++
		}
		s.snap.Recording = f.Recording
	case wire.KindData:
		s.snap.Sample = f.Sample
		s.snap.HaveSample = true
	}
	return nil
}

// Snapshot returns the state the next frame will show.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()

	snap.StreamOn = s.streamOn == nil || s.streamOn()
	return snap
}

// Run draws the splash, then redraws every interval until ctx is done. The
// panel is cleared on exit.
func (s *Screen) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.panel.Draw(s.panel.Bounds(), Splash(s.title), image.Point{}); err != nil {
		s.log.WithError(err).Warn("splash failed")
	}

	for {
		select {
		case <-ctx.Done():
			blank := image1bit.NewVerticalLSB(s.panel.Bounds())
			if err := s.panel.Draw(s.panel.Bounds(), blank, image.Point{}); err != nil {
				s.log.WithError(err).Debug("clear failed")
			}
			return nil
		case <-ticker.C():
			if err := s.panel.Draw(s.panel.Bounds(), Render(s.Snapshot()), image.Point{}); err != nil {
				s.log.WithError(err).Debug("update failed")
			}
		}
	}
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// Splash is shown while the device boots.
func Splash(title string) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(20, 26)
	drawer.DrawString(title)

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawString("Starting IMU")
	return img
}

// Render draws one status frame.
func Render(snap Snapshot) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	state := "IDLE"
	switch {
	case !snap.StreamOn:
		state = "OFF"
	case snap.Recording:
		state = "REC"
	}
	drawer.Dot = fixed.P(0, 12)
	drawer.DrawString(fmt.Sprintf("%-12s%4s", snap.Title, state))

	if !snap.HaveSample {
		drawer.Dot = fixed.P(0, 36)
		drawer.DrawString("Waiting...")
		return img
	}

	s := snap.Sample
	drawer.Dot = fixed.P(0, 24)
	drawer.DrawString(fmt.Sprintf("A %6.2f %6.2f", s.Ax, s.Ay))
	drawer.Dot = fixed.P(0, 36)
	drawer.DrawString(fmt.Sprintf("  %6.2f   #%d", s.Az, snap.Sessions))
	drawer.Dot = fixed.P(0, 48)
	drawer.DrawString(fmt.Sprintf("G %6.1f %6.1f", s.Gx, s.Gy))
	drawer.Dot = fixed.P(0, 60)
	drawer.DrawString(fmt.Sprintf("  %6.1f", s.Gz))
	return img
}
