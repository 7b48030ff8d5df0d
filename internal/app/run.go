// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/swingsense/internal/config"
	"github.com/relabs-tech/swingsense/internal/display"
	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/sensors"
	"github.com/relabs-tech/swingsense/internal/toggle"
	"github.com/relabs-tech/swingsense/internal/transport"
)

// OpenLinks builds the transports named in cfg.Transports, routing their
// control messages to d.
func OpenLinks(cfg *config.Config, d *Device) ([]transport.Transport, error) {
	var links []transport.Transport
	for _, name := range cfg.Transports {
		switch name {
		case config.TransportBLE:
			links = append(links, transport.NewBLE(cfg.DeviceName, d.Control))
		case config.TransportMQTT:
			links = append(links, transport.NewMQTT(transport.MQTTConfig{
				Broker:       cfg.MQTTBroker,
				ClientID:     cfg.MQTTClientID,
				DataTopic:    cfg.TopicIMU,
				ControlTopic: cfg.TopicCtrl,
			}, d.Control))
		case config.TransportWS:
			links = append(links, transport.NewMonitor(cfg.WSListenAddr, d.Control, d.Status))
		case config.TransportSerial:
			s, err := transport.OpenSerial(cfg.SerialPort, uint(cfg.SerialBaudRate), d.Control)
			if err != nil {
				return nil, err
			}
			links = append(links, s)
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}
	return links, nil
}

// RunDevice opens the board hardware and runs the wearable until ctx is
// done.
func RunDevice(ctx context.Context, cfg *config.Config) error {
	log := logging.For("device")

	bus, err := sensors.OpenI2C(cfg.I2CBus, physic.Frequency(cfg.I2CSpeedKHz)*physic.KiloHertz)
	if err != nil {
		return err
	}
	defer bus.Close()

	pin, err := toggle.OpenPin(cfg.RecordingPin)
	if err != nil {
		return err
	}

	d, err := NewDevice(cfg, Hardware{Bus: sensors.NewI2CBus(bus), Switch: pin})
	if err != nil {
		return err
	}

	links, err := OpenLinks(cfg, d)
	if err != nil {
		return err
	}
	d.Attach(links...)

	if cfg.DisplayEnabled {
		dev, err := display.Open(bus)
		if err != nil {
			log.WithError(err).Warn("display: not available, continuing without it")
		} else {
			d.Attach(display.NewScreen(dev, cfg.DeviceName, cfg.DisplayInterval(), d.Gate().Enabled, nil))
		}
	}

	return d.Run(ctx)
}
