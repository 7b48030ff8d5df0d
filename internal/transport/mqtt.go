// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
)

// ErrNotConnected is returned by MQTT.Notify while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// MQTTConfig selects the broker and topics.
type MQTTConfig struct {
	Broker       string
	ClientID     string
	DataTopic    string
	ControlTopic string
}

// MQTT publishes payloads to a broker topic and treats messages on the
// control topic as control messages.
type MQTT struct {
	cfg       MQTTConfig
	client    mqtt.Client
	onControl ControlHandler
	log       *logrus.Entry
}

// NewMQTT builds an auto-reconnecting client. Nothing connects until Run.
func NewMQTT(cfg MQTTConfig, onControl ControlHandler) *MQTT {
	m := &MQTT{cfg: cfg, onControl: onControl, log: logging.For("mqtt")}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.log.WithError(err).Warn("connection lost")
		})
	m.client = mqtt.NewClient(opts)
	return m
}

func newMQTTWithClient(cfg MQTTConfig, client mqtt.Client, onControl ControlHandler) *MQTT {
	return &MQTT{cfg: cfg, client: client, onControl: onControl, log: logging.For("mqtt")}
}

func (m *MQTT) Name() string { return "mqtt" }

// onConnect (re)subscribes the control topic after every connect.
func (m *MQTT) onConnect(c mqtt.Client) {
	m.log.WithField("broker", m.cfg.Broker).Info("connected")
	if m.cfg.ControlTopic == "" {
		return
	}
	tok := c.Subscribe(m.cfg.ControlTopic, 0, m.handleControl)
	go func() {
		tok.Wait()
		if err := tok.Error(); err != nil {
			m.log.WithError(err).WithField("topic", m.cfg.ControlTopic).Error("subscribe failed")
			return
		}
		m.log.WithField("topic", m.cfg.ControlTopic).Info("subscribed")
	}()
}

func (m *MQTT) handleControl(_ mqtt.Client, msg mqtt.Message) {
	if m.onControl != nil {
		m.onControl(msg.Payload())
	}
}

// Notify publishes payload QoS 0, not retained. It does not wait for the
// write; an error is returned only if the token already failed.
func (m *MQTT) Notify(payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	tok := m.client.Publish(m.cfg.DataTopic, 0, false, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt: publish: %w", err)
		}
	default:
	}
	return nil
}

// Run connects (retrying in the background) and disconnects when ctx is done.
func (m *MQTT) Run(ctx context.Context) error {
	m.log.WithField("broker", m.cfg.Broker).Info("connecting")
	tok := m.client.Connect()
	go func() {
		select {
		case <-tok.Done():
			if err := tok.Error(); err != nil {
				m.log.WithError(err).Error("connect failed")
			}
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	m.client.Disconnect(250)
	m.log.Info("disconnected")
	return nil
}
