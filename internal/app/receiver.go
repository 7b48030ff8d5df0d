// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/session"
	"github.com/relabs-tech/swingsense/internal/transport"
	"github.com/relabs-tech/swingsense/internal/wire"
)

// Receiver sources.
const (
	SourceBLE  = "ble"
	SourceMQTT = "mqtt"
	SourceWS   = "ws"
)

// ReceiverConfig selects where frames come from and where sessions go.
type ReceiverConfig struct {
	Source     string
	Name       string // advertised device name, BLE only
	Broker     string
	ClientID   string
	Topic      string
	URL        string // websocket monitor, e.g. ws://swingsense.local:8080/ws
	SessionDir string // empty disables CSV recording
}

// FormatSample renders a sample the way the bench receiver prints it.
func FormatSample(s imu.Sample) string {
	return fmt.Sprintf("IMU | Accel: %7.4f %7.4f %7.4f | Gyro: %7.4f %7.4f %7.4f",
		s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz)
}

// FormatPayload renders any received payload as one line.
func FormatPayload(p []byte) string {
	f, err := wire.Decode(p)
	if err != nil {
		return fmt.Sprintf("Notification: unexpected length=%d bytes -> %s", len(p), hex.EncodeToString(p))
	}
	if f.Kind == wire.KindHeader {
		if f.Recording {
			return fmt.Sprintf("REC | started (0x%02X)", p[0])
		}
		return fmt.Sprintf("REC | stopped (0x%02X)", p[0])
	}
	return FormatSample(f.Sample)
}

// Receiver prints payloads and optionally records sessions. Handle may be
// called from any goroutine.
type Receiver struct {
	out io.Writer
	rec *session.Recorder
	log *logrus.Entry

	mu sync.Mutex
}

// NewReceiver writes lines to out. rec may be nil.
func NewReceiver(out io.Writer, rec *session.Recorder) *Receiver {
	return &Receiver{out: out, rec: rec, log: logging.For("receiver")}
}

// Handle processes one payload.
func (r *Receiver) Handle(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, FormatPayload(p))
	if r.rec == nil {
		return
	}
	f, err := wire.Decode(p)
	if err != nil {
		return
	}
	if err := r.rec.Handle(f); err != nil {
		r.log.WithError(err).Error("session write failed")
	}
}

// Sessions returns the sessions saved so far.
func (r *Receiver) Sessions() []session.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil
	}
	return r.rec.Sessions()
}

// Close saves any open session.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil
	}
	if cur, open := r.rec.Current(); open {
		r.log.WithFields(logrus.Fields{"session": cur.ID, "rows": cur.Rows}).Warn("closing session without a stop header")
	}
	if n := r.rec.Dropped(); n > 0 {
		r.log.WithField("dropped", n).Info("data frames received outside a session")
	}
	return r.rec.Close()
}

// Backoff doubles a delay from Initial up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	cur     time.Duration
}

// Next returns the delay to wait now and grows the following one.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
	}
	d := b.cur
	b.cur *= 2
	if b.cur > b.Max {
		b.cur = b.Max
	}
	return d
}

// Reset starts over from Initial.
func (b *Backoff) Reset() { b.cur = 0 }

// RunReceiver consumes frames until ctx is done.
func RunReceiver(ctx context.Context, rc ReceiverConfig, out io.Writer) error {
	var rec *session.Recorder
	if rc.SessionDir != "" {
		var err error
		if rec, err = session.NewRecorder(rc.SessionDir); err != nil {
			return err
		}
	}
	r := NewReceiver(out, rec)
	defer func() {
		if err := r.Close(); err != nil {
			r.log.WithError(err).Error("closing session")
		}
	}()

	switch rc.Source {
	case SourceBLE:
		c := transport.NewBLECentral(rc.Name, r.Handle, &Backoff{Initial: time.Second, Max: 30 * time.Second})
		return c.Run(ctx)
	case SourceMQTT:
		return receiveMQTT(ctx, rc, r)
	case SourceWS:
		return receiveWS(ctx, rc.URL, r, &Backoff{Initial: time.Second, Max: 30 * time.Second})
	default:
		return fmt.Errorf("unknown receiver source %q", rc.Source)
	}
}

func receiveMQTT(ctx context.Context, rc ReceiverConfig, r *Receiver) error {
	opts := mqtt.NewClientOptions().
		AddBroker(rc.Broker).
		SetClientID(rc.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(subscribeOnConnect(rc.Topic, r)).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			r.log.WithError(err).Warn("connection lost, reconnecting")
		})

	r.log.WithField("broker", rc.Broker).Info("connecting")
	consumeMQTT(ctx, mqtt.NewClient(opts), r)
	return nil
}

// consumeMQTT connects c and keeps it up until ctx is done. With connect
// retry on, the connect token only completes once a connection is made.
func consumeMQTT(ctx context.Context, c mqtt.Client, r *Receiver) {
	if err := waitToken(ctx, c.Connect()); err != nil && ctx.Err() == nil {
		r.log.WithError(err).Error("connect failed")
	}
	<-ctx.Done()
	c.Disconnect(250)
}

// subscribeOnConnect (re)subscribes topic after every connect.
func subscribeOnConnect(topic string, r *Receiver) mqtt.OnConnectHandler {
	return func(c mqtt.Client) {
		r.log.Info("connected")
		tok := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			r.Handle(msg.Payload())
		})
		go func() {
			if err := waitToken(context.Background(), tok); err != nil {
				r.log.WithError(err).WithField("topic", topic).Error("subscribe failed")
				return
			}
			r.log.WithField("topic", topic).Info("subscribed")
		}()
	}
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
		return tok.Error()
	}
}

func receiveWS(ctx context.Context, url string, r *Receiver, backoff *Backoff) error {
	for {
		r.log.WithField("url", url).Info("connecting")
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			backoff.Reset()
			r.log.Info("connected, listening")
			readFrames(ctx, conn, r)
			r.log.Info("disconnected")
		} else {
			r.log.WithError(err).Warn("connection error")
		}

		if ctx.Err() != nil {
			return nil
		}
		wait := backoff.Next()
		r.log.WithField("wait", wait).Info("reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, r *Receiver) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.BinaryMessage {
			r.Handle(data)
		}
	}
}
