// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paypal/gatt"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
)

// centralMTU is requested after connecting so 24-byte data frames fit in
// one notification.
const centralMTU = 185

// MatchesAdvertisement reports whether a scanned advertisement belongs to a
// wearable: the manufacturer bytes are checked first, then the local name,
// then the advertised services.
func MatchesAdvertisement(a *gatt.Advertisement, name string) bool {
	if a == nil {
		return false
	}
	if bytes.HasPrefix(a.ManufacturerData, ManufacturerData) {
		return true
	}
	if name != "" && strings.Contains(a.LocalName, name) {
		return true
	}
	for _, u := range append(append([]gatt.UUID(nil), a.Services...), a.OverflowService...) {
		if u.Equal(ServiceUUID) || strings.Contains(strings.ToLower(u.String()), "ff00") {
			return true
		}
	}
	return false
}

// BLECentral scans for a wearable, subscribes to its notify characteristic
// and hands every notification to onPayload. It reconnects after a
// disconnect, waiting retry.Next between attempts. retry is only used from
// the Run goroutine.
type BLECentral struct {
	name      string
	onPayload func([]byte)
	retry     Retrier
	log       *logrus.Entry

	mu         sync.Mutex
	connecting bool
	peer       gatt.Peripheral
}

// NewBLECentral returns a central looking for devices advertising name.
func NewBLECentral(name string, onPayload func([]byte), retry Retrier) *BLECentral {
	return &BLECentral{
		name:      name,
		onPayload: onPayload,
		retry:     retry,
		log:       logging.For("ble-central"),
	}
}

func (c *BLECentral) onDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	if !MatchesAdvertisement(a, c.name) {
		return
	}
	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	p.Device().StopScanning()
	c.log.WithFields(logrus.Fields{"id": p.ID(), "name": a.LocalName, "rssi": rssi}).Info("found device")
	p.Device().Connect(p)
}

// subscribe finds the notify characteristic on p and enables notifications.
func (c *BLECentral) subscribe(p gatt.Peripheral) error {
	if err := p.SetMTU(centralMTU); err != nil {
		c.log.WithError(err).Warn("set mtu failed, data frames may not fit")
	}

	ss, err := p.DiscoverServices([]gatt.UUID{ServiceUUID})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	var svc *gatt.Service
	for _, s := range ss {
		if s.UUID().Equal(ServiceUUID) {
			svc = s
		}
	}
	if svc == nil {
		return fmt.Errorf("service %s not found", ServiceUUID)
	}

	cs, err := p.DiscoverCharacteristics([]gatt.UUID{NotifyUUID}, svc)
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	var ch *gatt.Characteristic
	for _, x := range cs {
		if x.UUID().Equal(NotifyUUID) {
			ch = x
		}
	}
	if ch == nil {
		return fmt.Errorf("characteristic %s not found", NotifyUUID)
	}

	// the CCCD comes from descriptor discovery
	if _, err := p.DiscoverDescriptors(nil, ch); err != nil {
		return fmt.Errorf("discover descriptors: %w", err)
	}
	err = p.SetNotifyValue(ch, func(_ *gatt.Characteristic, b []byte, err error) {
		if err != nil {
			c.log.WithError(err).Debug("notification error")
			return
		}
		c.onPayload(b)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Run opens the HCI device and keeps a subscription alive until ctx is done.
func (c *BLECentral) Run(ctx context.Context) error {
	d, err := gatt.NewDevice(gatt.LnxMaxConnections(1), gatt.LnxDeviceID(-1, true))
	if err != nil {
		return fmt.Errorf("ble: open device: %w", err)
	}

	powered := make(chan struct{}, 1)
	lost := make(chan struct{}, 1)
	listening := make(chan struct{}, 1)
	signal := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	d.Handle(
		gatt.PeripheralDiscovered(c.onDiscovered),
		gatt.PeripheralConnected(func(p gatt.Peripheral, err error) {
			if err != nil {
				c.log.WithError(err).Warn("connection error")
				signal(lost)
				return
			}
			c.mu.Lock()
			c.peer = p
			c.mu.Unlock()
			if err := c.subscribe(p); err != nil {
				c.log.WithError(err).Warn("subscribe failed")
				p.Device().CancelConnection(p)
				return
			}
			c.log.WithField("id", p.ID()).Info("connected, listening")
			signal(listening)
		}),
		gatt.PeripheralDisconnected(func(p gatt.Peripheral, err error) {
			c.log.WithField("id", p.ID()).Info("disconnected")
			signal(lost)
		}),
	)

	err = d.Init(func(d gatt.Device, s gatt.State) {
		c.log.WithField("state", s).Debug("adapter state")
		if s == gatt.StatePoweredOn {
			signal(powered)
		}
	})
	if err != nil {
		return fmt.Errorf("ble: init: %w", err)
	}

	scan := func() {
		c.mu.Lock()
		c.connecting, c.peer = false, nil
		c.mu.Unlock()
		c.log.WithField("name", c.name).Info("scanning")
		d.Scan(nil, false)
	}

	for {
		select {
		case <-ctx.Done():
			d.StopScanning()
			c.mu.Lock()
			peer := c.peer
			c.mu.Unlock()
			if peer != nil {
				d.CancelConnection(peer)
			}
			return nil
		case <-powered:
			scan()
		case <-listening:
			c.retry.Reset()
		case <-lost:
			wait := c.retry.Next()
			c.log.WithField("wait", wait).Info("reconnecting")
			if err := sleepCtx(ctx, wait); err != nil {
				continue
			}
			scan()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
