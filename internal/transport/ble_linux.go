// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"fmt"

	"github.com/paypal/gatt"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
)

// GATT layout of the wearable.
var (
	ServiceUUID = gatt.UUID16(0xFF00)
	NotifyUUID  = gatt.UUID16(0xFF01)
	ControlUUID = gatt.UUID16(0xFF02)
)

// ManufacturerData is the manufacturer specific field the wearable
// advertises. Receivers match on it before the name or the service.
var ManufacturerData = []byte{0x12, 0x34}

// LE general discoverable, BR/EDR not supported.
const advFlags = 0x02 | 0x04

// BLE is a GATT peripheral with one notify characteristic for payloads and
// one write characteristic for control. A single central is served at a
// time; advertising resumes when it disconnects.
type BLE struct {
	name      string
	onControl ControlHandler
	log       *logrus.Entry
	slot      notifySlot
}

// NewBLE returns a peripheral advertising as name.
func NewBLE(name string, onControl ControlHandler) *BLE {
	return &BLE{
		name:      name,
		onControl: onControl,
		log:       logging.For("ble"),
	}
}

func (b *BLE) Name() string { return "ble" }

// Notify pushes payload to the subscribed central, if any.
func (b *BLE) Notify(payload []byte) error { return b.slot.write(payload) }

// Subscribed reports whether a central has enabled notifications.
func (b *BLE) Subscribed() bool { return b.slot.subscribed() }

// Stats reports one peer while a central is subscribed.
func (b *BLE) Stats() LinkStats {
	st := LinkStats{Name: b.Name()}
	if b.Subscribed() {
		st.Peers = 1
	}
	return st
}

func (b *BLE) service() *gatt.Service {
	s := gatt.NewService(ServiceUUID)

	n := s.AddCharacteristic(NotifyUUID)
	n.AddDescriptor(gatt.UUID16(0x2901)).SetValue([]byte("IMU stream"))
	n.HandleNotifyFunc(func(r gatt.Request, nt gatt.Notifier) {
		b.log.WithFields(logrus.Fields{"central": r.Central.ID(), "cap": nt.Cap()}).Info("notifications enabled")
		b.slot.set(nt)
	})

	c := s.AddCharacteristic(ControlUUID)
	c.AddDescriptor(gatt.UUID16(0x2901)).SetValue([]byte("Stream control"))
	c.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		return b.handleWrite(data)
	})
	return s
}

func (b *BLE) handleWrite(data []byte) byte {
	if b.onControl != nil {
		b.onControl(data)
	}
	return gatt.StatusSuccess
}

// advPacket builds flags, manufacturer data, the service and the name, in
// that order. The name is shortened if it does not fit.
func advPacket(name string) *gatt.AdvPacket {
	a := &gatt.AdvPacket{}
	a.AppendFlags(advFlags)
	// the field carries the two bytes verbatim, as the company id slot
	a.AppendManufacturerData(uint16(ManufacturerData[1])<<8|uint16(ManufacturerData[0]), nil)
	a.AppendUUIDFit([]gatt.UUID{ServiceUUID})
	a.AppendName(name)
	return a
}

func (b *BLE) advertise(d gatt.Device) {
	if err := d.Advertise(advPacket(b.name)); err != nil {
		b.log.WithError(err).Warn("advertise failed")
		return
	}
	b.log.WithField("name", b.name).Info("advertising")
}

// Run opens the HCI device and serves until ctx is done.
func (b *BLE) Run(ctx context.Context) error {
	d, err := gatt.NewDevice(gatt.LnxMaxConnections(1), gatt.LnxDeviceID(-1, true))
	if err != nil {
		return fmt.Errorf("ble: open device: %w", err)
	}

	svc := b.service()
	d.Handle(
		gatt.CentralConnected(func(c gatt.Central) {
			b.log.WithField("central", c.ID()).Info("connected")
		}),
		gatt.CentralDisconnected(func(c gatt.Central) {
			b.log.WithField("central", c.ID()).Info("disconnected")
			b.slot.clear()
			b.advertise(d)
		}),
	)

	onState := func(d gatt.Device, s gatt.State) {
		b.log.WithField("state", s).Debug("adapter state")
		if s != gatt.StatePoweredOn {
			return
		}
		if err := d.AddService(svc); err != nil {
			b.log.WithError(err).Error("add service failed")
			return
		}
		b.advertise(d)
	}
	if err := d.Init(onState); err != nil {
		return fmt.Errorf("ble: init: %w", err)
	}

	<-ctx.Done()
	b.slot.clear()
	if err := d.StopAdvertising(); err != nil {
		b.log.WithError(err).Debug("stop advertising")
	}
	return nil
}
