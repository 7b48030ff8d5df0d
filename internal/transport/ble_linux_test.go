package transport

import (
	"testing"

	"github.com/paypal/gatt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBLE_ServiceLayout(t *testing.T) {
	b := NewBLE("SwingSense", nil)
	svc := b.service()

	assert.True(t, svc.UUID().Equal(ServiceUUID))
	chars := svc.Characteristics()
	require.Len(t, chars, 2)

	assert.True(t, chars[0].UUID().Equal(NotifyUUID))
	assert.NotZero(t, chars[0].Properties()&gatt.CharNotify)

	assert.True(t, chars[1].UUID().Equal(ControlUUID))
	assert.NotZero(t, chars[1].Properties()&gatt.CharWrite)
}

func TestBLE_WriteIsControl(t *testing.T) {
	var got [][]byte
	b := NewBLE("SwingSense", func(msg []byte) { got = append(got, msg) })

	assert.EqualValues(t, gatt.StatusSuccess, b.handleWrite([]byte{0x00}))
	assert.EqualValues(t, gatt.StatusSuccess, b.handleWrite(nil))
	assert.Equal(t, [][]byte{{0x00}, nil}, got)
}

func TestBLE_NotifyWithoutCentral(t *testing.T) {
	b := NewBLE("SwingSense", nil)
	assert.False(t, b.Subscribed())
	assert.Equal(t, LinkStats{Name: "ble"}, b.Stats())
	assert.NoError(t, b.Notify([]byte{0x01}))

	n := &fakeNotifier{cap: 244}
	b.slot.set(n)
	assert.True(t, b.Subscribed())
	assert.Equal(t, LinkStats{Name: "ble", Peers: 1}, b.Stats())
	require.NoError(t, b.Notify(make([]byte, 24)))
	assert.Len(t, n.writes, 1)
}

func TestBLE_AdvertisingPacket(t *testing.T) {
	a := advPacket("SwingSense")
	raw := a.Bytes()

	want := []byte{
		0x02, 0x01, 0x06, // flags
		0x03, 0xFF, 0x12, 0x34, // manufacturer data
		0x03, 0x03, 0x00, 0xFF, // complete 16-bit service list
		0x0B, 0x09, 'S', 'w', 'i', 'n', 'g', 'S', 'e', 'n', 's', 'e',
	}
	assert.Equal(t, want, raw[:a.Len()])
}
