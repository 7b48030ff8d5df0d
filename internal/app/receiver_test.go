package app

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/session"
	"github.com/relabs-tech/swingsense/internal/transport"
	"github.com/relabs-tech/swingsense/internal/wire"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatPayload(t *testing.T) {
	swing := imu.Sample{Ax: 0.5, Ay: -1, Az: 0.25, Gx: 120.5, Gy: -3, Gz: 0}

	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"start", wire.Header(true), "REC | started (0x01)"},
		{"stop", wire.Header(false), "REC | stopped (0x02)"},
		{"data", wire.EncodeSample(swing), "IMU | Accel:  0.5000 -1.0000  0.2500 | Gyro: 120.5000 -3.0000  0.0000"},
		{"unknown header", []byte{0x07}, "Notification: unexpected length=1 bytes -> 07"},
		{"odd length", []byte{0xde, 0xad, 0xbe}, "Notification: unexpected length=3 bytes -> deadbe"},
		{"empty", nil, "Notification: unexpected length=0 bytes -> "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPayload(tt.payload))
		})
	}
}

func TestBackoff(t *testing.T) {
	b := &Backoff{Initial: time.Second, Max: 30 * time.Second}
	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, b.Next())
	}
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i := range want {
		want[i] *= time.Second
	}
	assert.Equal(t, want, got)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestReceiver_RecordsSessions(t *testing.T) {
	rec, err := session.NewRecorder(t.TempDir())
	require.NoError(t, err)

	var out syncBuffer
	r := NewReceiver(&out, rec)

	r.Handle(wire.Header(true))
	r.Handle(wire.EncodeSample(imu.Sample{Ax: 1}))
	r.Handle([]byte{0xff, 0xff})
	r.Handle(wire.EncodeSample(imu.Sample{Gz: -2.5}))
	r.Handle(wire.Header(false))
	require.NoError(t, r.Close())

	sessions := r.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].Rows)

	data, err := os.ReadFile(sessions[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "seq,ax,ay,az,gx,gy,gz\n0,1,0,0,0,0,0\n1,0,0,0,0,0,-2.5\n", string(data))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "Notification: unexpected length=2"))
}

func TestReceiver_WithoutRecorder(t *testing.T) {
	var out syncBuffer
	r := NewReceiver(&out, nil)
	r.Handle(wire.Header(true))
	assert.Nil(t, r.Sessions())
	assert.NoError(t, r.Close())
	assert.Equal(t, "REC | started (0x01)\n", out.String())
}

func TestReceiver_CloseReportsOpenSession(t *testing.T) {
	hook := logtest.NewGlobal()
	rec, err := session.NewRecorder(t.TempDir())
	require.NoError(t, err)
	r := NewReceiver(&syncBuffer{}, rec)

	r.Handle(wire.EncodeSample(imu.Sample{Ax: 1}))
	r.Handle(wire.Header(true))
	r.Handle(wire.EncodeSample(imu.Sample{Ax: 2}))
	require.NoError(t, r.Close())

	sessions := r.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].Rows)

	open := findEntry(hook, "closing session without a stop header")
	require.NotNil(t, open)
	assert.Equal(t, logrus.WarnLevel, open.Level)
	assert.Equal(t, sessions[0].ID, open.Data["session"])
	assert.Equal(t, 1, open.Data["rows"])

	dropped := findEntry(hook, "data frames received outside a session")
	require.NotNil(t, dropped)
	assert.Equal(t, 1, dropped.Data["dropped"])
}

func findEntry(hook *logtest.Hook, msg string) *logrus.Entry {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return e
		}
	}
	return nil
}

type mqttToken struct {
	err  error
	done chan struct{}
}

func finishedToken(err error) *mqttToken {
	t := &mqttToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *mqttToken) Wait() bool                     { <-t.done; return true }
func (t *mqttToken) WaitTimeout(time.Duration) bool { return true }
func (t *mqttToken) Done() <-chan struct{}          { return t.done }
func (t *mqttToken) Error() error                   { return t.err }

type mqttMessage struct {
	mqtt.Message
	payload []byte
}

func (m mqttMessage) Payload() []byte { return m.payload }

// mqttClient covers what the receiver calls; the embedded interface panics
// on anything else.
type mqttClient struct {
	mqtt.Client
	connectErr error
	subErr     error

	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	disconnected bool
}

func (c *mqttClient) Connect() mqtt.Token { return finishedToken(c.connectErr) }

func (c *mqttClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]mqtt.MessageHandler{}
	}
	c.handlers[topic] = h
	return finishedToken(c.subErr)
}

func (c *mqttClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func TestConsumeMQTT_LogsConnectFailure(t *testing.T) {
	hook := logtest.NewGlobal()
	c := &mqttClient{connectErr: errors.New("not authorized")}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	consumeMQTT(ctx, c, NewReceiver(&syncBuffer{}, nil))

	e := findEntry(hook, "connect failed")
	require.NotNil(t, e)
	assert.Equal(t, logrus.ErrorLevel, e.Level)
	assert.EqualError(t, e.Data[logrus.ErrorKey].(error), "not authorized")
	assert.True(t, c.disconnected)
}

func TestSubscribeOnConnect(t *testing.T) {
	hook := logtest.NewGlobal()
	var out syncBuffer
	r := NewReceiver(&out, nil)

	c := &mqttClient{}
	subscribeOnConnect("swingsense/imu", r)(c)
	require.Eventually(t, func() bool { return findEntry(hook, "subscribed") != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "swingsense/imu", findEntry(hook, "subscribed").Data["topic"])

	c.mu.Lock()
	h := c.handlers["swingsense/imu"]
	c.mu.Unlock()
	require.NotNil(t, h)
	h(c, mqttMessage{payload: wire.Header(true)})
	assert.Equal(t, "REC | started (0x01)\n", out.String())

	failing := &mqttClient{subErr: errors.New("not authorized")}
	subscribeOnConnect("swingsense/imu", r)(failing)
	require.Eventually(t, func() bool { return findEntry(hook, "subscribe failed") != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, logrus.ErrorLevel, findEntry(hook, "subscribe failed").Level)
}

func TestReceiveWS_FromMonitor(t *testing.T) {
	mon := transport.NewMonitor("", nil, nil)
	srv := httptest.NewServer(mon.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	var out syncBuffer
	r := NewReceiver(&out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- receiveWS(ctx, url, r, &Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond})
	}()

	require.Eventually(t, func() bool { return mon.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mon.Notify(wire.Header(true)))
	require.NoError(t, mon.Notify(wire.EncodeSample(imu.Sample{Az: 1})))
	require.NoError(t, mon.Notify(wire.Header(false)))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "REC | stopped")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop")
	}

	assert.Equal(t,
		"REC | started (0x01)\n"+
			"IMU | Accel:  0.0000  0.0000  1.0000 | Gyro:  0.0000  0.0000  0.0000\n"+
			"REC | stopped (0x02)\n",
		out.String())
}

func TestReceiveWS_RetriesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out syncBuffer
	err := receiveWS(ctx, "ws://127.0.0.1:1/ws", NewReceiver(&out, nil),
		&Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond})
	assert.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestRunReceiver_UnknownSource(t *testing.T) {
	err := RunReceiver(context.Background(), ReceiverConfig{Source: "espnow"}, &syncBuffer{})
	assert.EqualError(t, err, `unknown receiver source "espnow"`)
}
