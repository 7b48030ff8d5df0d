package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePort feeds reads from a channel and records writes.
type pipePort struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out bytes.Buffer
}

func newPipePort() *pipePort {
	return &pipePort{in: make(chan []byte), closed: make(chan struct{})}
}

func (p *pipePort) Read(b []byte) (int, error) {
	select {
	case data := <-p.in:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *pipePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipePort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.out.Bytes()...)
}

func TestSerial_NotifyFramesByLength(t *testing.T) {
	port := newPipePort()
	s := NewSerial(port, nil)

	require.NoError(t, s.Notify([]byte{0x01}))
	data := bytes.Repeat([]byte{0xAB}, 24)
	require.NoError(t, s.Notify(data))

	want := append([]byte{1, 0x01, 24}, data...)
	assert.Equal(t, want, port.written())

	assert.Error(t, s.Notify(make([]byte, 256)))
}

func TestSerial_RunDeliversEachByteAsControl(t *testing.T) {
	port := newPipePort()
	got := make(chan []byte, 8)
	s := NewSerial(port, func(msg []byte) { got <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	port.in <- []byte{0x00, 0x01}
	assert.Equal(t, []byte{0x00}, <-got)
	assert.Equal(t, []byte{0x01}, <-got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.ErrorIs(t, s.Notify([]byte{0x01}), io.ErrClosedPipe)
}

type brokenPort struct{ *pipePort }

func (b *brokenPort) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestSerial_RunReturnsReadErrors(t *testing.T) {
	port := &brokenPort{pipePort: newPipePort()}
	s := NewSerial(port, nil)

	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "serial: read: device unplugged")
}
