// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 64
	writeWait         = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true // local network debugging tool
	},
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Monitor is an HTTP server for bench work: /ws streams every payload as a
// binary message and accepts binary control messages, /api/status reports
// the device state as JSON.
type Monitor struct {
	addr      string
	onControl ControlHandler
	status    StatusFunc
	log       *logrus.Entry

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	dropped uint64
}

// NewMonitor returns a monitor listening on addr once Run is called.
func NewMonitor(addr string, onControl ControlHandler, status StatusFunc) *Monitor {
	return &Monitor{
		addr:      addr,
		onControl: onControl,
		status:    status,
		log:       logging.For("monitor"),
		clients:   make(map[*wsClient]struct{}),
	}
}

func (m *Monitor) Name() string { return "ws" }

// Clients returns the number of connected websocket clients.
func (m *Monitor) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Dropped returns how many payloads were discarded for slow clients.
func (m *Monitor) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Stats reports connected clients and dropped payloads.
func (m *Monitor) Stats() LinkStats {
	return LinkStats{Name: m.Name(), Peers: m.Clients(), Dropped: m.Dropped()}
}

// Notify queues payload for every client without blocking. Slow clients
// lose payloads rather than stalling the sampling loop.
func (m *Monitor) Notify(payload []byte) error {
	msg := append([]byte(nil), payload...)

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		select {
		case c.send <- msg:
		default:
			m.dropped++
		}
	}
	return nil
}

// Handler returns the monitor's routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/api/status", m.handleStatus)
	return mux
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	if m.status == nil {
		http.Error(w, "no status", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.status()); err != nil {
		m.log.WithError(err).Debug("status encode")
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithError(err).Warn("websocket upgrade")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, messageBufferSize)}

	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	m.log.WithField("remote", r.RemoteAddr).Info("client joined")

	go m.writeLoop(c)
	m.readLoop(c)

	m.mu.Lock()
	delete(m.clients, c)
	close(c.send)
	m.mu.Unlock()
	m.log.WithField("remote", r.RemoteAddr).Info("client left")
}

func (m *Monitor) readLoop(c *wsClient) {
	defer c.conn.Close()
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.WithError(err).Debug("websocket read")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if m.onControl != nil {
			m.onControl(data)
		}
	}
}

func (m *Monitor) writeLoop(c *wsClient) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			m.log.WithError(err).Debug("websocket write")
			c.conn.Close()
			// drain until the read loop notices and closes send
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Run serves until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	srv := &http.Server{Addr: m.addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		m.log.WithField("addr", m.addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("monitor: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	// Shutdown does not touch hijacked connections.
	m.mu.Lock()
	for c := range m.clients {
		c.conn.Close()
	}
	m.mu.Unlock()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor: shutdown: %w", err)
	}
	return nil
}
