// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package events fans out archive change notifications to WebSocket clients.
package events

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/TurbineOne/detection-archive/pkg/metrics"
)

// Event types.
const (
	TypeCatalogChanged  = "catalog.changed"
	TypeDetectorStarted = "detector.started"
	TypeDetectorStopped = "detector.stopped"
	TypeDetectorExited  = "detector.exited"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendQueue      = 64

	lClients = "clients"
	lType    = "type"
)

// Event is one message on the feed.
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

// Publisher accepts events. Publishing never blocks.
type Publisher interface {
	Publish(eventType string, data interface{})
}

// Discard is a Publisher that drops everything.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(string, interface{}) {}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks connected clients and broadcasts events to them. Clients that
// cannot keep up are dropped rather than slowing the publisher down.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]*client
	nextID  atomic.Uint64

	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

// NewHub returns a hub accepting browser connections from origins. A "*"
// entry accepts any origin.
func NewHub(origins []string, logger *zerolog.Logger) *Hub {
	l := logger.With().Str("pkg", "events").Logger()

	h := &Hub{
		clients: make(map[uint64]*client),
		log:     &l,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024, //nolint:mnd // Clients only send pongs.
		WriteBufferSize:  4096, //nolint:mnd // Events are small.
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if slices.Contains(origins, "*") {
				return true
			}

			return origin != "" && slices.Contains(origins, origin)
		},
	}

	return h
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Publish broadcasts an event to every connected client.
func (h *Hub) Publish(eventType string, data interface{}) {
	b, err := json.Marshal(Event{Type: eventType, Time: time.Now().UTC(), Data: data})
	if err != nil {
		h.log.Error().Err(err).Str(lType, eventType).Msg("failed to marshal event")

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.log.Warn().Uint64("client", id).Msg("dropping slow event client")
			c.close()
			delete(h.clients, id)
		}
	}

	metrics.EventClients.Set(float64(len(h.clients)))
}

// ServeHTTP upgrades the request and streams events until either side leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the request.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")

		return
	}

	c := &client{id: h.nextID.Add(1), conn: conn, send: make(chan []byte, sendQueue)}

	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.EventClients.Set(float64(n))
	h.log.Info().Int(lClients, n).Msg("event client connected")

	go h.writePump(c)
	h.readPump(c)
}

// Serve waits for ctx and then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	h.mu.Unlock()

	metrics.EventClients.Set(0)
	h.log.Info().Msg("event hub stopped")

	return ctx.Err()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.EventClients.Set(float64(n))
	h.log.Info().Int(lClients, n).Msg("event client disconnected")
}

// readPump only exists to process control frames and notice the close.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("unexpected websocket close")
			}

			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
