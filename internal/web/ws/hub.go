// Package ws streams monitor readings to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/sirupsen/logrus"
)

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub fans readings out to every connected client.
type Hub struct {
	clients map[*websocket.Conn]*client
	mu      sync.RWMutex
	log     *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		log:     log,
	}
}

// register adds a connection.
func (h *Hub) register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &client{conn: conn}
	h.clients[conn] = c
	h.log.WithField("clients", len(h.clients)).Debug("[WS] client registered")
	return c
}

// unregister removes a connection.
func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.log.WithField("clients", len(h.clients)).Debug("[WS] client unregistered")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends message to all clients, dropping the ones that fail.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, message); err != nil {
			h.log.WithError(err).Debug("[WS] failed to send to client")
			h.unregister(c.conn)
			c.conn.Close()
		}
	}
}

// BroadcastReading sends one monitor reading as JSON.
func (h *Hub) BroadcastReading(r pipeline.Reading) {
	if h.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		h.log.WithError(err).Error("[WS] failed to marshal reading")
		return
	}
	h.Broadcast(data)
}

// Run forwards readings until ctx is done or the channel closes.
func (h *Hub) Run(ctx context.Context, readings <-chan pipeline.Reading) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			h.BroadcastReading(r)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	clear(h.clients)
}
