package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// LatestReading returns the most recent reading, if any.
type LatestReading func() (pipeline.Reading, bool)

// Handler upgrades requests and registers them with the hub.
type Handler struct {
	hub      *Hub
	latest   LatestReading
	upgrader websocket.Upgrader
}

// NewHandler creates a handler. checkOrigin decides which browser origins
// may connect; latest may be nil.
func NewHandler(hub *Hub, latest LatestReading, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		hub:    hub,
		latest: latest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.WithError(err).Warn("[WS] upgrade failed")
		return
	}

	h.hub.log.WithField("remote", r.RemoteAddr).Info("[WS] new connection")
	c := h.hub.register(conn)

	if h.latest != nil {
		if reading, ok := h.latest(); ok {
			if data, err := json.Marshal(reading); err == nil {
				_ = c.write(websocket.TextMessage, data)
			}
		}
	}

	go h.readPump(c)
}

// readPump keeps the connection alive and notices when the client goes away.
func (h *Handler) readPump(c *client) {
	conn := c.conn
	defer func() {
		h.hub.unregister(conn)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.hub.log.WithError(err).Debug("[WS] read error")
			}
			return
		}
	}
}
