// Package sink provides snapshot consumers: a WebSocket broadcast hub for
// visualization clients, a PostgreSQL attack-event writer, and a Redis
// publisher for detached status consumers.
package sink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

const (
	clientBuffer  = 8
	hubWriteWait  = 10 * time.Second
	hubPingPeriod = 30 * time.Second
)

// Hub broadcasts each published snapshot as one JSON message to every
// connected WebSocket client. Slow clients are dropped rather than allowed
// to delay the poll loop. It implements both monitor.Sink and http.Handler.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
	last    []byte // most recent payload, replayed to new clients
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The GUI is served from anywhere in the lab; this is not an
			// internet-facing endpoint.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// OnSnapshot marshals the snapshot once and fans it out. Sends are
// non-blocking: a client with a full buffer is disconnected.
func (h *Hub) OnSnapshot(snap models.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("hub: marshal snapshot: %v", err)
		return
	}

	h.mu.Lock()
	h.last = payload
	var dropped []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range dropped {
		c.conn.Close()
		log.Printf("hub: dropped slow client %s", c.conn.RemoteAddr())
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams snapshots until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("hub: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	log.Printf("hub: client connected from %s", conn.RemoteAddr())

	go c.writeLoop()
	c.readLoop(h)
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(hubPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound messages; the stream is one-way. It exists to
// notice disconnects and unregister the client.
func (c *client) readLoop(h *Hub) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetPongHandler(func(string) error { return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
