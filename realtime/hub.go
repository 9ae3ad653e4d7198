// Package realtime streams lookup snapshots to websocket clients.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"weather-insight/models"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 25 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// Event is the message written to clients
type Event struct {
	Type     string          `json:"type"`
	Snapshot models.Snapshot `json:"snapshot"`
	At       time.Time       `json:"at"`
}

// Hub fans snapshots out to connected clients. A client receives the state at
// connect time, then every snapshot broadcast afterwards.
type Hub struct {
	upgrader websocket.Upgrader
	current  func() models.Snapshot
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte // last broadcast event
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub; current supplies the snapshot sent to new clients.
func NewHub(current func() models.Snapshot, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		current: current,
		logger:  logger,
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.addClient(c)

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast delivers snap to every client. Clients whose buffer is full are dropped.
func (h *Hub) Broadcast(snap models.Snapshot) {
	b, err := encode(snap)
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = b
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("dropping slow websocket client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			close(c.send)
			_ = c.conn.Close()
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func encode(snap models.Snapshot) ([]byte, error) {
	return json.Marshal(Event{Type: "snapshot", Snapshot: snap, At: time.Now().UTC()})
}

// addClient registers c and queues its first event. current is read before
// taking h.mu; once anything has been broadcast the latest broadcast is sent
// instead, so the first event never runs ahead of the broadcast order.
func (h *Hub) addClient(c *client) {
	var first []byte
	if h.current != nil {
		if b, err := encode(h.current()); err == nil {
			first = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest != nil {
		first = h.latest
	}
	if first != nil {
		c.send <- first
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
}

func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
