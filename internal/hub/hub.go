// Package hub manages sets of live websocket connections and performs
// best-effort fan-out to them. The supervisor dashboard channel and the
// agent channel each get their own Hub instance.
package hub

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds every send so one slow consumer cannot
// stall a broadcast.
const DefaultWriteTimeout = 10 * time.Second

// Conn is the transport surface the hub needs from a connection.
// *WSConn satisfies it in production; tests use fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Hub tracks the live connections of one channel. Membership changes on
// connect, disconnect, and send failure; there is no ordering guarantee
// across members.
type Hub struct {
	name string

	mu    sync.Mutex
	conns map[Conn]struct{}
}

// New creates an empty hub. The name only labels log lines.
func New(name string) *Hub {
	return &Hub{name: name, conns: make(map[Conn]struct{})}
}

// Connect adds a connection to the set.
func (h *Hub) Connect(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()
	log.Printf("hub: %s client connected (total %d)", h.name, total)
}

// Disconnect removes a connection from the set. Removing an absent
// connection is a no-op.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
	}
	total := len(h.conns)
	h.mu.Unlock()
	if ok {
		log.Printf("hub: %s client disconnected (total %d)", h.name, total)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends msg to every member of the current set. A failed send
// evicts that member as presumed dead; the remaining members still
// receive the message. No delivery acknowledgment, no retry.
func (h *Hub) Broadcast(msg interface{}) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	if len(conns) == 0 {
		return
	}
	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("hub: %s send failed, evicting connection: %v", h.name, err)
			h.Disconnect(c)
			c.Close()
		}
	}
}

// WSConn wraps a gorilla websocket connection with write serialization
// and a per-send deadline. Broadcasts, snapshots, and keepalive pings
// write from different goroutines; gorilla permits one writer at a time.
type WSConn struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	timeout time.Duration
}

// NewWSConn wraps ws. timeout <= 0 selects DefaultWriteTimeout.
func NewWSConn(ws *websocket.Conn, timeout time.Duration) *WSConn {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &WSConn{ws: ws, timeout: timeout}
}

// WriteJSON sends v as a JSON text message.
func (c *WSConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.ws.WriteJSON(v)
}

// WriteText sends a plain text message, used for the literal "pong"
// heartbeat reply.
func (c *WSConn) WriteText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(s))
}

// Close closes the underlying connection.
func (c *WSConn) Close() error {
	return c.ws.Close()
}
