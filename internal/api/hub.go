package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is one frame pushed to stream subscribers.
type Message struct {
	Type    string `json:"type"` // "state" or "action"
	Tick    uint64 `json:"tick,omitempty"`
	Payload any    `json:"payload"`
}

// Hub fans session updates out to websocket subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscriber]struct{}
}

// Subscriber is one websocket client following a session.
type Subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *Subscriber) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers conn for a session's updates and starts its writer.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) *Subscriber {
	c := &Subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscriber]struct{})
	}
	h.subs[sessionID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	return c
}

// Unsubscribe removes c and stops its writer.
func (h *Hub) Unsubscribe(sessionID string, c *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// CloseSession disconnects every subscriber of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	set := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()
	for c := range set {
		c.close()
	}
}

// Subscribers returns how many clients follow a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Publish sends msg to every subscriber of a session. Clients whose buffer
// is full are dropped rather than blocking the caller.
func (h *Hub) Publish(sessionID string, msg Message) {
	h.mu.Lock()
	set := h.subs[sessionID]
	if len(set) == 0 {
		h.mu.Unlock()
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.mu.Unlock()
		slog.Error("stream marshal failed", "session", sessionID, "error", err)
		return
	}
	var slow []*Subscriber
	for c := range set {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(set, c)
	}
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
	h.mu.Unlock()

	for _, c := range slow {
		slog.Warn("dropping slow stream client", "session", sessionID)
		c.close()
	}
}

// SendTo queues msg for one subscriber of a session only. It reports false
// if c is no longer subscribed or its buffer is full.
func (h *Hub) SendTo(sessionID string, c *Subscriber, msg Message) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("stream marshal failed", "session", sessionID, "error", err)
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sessionID][c]; !ok {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames until the connection drops.
func (c *Subscriber) readLoop() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
