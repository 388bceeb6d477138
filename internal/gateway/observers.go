package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/store"
)

// observerSendBuffer bounds how far behind a dashboard client may fall
// before it is dropped.
const observerSendBuffer = 32

// ObserverEvent is the envelope pushed to dashboard WebSocket clients.
type ObserverEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans conversation and call updates out to dashboard WebSocket
// clients. Broadcasts never block: a client whose buffer is full is
// disconnected instead of stalling everyone else.
type Hub struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[*observerClient]struct{}
	closed  bool
}

type observerClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty observer hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*observerClient]struct{}),
	}
}

// Attach registers an upgraded connection and services it until it
// drops.
func (h *Hub) Attach(conn *websocket.Conn) {
	c := &observerClient{
		conn: conn,
		send: make(chan []byte, observerSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("observers", n).Msg("observer attached")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop drains the client's send buffer onto the socket.
func (h *Hub) writeLoop(c *observerClient) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.detach(c)
			return
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames; its job is noticing disconnects.
func (h *Hub) readLoop(c *observerClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.detach(c)
			return
		}
	}
}

func (h *Hub) detach(c *observerClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		h.log.Debug().Msg("observer detached")
	}
}

// Count reports connected observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every observer, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*observerClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*observerClient]struct{})
	h.closed = true
	for _, c := range clients {
		close(c.send)
	}
	h.mu.Unlock()
}

// BroadcastConversation implements engine.Broadcaster.
func (h *Hub) BroadcastConversation(c domain.Conversation) {
	h.broadcast(ObserverEvent{Type: "conversation.updated", Payload: c, Timestamp: time.Now()})
}

// BroadcastCall implements voice.CallObserver.
func (h *Hub) BroadcastCall(rec store.CallRecord) {
	h.broadcast(ObserverEvent{Type: "call.completed", Payload: rec, Timestamp: time.Now()})
}

func (h *Hub) broadcast(event ObserverEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn().Err(err).Str("type", event.Type).Msg("failed to encode observer event")
		return
	}

	h.mu.Lock()
	var slow []*observerClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range slow {
		c.conn.Close()
		h.log.Warn().Msg("dropped slow observer")
	}
}
