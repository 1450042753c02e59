// Package streaming bridges the in-process event bus to WebSocket clients,
// so a browser or CLI watching a task sees its agent events live.
package streaming

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/bus"
	"github.com/jhinpan/cc-boss/internal/logging"
)

// clientSendBuffer bounds how many unsent messages accumulate per client;
// once it is full, further messages for that client are dropped (the
// connection itself stays open).
const clientSendBuffer = 256

// Client is one WebSocket connection watching zero or more tasks.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	subs      map[int64]*bus.Subscription
	allSub    *bus.Subscription
	closeOnce sync.Once
}

// Hub owns the set of connected clients and relays bus events to them.
type Hub struct {
	bus    *bus.Bus
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub builds a Hub bridging eventBus to WebSocket clients.
func NewHub(eventBus *bus.Bus, log *logging.Logger) *Hub {
	return &Hub{bus: eventBus, logger: log, clients: make(map[*Client]bool)}
}

// Register wraps conn as a tracked Client and starts its write pump.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		subs: make(map[int64]*bus.Subscription),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	return c
}

// Unregister tears down a client's subscriptions and connection. Safe to
// call more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		c.mu.Lock()
		for _, sub := range c.subs {
			sub.Unsubscribe()
		}
		c.subs = nil
		if c.allSub != nil {
			c.allSub.Unsubscribe()
			c.allSub = nil
		}
		c.mu.Unlock()

		close(c.send)
		_ = c.conn.Close()
	})
}

// Subscribe attaches a client to taskID's event stream. Safe to call more
// than once for the same task; a second call is a no-op.
func (h *Hub) Subscribe(c *Client, taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[taskID]; ok {
		return
	}

	sub := h.bus.Subscribe(taskID)
	c.subs[taskID] = sub
	go h.relay(c, sub)
}

// SubscribeAll attaches a client to every task's event stream. Safe to call
// more than once; a second call is a no-op.
func (h *Hub) SubscribeAll(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allSub != nil {
		return
	}

	sub := h.bus.SubscribeAll()
	c.allSub = sub
	go h.relay(c, sub)
}

// relay forwards every event on sub to c's send channel, marshaled as JSON,
// until sub is unsubscribed.
func (h *Hub) relay(c *Client, sub *bus.Subscription) {
	for evt := range sub.Events() {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client is too slow to keep up; drop this message rather
			// than block the worker loop publishing it.
		}
	}
}

// writePump drains a client's send channel onto its WebSocket connection
// until the channel is closed (by Unregister).
func (h *Hub) writePump(c *Client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed, dropping client", zap.String("client_id", c.id), zap.Error(err))
			h.Unregister(c)
			return
		}
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
