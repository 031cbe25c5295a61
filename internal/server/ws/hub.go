// Package ws broadcasts committed engine events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryptarena/arenad/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must stay under pongWait
	maxMessageSize = 4096
	sendBufferSize = 256
)

// upgrader accepts any origin; the CORS middleware in front of the mux is the
// browser-facing gate.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[domain.EventType]bool // empty means all events
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to narrow or widen its
// event subscription, e.g. {"action":"subscribe","events":["claimed"]}.
type subscribeMsg struct {
	Action string             `json:"action"` // "subscribe" or "unsubscribe"
	Events []domain.EventType `json:"events"`
}

// Hub manages connected WebSocket clients and fans committed engine events
// out to them. It implements domain.EventSink; Publish never blocks the
// engine, slow clients drop messages instead.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

// NewHub creates a WebSocket hub.
func NewHub(mode string, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
		mode:       mode,
		startedAt:  time.Now().UTC(),
	}
}

// Publish implements domain.EventSink. The event is serialized once and
// queued for broadcast; a full hub queue drops the event.
func (h *Hub) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("ws: dropping event, broadcast queue full",
			slog.String("type", string(ev.Type)),
		)
	}
}

// Run is the hub's select loop: registration, disconnects, and fan-out. It
// exits when the context is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			n := len(h.clients)
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				n--
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case data := <-h.broadcast:
			h.fanOut(data)
		}
	}
}

// fanOut delivers one serialized event to every subscribed client. A client
// whose send buffer is full loses the message rather than stalling the hub.
func (h *Hub) fanOut(data []byte) {
	eventType := eventTypeOf(data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(eventType) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// eventTypeOf peeks at the serialized event's type field for routing.
func eventTypeOf(data []byte) domain.EventType {
	var peek struct {
		Type domain.EventType `json:"type"`
	}
	_ = json.Unmarshal(data, &peek)
	return peek.Type
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[domain.EventType]bool),
	}

	h.register <- c
	c.sendInitialStatus()

	go c.writeLoop()
	go c.readLoop()
}

// readLoop consumes frames from the connection. Inbound traffic is limited to
// subscription management; anything else is ignored. Exiting the loop
// unregisters the client.
func (c *client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr == nil && sub.Action != "" {
			c.applySubscription(sub)
		}
	}
}

// applySubscription updates the client's event filter. A client with no
// explicit subscriptions receives every event.
func (c *client) applySubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range msg.Events {
		if msg.Action == "subscribe" {
			c.subs[ev] = true
		} else if msg.Action == "unsubscribe" {
			delete(c.subs, ev)
		}
	}
}

// wants reports whether the client should receive an event of this type.
func (c *client) wants(eventType domain.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[eventType]
}

// sendInitialStatus pushes a small JSON envelope so clients can immediately
// mark the connection as healthy even when no arena events are flowing yet.
func (c *client) sendInitialStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type": "daemon_status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"ws_connected":   true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// writeLoop drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

var _ domain.EventSink = (*Hub)(nil)
