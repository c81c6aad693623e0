// Package statusfeed serves the sync state to local UIs over HTTP and
// WebSocket.
package statusfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kshitijomkar/ledger/internal/logging"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Event types sent to clients. Engine notifications are sent as
// "sync.<event type>".
const (
	EventState = "sync.state"
	eventPong  = "pong"
	eventAck   = "subscribe_ack"
)

// Envelope wraps every message sent to a client.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu            sync.Mutex
	subscriptions map[string]bool
}

func (c *client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type message struct {
	eventType string
	payload   []byte
	// to restricts the message to one client.
	to *client
}

// Hub keeps the connected clients and fans messages out to them.
type Hub struct {
	clients    map[uint64]*client
	broadcast  chan message
	register   chan *client
	unregister chan *client
	direct     chan message
	done       chan struct{}
	nextID     atomic.Uint64
	count      atomic.Int64
	upgrader   websocket.Upgrader
}

// NewHub creates a Hub accepting connections from allowedOrigins. Requests
// without an Origin header are always accepted.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[uint64]*client),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		direct:     make(chan message),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
		},
	}
	return h
}

// Run manages registrations and broadcasts until ctx is done. A Hub runs
// once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.count.Store(0)
			return

		case msg := <-h.direct:
			if _, ok := h.clients[msg.to.id]; !ok {
				continue
			}
			select {
			case msg.to.send <- msg.payload:
			default:
			}

		case c := <-h.register:
			h.clients[c.id] = c
			h.count.Store(int64(len(h.clients)))
			logging.Debug("Status client connected", map[string]interface{}{"client_id": c.id, "total": len(h.clients)})

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.count.Store(int64(len(h.clients)))
			logging.Debug("Status client disconnected", map[string]interface{}{"client_id": c.id, "total": len(h.clients)})

		case msg := <-h.broadcast:
			for id, c := range h.clients {
				if !c.wants(msg.eventType) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// Slow client.
					delete(h.clients, id)
					close(c.send)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Broadcast sends a message to every client subscribed to eventType. It
// never blocks; messages are dropped when the hub is backed up.
func (h *Hub) Broadcast(eventType string, data any) {
	payload, err := encode(eventType, data)
	if err != nil {
		logging.Error("Failed to encode status message", err, map[string]interface{}{"type": eventType})
		return
	}
	select {
	case h.broadcast <- message{eventType: eventType, payload: payload}:
	default:
		logging.Warn("Status feed backed up, dropping message", map[string]interface{}{"type": eventType})
	}
}

// OnSyncEvent forwards engine notifications to clients.
func (h *Hub) OnSyncEvent(event syncpkg.SyncEvent) {
	h.Broadcast("sync."+string(event.Type), event)
}

// Forward broadcasts observer snapshots until ctx is done.
func (h *Hub) Forward(ctx context.Context, observer *connectivity.Observer) {
	states, cancel := observer.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			h.Broadcast(EventState, st)
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{
		id:            h.nextID.Add(1),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		hub:           h,
		subscriptions: make(map[string]bool),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func encode(eventType string, data any) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

type clientRequest struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

// readPump handles subscribe, unsubscribe and ping requests.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		switch req.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range req.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(eventAck, req.Events)
		case "unsubscribe":
			c.mu.Lock()
			for _, e := range req.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()
		case "ping":
			c.reply(eventPong, nil)
		}
	}
}

// reply sends a response to this client only.
func (c *client) reply(eventType string, data any) {
	payload, err := encode(eventType, data)
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- message{eventType: eventType, payload: payload, to: c}:
	case <-c.hub.done:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
