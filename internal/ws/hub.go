// Package ws provides a lightweight WebSocket pub/sub hub.
// Components broadcast JSON events through the hub, and every connected client
// whose filter accepts the event type receives it in real time. The hub also
// handles ping/pong keepalives so stale connections get cleaned up
// automatically.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// client is one connection plus the event types it asked for. An empty
// filter accepts everything.
type client struct {
	conn  *websocket.Conn
	types map[string]struct{}
}

func (c *client) wants(typ string) bool {
	if len(c.types) == 0 {
		return true
	}
	_, ok := c.types[typ]
	return ok
}

type message struct {
	typ  string
	data []byte
}

// Hub manages WebSocket client connections and fans out broadcast messages
// to them. It is safe for concurrent use; register, unregister, and
// broadcast all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan message
	done       chan struct{} // closed when Run returns
	upgrader   websocket.Upgrader
	count      atomic.Int64
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients reports how many connections are currently registered.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.drop(conn)
			}
			return

		case c := <-h.register:
			h.clients[c.conn] = c
			h.count.Store(int64(len(h.clients)))

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			for conn, c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.drop(conn)
				}
			}

		case <-ping.C:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(conn)
				}
			}
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.count.Store(int64(len(h.clients)))
	}
	_ = conn.Close()
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub. The optional
// ?types=a,b query restricts the connection to those event types.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := ParseTypes(r.URL.Query().Get("types"))

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			return
		}
		if h.stopped() {
			_ = conn.Close()
			return
		}
		select {
		case h.register <- &client{conn: conn, types: types}:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
					_ = conn.Close()
				}
			}()
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ParseTypes turns a comma separated filter into a set. Blank entries are
// ignored; nil means no filter.
func ParseTypes(raw string) map[string]struct{} {
	var set map[string]struct{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
		}
		set[t] = struct{}{}
	}
	return set
}

// BroadcastJSON marshals v to JSON and queues it for delivery to all
// interested clients. Filtering uses the top-level "type" field. If the
// broadcast channel is full the message is silently dropped to avoid
// blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &head)

	select {
	case h.broadcast <- message{typ: head.Type, data: b}:
	default:
	}
}
