package viewer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/twenty48/game"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans live game snapshots out to websocket clients. New clients receive
// the latest snapshot immediately. Slow clients are dropped rather than
// blocking the game.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	upgrader websocket.Upgrader
	clients  atomic.Int32

	mu   sync.Mutex
	last []byte
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run serves registrations and broadcasts until ctx is done. It must be
// called exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	clients := map[*client]bool{}
	drop := func(c *client) {
		if clients[c] {
			delete(clients, c)
			close(c.send)
			h.clients.Store(int32(len(clients)))
		}
	}
	defer func() {
		for c := range clients {
			drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = true
			h.clients.Store(int32(len(clients)))
			if last := h.Latest(); last != nil {
				select {
				case c.send <- last:
				default:
				}
			}
		case c := <-h.unregister:
			drop(c)
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					drop(c)
				}
			}
		}
	}
}

// Clients reports the number of connected websocket clients.
func (h *Hub) Clients() int { return int(h.clients.Load()) }

// Latest returns the JSON encoding of the most recent snapshot, or nil.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// LatestSnapshot decodes the most recent snapshot.
func (h *Hub) LatestSnapshot() (game.Snapshot, bool) {
	var snap game.Snapshot
	b := h.Latest()
	if b == nil {
		return snap, false
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

// Publish queues snap for every client. It never blocks; when the broadcast
// queue is full the snapshot is only kept as the latest.
func (h *Hub) Publish(snap game.Snapshot) {
	b, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("encode snapshot", "err", err)
		return
	}
	h.mu.Lock()
	h.last = b
	h.mu.Unlock()

	select {
	case h.broadcast <- b:
	default:
	}
}

// ServeWS upgrades the request and streams snapshots until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}
	go h.writer(c)
	h.reader(c)
}

// reader drains client frames so close messages are noticed.
func (h *Hub) reader(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}
