// Package ws pushes server events to websocket clients grouped by topic.
// Clients only listen; anything they send is read and discarded so that
// pings and close frames are processed.
//
//	hub := ws.NewHub(ws.AllowOrigins(origins))
//	go hub.Run(ctx)
//	hub.Upgrade(w, r, "order:42")
//	hub.Publish("order:42", payload)
package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freshbulk/storefront/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

var errHubStopped = errors.New("ws: hub stopped")

type client struct {
	hub   *Hub
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws: unexpected close", "topic", c.topic, "error", err)
			}
			return
		}
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
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

type envelope struct {
	topic string
	data  []byte
}

type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}

	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
}

type Option func(*Hub)

// AllowOrigins restricts upgrades to the listed origins; "*" allows any.
// Requests without an Origin header (non-browser clients) are accepted.
func AllowOrigins(origins []string) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
		topics:     make(map[string]map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the subscriber sets until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, set := range h.topics {
				for c := range set {
					close(c.send)
				}
				delete(h.topics, topic)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.topics[c.topic] == nil {
				h.topics[c.topic] = make(map[*client]struct{})
			}
			h.topics[c.topic][c] = struct{}{}
			h.mu.Unlock()
			logger.Debug("ws: subscribed", "topic", c.topic)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.topics[msg.topic] {
				select {
				case c.send <- msg.data:
				default:
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.topics, c.topic)
	}
}

// Publish queues data for every subscriber of topic. It never blocks; when
// the hub is backed up the message is dropped and false is returned.
func (h *Hub) Publish(topic string, data []byte) bool {
	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
		return true
	default:
		logger.Warn("ws: broadcast queue full", "topic", topic)
		return false
	}
}

// Subscribers is the number of clients currently on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Upgrade switches the connection to a websocket subscribed to topic. A
// non-nil hello is sent before any published message. On failure the
// upgrader has already written an HTTP error.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, topic string, hello []byte) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, topic: topic, conn: conn, send: make(chan []byte, sendBuffer)}
	if hello != nil {
		c.send <- hello
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}
	go c.writePump()
	go c.readPump()
	return nil
}
