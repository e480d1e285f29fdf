package remote

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// sendBuffer is the number of outgoing lines buffered per client. A client
// that falls this far behind is disconnected.
const sendBuffer = 64

type hub struct {
	clients map[*client]bool

	broadcast            chan string
	register, unregister chan *client
	done                 chan struct{}
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan string),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// run fans broadcasts out to registered clients until ctx is done, then
// disconnects every client.
func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			c.close()
			delete(h.clients, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.enqueue(msg) {
					delete(h.clients, c)
					c.close()
				}
			}
		}
	}
}

// join registers c. It reports false if the hub has stopped.
func (h *hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *hub) publish(msg string) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// client is one websocket connection. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan string
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan string, sendBuffer)}
}

// enqueue queues msg without blocking. It reports false if the client is
// closed or its buffer is full.
func (c *client) enqueue(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops writePump after it flushes queued lines. Idempotent.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
