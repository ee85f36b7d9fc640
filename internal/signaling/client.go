package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is a rendezvous connection with serialized writes. The read side is
// owned by exactly one goroutine; writes may come from several (ICE
// candidate callbacks fire on pion's goroutines).
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial connects to the rendezvous server at the given WebSocket URL, e.g.
// ws://host:port/ws.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rendezvous server: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// newConn wraps an already-upgraded server-side connection.
func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes a rendezvous message, guarded by a mutex.
func (c *Conn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Read blocks until the next rendezvous message arrives.
func (c *Conn) Read() (Message, error) {
	var msg Message
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

// Close closes the underlying WebSocket.
func (c *Conn) Close() error {
	return c.ws.Close()
}
