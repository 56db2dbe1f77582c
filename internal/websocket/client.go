package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// outgoing messages buffered per page before the hub drops it
	pageQueueSize = 16
	keepalive     = 30 * time.Second
)

// Client is one connected page as seen by the agent. Page messages are
// dispatched to the hub's handler; agent broadcasts are queued on send.
type Client struct {
	ID   string
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

// NewClient wraps an accepted page connection with a fresh page ID.
func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, pageQueueSize),
	}
}

// Run serves the page until it disconnects or ctx ends. The page is
// registered with the hub for the duration.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.deliver(ctx)
	c.receive(ctx)
}

// receive passes each page message to the hub until the read fails.
func (c *Client) receive(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.hub.logger.Debug("page disconnected", "page", c.ID, "error", err)
			return
		}
		c.hub.dispatch(ctx, c, data)
	}
}

// deliver writes queued agent messages to the page and pings it while idle.
func (c *Client) deliver(ctx context.Context) {
	ping := time.NewTicker(keepalive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return // unregistered
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				c.hub.logger.Debug("write to page", "page", c.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}
