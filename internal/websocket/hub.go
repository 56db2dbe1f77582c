package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/debuck1718/smartstudent/internal/message"
)

// Handler receives messages posted by pages.
type Handler func(ctx context.Context, clientID string, m message.Message)

// Hub maintains the set of connected pages, broadcasts agent messages to
// them and hands page messages to the registered handler.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	handler Handler
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// OnMessage sets the handler for page messages.
func (h *Hub) OnMessage(fn Handler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("page connected", "client", c.ID)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected pages.
func (h *Hub) Broadcast(msg message.Message) {
	data, err := message.Encode(msg)
	if err != nil {
		h.logger.Error("encode broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow page, drop
		}
	}
}

// dispatch decodes a page message and passes it to the handler. Unknown
// or malformed messages are logged and dropped.
func (h *Hub) dispatch(ctx context.Context, c *Client, data []byte) {
	m, err := message.Decode(data)
	if err != nil {
		h.logger.Debug("ignoring page message", "client", c.ID, "error", err)
		return
	}

	h.mu.RLock()
	fn := h.handler
	h.mu.RUnlock()
	if fn != nil {
		fn(ctx, c.ID, m)
	}
}

// ClientCount returns the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
