package websocket

import (
	"context"
	"fmt"

	ws "github.com/coder/websocket"

	"github.com/debuck1718/smartstudent/internal/message"
)

// PageConn is a page's connection to the agent.
type PageConn struct {
	conn *ws.Conn
}

// Dial connects a page to the agent's websocket endpoint.
func Dial(ctx context.Context, url string) (*PageConn, error) {
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return &PageConn{conn: conn}, nil
}

// Post sends a message to the agent.
func (p *PageConn) Post(ctx context.Context, m message.Message) error {
	data, err := message.Encode(m)
	if err != nil {
		return err
	}
	if err := p.conn.Write(ctx, ws.MessageText, data); err != nil {
		return fmt.Errorf("post %s: %w", m.Type(), err)
	}
	return nil
}

// Listen calls fn for every message the agent sends until ctx ends or the
// connection closes. Messages of unknown type are skipped.
func (p *PageConn) Listen(ctx context.Context, fn func(message.Message)) error {
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			return err
		}
		m, err := message.Decode(data)
		if err != nil {
			continue
		}
		fn(m)
	}
}

// Close closes the connection normally.
func (p *PageConn) Close() error {
	return p.conn.Close(ws.StatusNormalClosure, "")
}
