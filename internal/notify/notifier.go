package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/debuck1718/smartstudent/internal/message"
	"github.com/debuck1718/smartstudent/internal/model"
)

// Broadcaster fans a message out to every connected page.
type Broadcaster interface {
	Broadcast(msg message.Message)
}

// PageNotifier shows notifications by sending them to every open page.
type PageNotifier struct {
	pages  Broadcaster
	logger *slog.Logger
}

func NewPageNotifier(pages Broadcaster, logger *slog.Logger) *PageNotifier {
	return &PageNotifier{pages: pages, logger: logger}
}

func (p *PageNotifier) Notify(_ context.Context, n model.Notification) error {
	p.logger.Info("notification", "title", n.Title, "tag", n.Tag)
	p.pages.Broadcast(message.Notification{Notification: n})
	return nil
}

// HTTPBridge posts native messages as JSON to a local native shell endpoint.
type HTTPBridge struct {
	url        string
	httpClient *http.Client
}

func NewHTTPBridge(url string, client *http.Client) *HTTPBridge {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBridge{url: url, httpClient: client}
}

func (b *HTTPBridge) PostMessage(ctx context.Context, msg NativeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal native message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post native message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("native bridge returned %d", resp.StatusCode)
	}
	return nil
}
