package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debuck1718/smartstudent/internal/message"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		ID:   "mock",
		hub:  hub,
		conn: nil,
		send: make(chan []byte, pageQueueSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(message.Refresh{})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got["type"] != "REFRESH" {
				t.Errorf("expected type REFRESH, got %v", got["type"])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(message.Refresh{})
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < pageQueueSize; i++ {
		hub.Broadcast(message.Refresh{})
	}

	// This should drop the message, not panic or block
	hub.Broadcast(message.Claimed{})

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != pageQueueSize {
		t.Errorf("expected %d messages, got %d", pageQueueSize, count)
	}

	hub.Unregister(c)
}

func TestDispatch(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)

	var got []message.Message
	hub.OnMessage(func(_ context.Context, _ string, m message.Message) {
		got = append(got, m)
	})

	hub.dispatch(context.Background(), c, []byte(`{"type":"GOAL_COMPLETE","goalTitle":"Run"}`))
	hub.dispatch(context.Background(), c, []byte(`{"type":"SOMETHING_ELSE"}`))
	hub.dispatch(context.Background(), c, []byte(`garbage`))

	if len(got) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(got))
	}
	if g, ok := got[0].(message.GoalComplete); !ok || g.GoalTitle != "Run" {
		t.Errorf("got %#v", got[0])
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(message.Refresh{})
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestPageRoundTrip(t *testing.T) {
	hub := NewHub(slog.Default())
	received := make(chan message.Message, 1)
	hub.OnMessage(func(_ context.Context, _ string, m message.Message) {
		received <- m
	})

	srv := httptest.NewServer(HandleWebSocket(hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer page.Close()

	if err := page.Post(ctx, message.QueueRequest{Payload: message.QueuedRequest{URL: "/api/assignments"}}); err != nil {
		t.Fatalf("post: %v", err)
	}
	select {
	case m := <-received:
		if q, ok := m.(message.QueueRequest); !ok || q.Payload.URL != "/api/assignments" {
			t.Errorf("agent received %#v", m)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for page message")
	}

	// The page is registered by the time its first message was dispatched.
	hub.Broadcast(message.Refresh{})

	got := make(chan message.Message, 1)
	go page.Listen(ctx, func(m message.Message) {
		select {
		case got <- m:
		default:
		}
	})
	select {
	case m := <-got:
		if _, ok := m.(message.Refresh); !ok {
			t.Errorf("page received %#v", m)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for broadcast")
	}
}
