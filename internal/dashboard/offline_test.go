package dashboard_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debuck1718/smartstudent/internal/agent"
	"github.com/debuck1718/smartstudent/internal/api"
	"github.com/debuck1718/smartstudent/internal/dashboard"
	"github.com/debuck1718/smartstudent/internal/database"
	"github.com/debuck1718/smartstudent/internal/notify"
	"github.com/debuck1718/smartstudent/internal/outbox"
	"github.com/debuck1718/smartstudent/internal/store"
	"github.com/debuck1718/smartstudent/internal/websocket"
)

// flakyAPI rejects assignment writes with 503 until healthy is set.
type flakyAPI struct {
	mu       sync.Mutex
	healthy  bool
	accepted []string
}

func (a *flakyAPI) setHealthy(v bool) {
	a.mu.Lock()
	a.healthy = v
	a.mu.Unlock()
}

func (a *flakyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.Method == http.MethodPost && r.URL.Path == "/api/assignments" {
		if !a.healthy {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		a.accepted = append(a.accepted, string(body))
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, "{}")
}

func TestOfflineAssignmentReachesAgentOutbox(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	rows := store.NewOutboxStore(db)

	backend := &flakyAPI{}
	apiSrv := httptest.NewServer(backend)
	t.Cleanup(apiSrv.Close)

	client, err := api.NewClient(apiSrv.URL, apiSrv.Client(), logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	queue, err := outbox.New(outbox.Config{BaseURL: apiSrv.URL}, rows, apiSrv.Client(), logger)
	if err != nil {
		t.Fatalf("new outbox: %v", err)
	}

	hub := websocket.NewHub(logger)
	composer := notify.NewComposer(notify.NewPageNotifier(hub, logger), nil, logger)
	ag := agent.New(agent.Config{}, nil, queue, composer, hub, client, logger)
	hub.OnMessage(ag.HandleMessage)
	t.Cleanup(ag.Stop)

	agentSrv := httptest.NewServer(websocket.HandleWebSocket(hub))
	t.Cleanup(agentSrv.Close)
	wsURL := "ws" + strings.TrimPrefix(agentSrv.URL, "http")

	dial := func(ctx context.Context) (dashboard.Messenger, error) {
		conn, err := websocket.Dial(ctx, wsURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	ctrl := dashboard.New(dashboard.Config{Location: time.UTC}, client, dial, nil, nil, logger)
	t.Cleanup(func() { ctrl.Close() })
	ctrl.Start(ctx)

	// due long past, so no reminder is scheduled
	outcome, err := ctrl.AddAssignment(ctx, dashboard.AssignmentForm{Title: "Essay", Subject: "English", Date: "2001-01-01", Time: "17:00"})
	if err != nil {
		t.Fatalf("add assignment: %v", err)
	}
	if outcome != dashboard.Queued {
		t.Fatalf("outcome = %v, want queued", outcome)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := rows.Count(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("outbox rows = %d, want 1", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	all, err := rows.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].URL != "/api/assignments" {
		t.Fatalf("rows = %+v", all)
	}
	entries, err := queue.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Init.Method != http.MethodPost {
		t.Fatalf("entries = %+v", entries)
	}

	// still failing: the entry survives a drain
	res, err := ag.Sync(ctx, agent.SyncTag)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("failing drain = %+v", res)
	}
	if n, _ := rows.Count(ctx); n != 1 {
		t.Fatalf("rows after failed drain = %d, want 1", n)
	}

	backend.setHealthy(true)
	res, err = ag.Sync(ctx, agent.SyncTag)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Replayed != 1 {
		t.Errorf("healthy drain = %+v", res)
	}
	if n, _ := rows.Count(ctx); n != 0 {
		t.Errorf("rows after drain = %d, want 0", n)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	want := `{"title":"Essay","subject":"English","due_datetime":"2001-01-01T17:00:00"}`
	if len(backend.accepted) != 1 || backend.accepted[0] != want {
		t.Errorf("accepted = %q", backend.accepted)
	}
}
