package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/debuck1718/smartstudent/internal/message"
	"github.com/debuck1718/smartstudent/internal/middleware"
	"github.com/debuck1718/smartstudent/internal/model"
	"github.com/debuck1718/smartstudent/internal/notify"
	"github.com/debuck1718/smartstudent/internal/outbox"
)

type fakeCache struct {
	mu         sync.Mutex
	installErr error
	installs   int
	activates  int
}

func (c *fakeCache) Install(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installs++
	return c.installErr
}

func (c *fakeCache) Activate(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activates++
	return []string{"smartstudent-cache-v1"}, nil
}

func (c *fakeCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Cache", "HIT")
	io.WriteString(w, "asset "+r.URL.Path)
}

type enqueued struct {
	url  string
	init model.RequestInit
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []enqueued
	drains int
}

func (q *fakeQueue) Enqueue(ctx context.Context, url string, init model.RequestInit) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, enqueued{url, init})
	return int64(len(q.queued)), nil
}

func (q *fakeQueue) Drain(ctx context.Context) (outbox.DrainResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drains++
	n := len(q.queued)
	q.queued = nil
	return outbox.DrainResult{Attempted: n, Replayed: n}, nil
}

func (q *fakeQueue) drainCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drains
}

type fakePages struct {
	mu   sync.Mutex
	sent []message.Message
}

func (p *fakePages) Broadcast(m message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
}

func (p *fakePages) ClientCount() int { return 2 }

func (p *fakePages) count(t message.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.sent {
		if m.Type() == t {
			n++
		}
	}
	return n
}

type fakeRemote struct {
	mu         sync.Mutex
	refreshErr error
	pingErr    error
}

func (r *fakeRemote) PeriodicRefresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshErr
}

func (r *fakeRemote) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr
}

func (r *fakeRemote) setPing(err error) {
	r.mu.Lock()
	r.pingErr = err
	r.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	shown []model.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, note)
	return nil
}

func (n *recordingNotifier) all() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.shown...)
}

type fixture struct {
	agent    *Agent
	cache    *fakeCache
	queue    *fakeQueue
	pages    *fakePages
	remote   *fakeRemote
	notifier *recordingNotifier
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		cache:    &fakeCache{},
		queue:    &fakeQueue{},
		pages:    &fakePages{},
		remote:   &fakeRemote{},
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	composer := notify.NewComposer(f.notifier, nil, logger)
	f.agent = New(cfg, f.cache, f.queue, composer, f.pages, f.remote, logger)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStartLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(Config{})
	if f.agent.State() != StateNew {
		t.Fatalf("initial state = %s", f.agent.State())
	}
	if err := f.agent.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if f.agent.State() != StateActivated {
		t.Errorf("state = %s, want activated", f.agent.State())
	}
	if f.cache.installs != 1 || f.cache.activates != 1 {
		t.Errorf("installs=%d activates=%d", f.cache.installs, f.cache.activates)
	}
	if f.pages.count(message.TypeClaimed) != 1 {
		t.Error("expected pages to be claimed")
	}
	if err := f.agent.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}

	f.agent.Stop()
	if f.agent.State() != StateRedundant {
		t.Errorf("state after stop = %s", f.agent.State())
	}
}

func TestStartInstallFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(Config{})
	f.cache.installErr = errors.New("fetch /bg.png: 404")

	if err := f.agent.Start(context.Background()); err == nil {
		t.Fatal("expected install error")
	}
	if f.agent.State() != StateRedundant {
		t.Errorf("state = %s, want redundant", f.agent.State())
	}
	if f.cache.activates != 0 {
		t.Error("activate must not run after a failed install")
	}
}

func TestSyncTag(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	res, err := f.agent.Sync(ctx, "something-else")
	if err != nil || res != nil {
		t.Fatalf("other tag: res=%v err=%v", res, err)
	}
	if f.queue.drainCount() != 0 {
		t.Fatal("other tag must not drain")
	}

	f.queue.Enqueue(ctx, "/api/assignments", model.RequestInit{Method: "POST"})
	res, err = f.agent.Sync(ctx, SyncTag)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res == nil || res.Replayed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestPush(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	if err := f.agent.Push(ctx, nil); err != nil {
		t.Errorf("empty payload: %v", err)
	}
	if err := f.agent.Push(ctx, []byte("{not json")); !errors.Is(err, ErrMalformedPush) {
		t.Errorf("malformed payload err = %v", err)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatal("no notification expected yet")
	}

	if err := f.agent.Push(ctx, []byte(`{"type":"reminder","id":42,"title":"Essay","body":"Due at 5"}`)); err != nil {
		t.Fatalf("push: %v", err)
	}
	shown := f.notifier.all()
	if len(shown) != 1 {
		t.Fatalf("shown = %d", len(shown))
	}
	if shown[0].Title != "⏰ Task Reminder: Essay" || shown[0].Tag != "rem-42" || shown[0].Body != "Due at 5" {
		t.Errorf("notification = %+v", shown[0])
	}
}

func TestHandleMessage(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	body := `{"title":"Essay","subject":"English","due_datetime":"2025-03-10T23:59:00"}`
	f.agent.HandleMessage(ctx, "page-1", message.QueueRequest{Payload: message.QueuedRequest{
		URL:  "/api/assignments",
		Init: model.RequestInit{Method: "POST", Headers: map[string]string{"Content-Type": "application/json"}, Body: body},
	}})
	if len(f.queue.queued) != 1 || f.queue.queued[0].url != "/api/assignments" || f.queue.queued[0].init.Body != body {
		t.Fatalf("queued = %+v", f.queue.queued)
	}

	f.agent.HandleMessage(ctx, "page-1", message.GoalComplete{GoalTitle: "Read 7 books"})
	shown := f.notifier.all()
	if len(shown) != 1 {
		t.Fatalf("shown = %d", len(shown))
	}
	if shown[0].Title != "🎯 Goal Completed!" || shown[0].Body != `Great job on "Read 7 books"` || shown[0].Tag != "goal-Read 7 books" {
		t.Errorf("goal notification = %+v", shown[0])
	}

	// agent -> page types are ignored
	f.agent.HandleMessage(ctx, "page-1", message.Refresh{})
	if len(f.notifier.all()) != 1 || len(f.queue.queued) != 1 {
		t.Error("REFRESH from a page should be ignored")
	}
}

func TestReminderFires(t *testing.T) {
	f := newFixture(Config{})
	f.agent.HandleMessage(context.Background(), "page-1", message.Reminder{Title: "Essay", Body: "Due in 2 hours", DelayMs: message.Millis(5 * time.Millisecond)})

	waitFor(t, "reminder", func() bool { return len(f.notifier.all()) == 1 })
	n := f.notifier.all()[0]
	if n.Title != "⏰ Essay" || n.Tag != "temp-Essay" {
		t.Errorf("reminder = %+v", n)
	}
	waitFor(t, "timer cleanup", func() bool { return f.agent.PendingReminders() == 0 })
}

func TestReminderDefaultDelay(t *testing.T) {
	f := newFixture(Config{ReminderDelay: 10 * time.Millisecond})
	f.agent.HandleMessage(context.Background(), "page-1", message.Reminder{Title: "Quiz"})
	if f.agent.PendingReminders() != 1 {
		t.Fatal("expected one pending reminder")
	}
	waitFor(t, "default-delay reminder", func() bool { return len(f.notifier.all()) == 1 })
	f.agent.Stop()
}

func TestReminderZeroDelayFiresImmediately(t *testing.T) {
	f := newFixture(Config{ReminderDelay: time.Hour})
	m, err := message.Decode([]byte(`{"type":"REMINDER","title":"Now","body":"b","delayMs":0}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	f.agent.HandleMessage(context.Background(), "page-1", m)

	waitFor(t, "immediate reminder", func() bool { return len(f.notifier.all()) == 1 })
	if n := f.notifier.all()[0]; n.Title != "⏰ Now" {
		t.Errorf("reminder = %+v", n)
	}
	waitFor(t, "timer cleanup", func() bool { return f.agent.PendingReminders() == 0 })
}

func TestStopCancelsReminders(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(Config{})
	if err := f.agent.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.agent.HandleMessage(context.Background(), "page-1", message.Reminder{Title: "Later", DelayMs: message.Millis(time.Hour)})
	if f.agent.PendingReminders() != 1 {
		t.Fatalf("pending = %d", f.agent.PendingReminders())
	}

	f.agent.Stop()
	if f.agent.PendingReminders() != 0 {
		t.Errorf("pending after stop = %d", f.agent.PendingReminders())
	}
	if len(f.notifier.all()) != 0 {
		t.Error("cancelled reminder must not fire")
	}

	f.agent.HandleMessage(context.Background(), "page-1", message.Reminder{Title: "Too late", DelayMs: message.Millis(time.Millisecond)})
	if f.agent.PendingReminders() != 0 {
		t.Error("a stopped agent must not arm new reminders")
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	f.agent.Refresh(ctx)
	if f.pages.count(message.TypeRefresh) != 1 {
		t.Fatal("expected REFRESH broadcast")
	}

	f.remote.refreshErr = errors.New("offline")
	f.agent.Refresh(ctx)
	if f.pages.count(message.TypeRefresh) != 1 {
		t.Error("failed refresh must not broadcast")
	}
}

func TestPeriodicRefreshLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(Config{RefreshInterval: 5 * time.Millisecond})
	if err := f.agent.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "periodic refresh", func() bool { return f.pages.count(message.TypeRefresh) >= 1 })
	f.agent.Stop()
}

func TestConnectivityRestoreDrains(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	f.agent.probe(ctx)
	if f.queue.drainCount() != 0 {
		t.Fatal("staying online must not drain")
	}

	f.remote.setPing(errors.New("dial tcp: connection refused"))
	f.agent.probe(ctx)
	if f.agent.Online() {
		t.Fatal("expected offline")
	}
	if f.queue.drainCount() != 0 {
		t.Fatal("going offline must not drain")
	}

	f.remote.setPing(nil)
	f.agent.probe(ctx)
	if !f.agent.Online() {
		t.Fatal("expected online")
	}
	if f.queue.drainCount() != 1 {
		t.Errorf("drains = %d, want 1", f.queue.drainCount())
	}
}

func TestRouter(t *testing.T) {
	f := newFixture(Config{})
	if err := f.agent.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.agent.Stop()

	srv := httptest.NewServer(f.agent.Router(http.NotFoundHandler(), middleware.NewRateLimiter()))
	defer srv.Close()
	client := srv.Client()

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := client.Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if resp := post("/agent/push", "{bad"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad push status = %d", resp.StatusCode)
	}
	if resp := post("/agent/push", `{"type":"goal","id":"g1","title":"Save","body":"Done"}`); resp.StatusCode != http.StatusAccepted {
		t.Errorf("push status = %d", resp.StatusCode)
	}
	if resp := post("/agent/sync?tag=other", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("other tag status = %d", resp.StatusCode)
	}

	resp := post("/agent/sync?tag="+SyncTag, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	var res outbox.DrainResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode drain result: %v", err)
	}

	hr, err := client.Get(srv.URL + "/agent/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer hr.Body.Close()
	var h health
	json.NewDecoder(hr.Body).Decode(&h)
	if hr.StatusCode != http.StatusOK || h.State != StateActivated || h.Pages != 2 {
		t.Errorf("health = %d %+v", hr.StatusCode, h)
	}

	ar, err := client.Get(srv.URL + "/index.html")
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	defer ar.Body.Close()
	data, _ := io.ReadAll(ar.Body)
	if string(data) != "asset /index.html" || ar.Header.Get("X-Cache") != "HIT" {
		t.Errorf("asset response = %q", data)
	}
}
