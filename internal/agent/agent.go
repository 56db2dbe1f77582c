// Package agent runs the background agent: a local process that fronts the
// SmartStudent API as a cache-first proxy, owns the outbox, handles push
// and sync signals and relays messages to connected pages.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/debuck1718/smartstudent/internal/message"
	"github.com/debuck1718/smartstudent/internal/model"
	"github.com/debuck1718/smartstudent/internal/notify"
	"github.com/debuck1718/smartstudent/internal/outbox"
)

// Sync and periodic wake-up tags.
const (
	SyncTag    = "smartstudent-sync"
	RefreshTag = "smartstudent-refresh"
)

// DefaultReminderDelay applies when a REMINDER message carries no delay.
const DefaultReminderDelay = 60 * time.Second

// ErrMalformedPush is returned by Push for a payload that is not valid JSON.
var ErrMalformedPush = errors.New("malformed push payload")

// State is the agent lifecycle state.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// AssetCache is the versioned asset cache. *cache.Manager satisfies it.
type AssetCache interface {
	Install(ctx context.Context) error
	Activate(ctx context.Context) ([]string, error)
	http.Handler
}

// Queue is the outbox. *outbox.Outbox satisfies it.
type Queue interface {
	Enqueue(ctx context.Context, url string, init model.RequestInit) (int64, error)
	Drain(ctx context.Context) (outbox.DrainResult, error)
}

// Pages reaches every connected page. *websocket.Hub satisfies it.
type Pages interface {
	Broadcast(m message.Message)
	ClientCount() int
}

// Remote is the part of the API the agent calls itself. *api.Client satisfies it.
type Remote interface {
	PeriodicRefresh(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Config tunes the agent's timers.
type Config struct {
	// RefreshInterval is the periodic wake-up period. Zero disables it.
	RefreshInterval time.Duration
	// ConnectivityInterval is the API probe period. Zero disables the monitor.
	ConnectivityInterval time.Duration
	// ReminderDelay replaces DefaultReminderDelay when positive.
	ReminderDelay time.Duration
}

// Agent is the background agent.
type Agent struct {
	cfg      Config
	cache    AssetCache
	queue    Queue
	composer *notify.Composer
	pages    Pages
	remote   Remote
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	timers map[*time.Timer]struct{}
	online bool
	cancel context.CancelFunc
	ctx    context.Context

	pending sync.WaitGroup // reminder callbacks
	loops   sync.WaitGroup
}

// New creates an agent. Call Start to install and activate it.
func New(cfg Config, cache AssetCache, queue Queue, composer *notify.Composer, pages Pages, remote Remote, logger *slog.Logger) *Agent {
	if cfg.ReminderDelay <= 0 {
		cfg.ReminderDelay = DefaultReminderDelay
	}
	return &Agent{
		cfg:      cfg,
		cache:    cache,
		queue:    queue,
		composer: composer,
		pages:    pages,
		remote:   remote,
		logger:   logger,
		state:    StateNew,
		timers:   make(map[*time.Timer]struct{}),
		online:   true,
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.logger.Info("agent state", "state", s)
}

// Start runs install then activate. The agent skips waiting, so activation
// follows a successful install immediately. A failed install leaves the
// agent redundant.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateNew {
		a.mu.Unlock()
		return fmt.Errorf("start agent: already %s", a.state)
	}
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Unlock()

	if err := a.install(ctx); err != nil {
		a.Stop()
		return err
	}
	if err := a.activate(ctx); err != nil {
		a.Stop()
		return err
	}
	return nil
}

func (a *Agent) install(ctx context.Context) error {
	a.setState(StateInstalling)
	if err := a.cache.Install(ctx); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	a.setState(StateInstalled)
	return nil
}

func (a *Agent) activate(ctx context.Context) error {
	a.setState(StateActivating)
	deleted, err := a.cache.Activate(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if len(deleted) > 0 {
		a.logger.Info("purged old caches", "caches", deleted)
	}

	a.pages.Broadcast(message.Claimed{})
	a.registerPeriodic()
	a.startConnectivityMonitor()

	a.setState(StateActivated)
	return nil
}

// Stop cancels the background loops and every pending soft reminder, then
// marks the agent redundant. Pending reminders are lost.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.state == StateRedundant {
		a.mu.Unlock()
		return
	}
	a.state = StateRedundant
	cancel := a.cancel
	for t := range a.timers {
		if t.Stop() {
			a.pending.Done()
		}
	}
	dropped := len(a.timers)
	clear(a.timers)
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.loops.Wait()
	a.pending.Wait()
	a.logger.Info("agent stopped", "dropped_reminders", dropped)
}

// Sync handles a sync signal. Only SyncTag drains the outbox; the result
// is nil for other tags.
func (a *Agent) Sync(ctx context.Context, tag string) (*outbox.DrainResult, error) {
	if tag != SyncTag {
		a.logger.Debug("ignoring sync tag", "tag", tag)
		return nil, nil
	}
	res, err := a.queue.Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	if res.Attempted > 0 {
		a.logger.Info("outbox drained", "attempted", res.Attempted, "replayed", res.Replayed, "failed", res.Failed)
	}
	return &res, nil
}

// Push handles a delivered push payload. An empty payload is a no-op.
func (a *Agent) Push(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var p model.PushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		a.logger.Warn("dropping push payload", "error", err)
		return fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	if err := a.composer.ShowPush(ctx, p); err != nil {
		a.logger.Error("show push notification", "type", p.Type, "error", err)
	}
	return nil
}

// HandleMessage handles a message posted by a page. It never fails; errors
// are logged.
func (a *Agent) HandleMessage(ctx context.Context, clientID string, m message.Message) {
	switch m := m.(type) {
	case message.Reminder:
		a.scheduleReminder(m)
	case message.QueueRequest:
		if _, err := a.queue.Enqueue(ctx, m.Payload.URL, m.Payload.Init); err != nil {
			a.logger.Error("queue request", "client", clientID, "url", m.Payload.URL, "error", err)
		}
	case message.GoalComplete:
		if err := a.composer.GoalCompleted(ctx, m.GoalTitle); err != nil {
			a.logger.Error("goal notification", "client", clientID, "error", err)
		}
	default:
		a.logger.Debug("ignoring page message", "client", clientID, "type", m.Type())
	}
}

// scheduleReminder arms a soft timer. It is not persisted.
func (a *Agent) scheduleReminder(r message.Reminder) {
	delay := r.Delay(a.cfg.ReminderDelay)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateRedundant {
		return
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	a.pending.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer a.pending.Done()
		a.mu.Lock()
		delete(a.timers, t)
		a.mu.Unlock()
		if err := a.composer.Reminder(ctx, r.Title, r.Body); err != nil {
			a.logger.Error("reminder notification", "title", r.Title, "error", err)
		}
	})
	a.timers[t] = struct{}{}
	a.logger.Debug("reminder scheduled", "title", r.Title, "delay", delay)
}

// PendingReminders returns the number of armed soft timers.
func (a *Agent) PendingReminders() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}
