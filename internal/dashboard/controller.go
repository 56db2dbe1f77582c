// Package dashboard is the foreground controller: it connects pages to the
// background agent, performs the push handshake and drives the dashboard
// actions and loaders against the API.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/debuck1718/smartstudent/internal/api"
	"github.com/debuck1718/smartstudent/internal/message"
	"github.com/debuck1718/smartstudent/internal/model"
	"github.com/debuck1718/smartstudent/internal/push"
)

var (
	// ErrValidation is returned when a form is missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotQueued is returned when a failed write could not be stored in
	// any outbox.
	ErrNotQueued = errors.New("request not saved or queued")
)

// Messenger is the page side of the agent channel. *websocket.PageConn
// satisfies it.
type Messenger interface {
	Post(ctx context.Context, m message.Message) error
	Listen(ctx context.Context, fn func(message.Message)) error
	Close() error
}

// Dialer connects to the background agent.
type Dialer func(ctx context.Context) (Messenger, error)

// Subscriber creates a push subscription for the given application server key.
type Subscriber interface {
	Subscribe(ctx context.Context, applicationServerKey []byte) (*webpush.Subscription, error)
}

// ToastKind distinguishes confirmation toasts from error toasts.
type ToastKind int

const (
	ToastOK ToastKind = iota
	ToastError
)

// Toaster shows transient user-facing messages.
type Toaster interface {
	Toast(msg string, kind ToastKind)
}

// Outbox stores failed writes for later replay. *outbox.Outbox satisfies it.
type Outbox interface {
	Enqueue(ctx context.Context, url string, init model.RequestInit) (int64, error)
}

// Config configures a Controller.
type Config struct {
	// Timezone is reported to the API. Empty uses the location's name.
	Timezone string
	Location *time.Location
	// Outbox receives failed writes when the agent cannot be reached.
	Outbox Outbox
}

// Controller is the foreground controller.
type Controller struct {
	cfg        Config
	client     *api.Client
	dial       Dialer
	subscriber Subscriber
	toaster    Toaster
	logger     *slog.Logger
	now        func() time.Time

	once      sync.Once
	mu        sync.Mutex
	messenger Messenger
	view      View
	listening sync.WaitGroup
}

// New creates a controller. dial and subscriber may be nil, in which case
// agent features or push are skipped.
func New(cfg Config, client *api.Client, dial Dialer, subscriber Subscriber, toaster Toaster, logger *slog.Logger) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Controller{
		cfg:        cfg,
		client:     client,
		dial:       dial,
		subscriber: subscriber,
		toaster:    toaster,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the agent once, runs the push handshake, reports the
// timezone and starts listening for REFRESH. None of these steps fail
// Start; problems are logged.
func (c *Controller) Start(ctx context.Context) {
	c.once.Do(func() {
		c.register(ctx)
	})
	c.subscribePush(ctx)
	c.reportTimezone(ctx)
}

func (c *Controller) register(ctx context.Context) {
	if c.dial == nil {
		return
	}
	m, err := c.dial(ctx)
	if err != nil {
		c.logger.Warn("background agent unavailable", "error", err)
		return
	}
	c.mu.Lock()
	c.messenger = m
	c.mu.Unlock()
	c.logger.Info("background agent ready")

	c.listening.Add(1)
	go func() {
		defer c.listening.Done()
		err := m.Listen(ctx, func(msg message.Message) {
			if _, ok := msg.(message.Refresh); ok {
				if _, err := c.RefreshAll(ctx); err != nil {
					c.logger.Warn("refresh widgets", "error", err)
				}
			}
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("agent channel closed", "error", err)
		}
	}()
}

// Close disconnects from the agent and waits for the listener to exit.
func (c *Controller) Close() error {
	c.mu.Lock()
	m := c.messenger
	c.messenger = nil
	c.mu.Unlock()

	var err error
	if m != nil {
		err = m.Close()
	}
	c.listening.Wait()
	return err
}

// subscribePush fetches the server key, subscribes and uploads the
// subscription. Every failure is logged and absorbed.
func (c *Controller) subscribePush(ctx context.Context) {
	if c.subscriber == nil {
		return
	}
	vapid, err := c.client.PushKey(ctx)
	if err != nil {
		c.logger.Warn("push permission denied or error", "step", "key", "error", err)
		return
	}
	key, err := push.DecodeApplicationServerKey(vapid)
	if err != nil {
		c.logger.Warn("push permission denied or error", "step", "decode", "error", err)
		return
	}
	sub, err := c.subscriber.Subscribe(ctx, key)
	if err != nil {
		c.logger.Warn("push permission denied or error", "step", "subscribe", "error", err)
		return
	}
	if err := c.client.PushSubscribe(ctx, sub); err != nil {
		c.logger.Warn("push permission denied or error", "step", "upload", "error", err)
		return
	}
	c.logger.Info("push subscription uploaded", "endpoint", sub.Endpoint)
}

func (c *Controller) reportTimezone(ctx context.Context) {
	tz := c.cfg.Timezone
	if tz == "" {
		tz = c.cfg.Location.String()
	}
	if err := c.client.SetTimezone(ctx, tz); err != nil {
		c.logger.Debug("report timezone", "error", err)
	}
}

// post sends a fire-and-forget message to the agent.
func (c *Controller) post(ctx context.Context, m message.Message) bool {
	c.mu.Lock()
	messenger := c.messenger
	c.mu.Unlock()
	if messenger == nil {
		c.logger.Warn("background agent unavailable", "message", m.Type())
		return false
	}
	if err := messenger.Post(ctx, m); err != nil {
		c.logger.Warn("post to agent", "message", m.Type(), "error", err)
		return false
	}
	return true
}

func (c *Controller) toast(msg string, kind ToastKind) {
	if c.toaster != nil {
		c.toaster.Toast(msg, kind)
	}
}
