package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/debuck1718/smartstudent/internal/model"
)

const (
	// ClickURL is opened when a notification is clicked.
	ClickURL = "/dashboard.html"
	Icon     = "/app-icon.png"
)

// Notifier displays a notification on the system surface.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NativeMessage is forwarded to a native bridge when one is present.
type NativeMessage struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tag      string   `json:"tag"`
	Schedule Schedule `json:"schedule"`
}

// Schedule.At is a unix millisecond timestamp.
type Schedule struct {
	At int64 `json:"at"`
}

// NativeBridge relays notifications to a native shell.
type NativeBridge interface {
	PostMessage(ctx context.Context, msg NativeMessage) error
}

// Composer builds notifications and hands them to the notifier and, when
// configured, the native bridge.
type Composer struct {
	notifier Notifier
	bridge   NativeBridge
	now      func() time.Time
	logger   *slog.Logger
}

// NewComposer creates a composer. bridge may be nil.
func NewComposer(notifier Notifier, bridge NativeBridge, logger *slog.Logger) *Composer {
	return &Composer{
		notifier: notifier,
		bridge:   bridge,
		now:      time.Now,
		logger:   logger,
	}
}

// Show displays a notification and forwards it to the native bridge.
// Bridge failures are logged, never returned.
func (c *Composer) Show(ctx context.Context, title, body, tag string) error {
	now := c.now()
	n := model.Notification{
		Title:   title,
		Body:    body,
		Tag:     tag,
		Icon:    Icon,
		Badge:   Icon,
		URL:     ClickURL,
		ShownAt: now,
	}
	if err := c.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("show notification %s: %w", tag, err)
	}
	c.forwardToNative(ctx, n)
	return nil
}

func (c *Composer) forwardToNative(ctx context.Context, n model.Notification) {
	if c.bridge == nil {
		return
	}
	msg := NativeMessage{
		Type:     "LOCAL_NOTIFICATION",
		Title:    n.Title,
		Body:     n.Body,
		Tag:      n.Tag,
		Schedule: Schedule{At: n.ShownAt.UnixMilli()},
	}
	if err := c.bridge.PostMessage(ctx, msg); err != nil {
		c.logger.Warn("forward to native bridge", "tag", n.Tag, "error", err)
	}
}

// ForPush maps a push payload to title, body and dedup tag.
func ForPush(p model.PushPayload, now time.Time) (title, body, tag string) {
	switch p.Type {
	case model.PushTypeReminder:
		return "⏰ Task Reminder: " + p.Title, p.Body, fmt.Sprintf("rem-%s", p.ID)
	case model.PushTypeGoal:
		return "🎯 Goal Completed!", p.Body, fmt.Sprintf("goal-%s", p.ID)
	default:
		return "📢 Announcement", p.Body, fmt.Sprintf("ann-%d", now.UnixMilli())
	}
}

// ShowPush displays the notification for a push payload.
func (c *Composer) ShowPush(ctx context.Context, p model.PushPayload) error {
	title, body, tag := ForPush(p, c.now())
	return c.Show(ctx, title, body, tag)
}

// GoalCompleted congratulates the user on a finished goal.
func (c *Composer) GoalCompleted(ctx context.Context, goalTitle string) error {
	return c.Show(ctx, "🎯 Goal Completed!", `Great job on "`+goalTitle+`"`, "goal-"+goalTitle)
}

// Reminder displays a soft-timer reminder.
func (c *Composer) Reminder(ctx context.Context, title, body string) error {
	return c.Show(ctx, "⏰ "+title, body, "temp-"+title)
}
