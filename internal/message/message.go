// Package message defines the messages exchanged between pages and the agent.
// Every message is a JSON object discriminated by its "type" field.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/debuck1718/smartstudent/internal/model"
)

type Type string

const (
	TypeReminder     Type = "REMINDER"
	TypeQueueRequest Type = "QUEUE_REQUEST"
	TypeGoalComplete Type = "GOAL_COMPLETE"
	TypeRefresh      Type = "REFRESH"
	TypeNotification Type = "NOTIFICATION"
	TypeClaimed      Type = "CLAIMED"
)

// ErrUnknownType is returned by Decode for a missing or unrecognized type.
var ErrUnknownType = errors.New("unknown message type")

// Message is implemented only by the types in this package.
type Message interface {
	Type() Type
	isMessage()
}

// Reminder asks the agent to show a notification after DelayMs. A nil
// DelayMs means the agent's default delay; zero fires immediately.
type Reminder struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	DelayMs *int64 `json:"delayMs,omitempty"`
}

// Delay returns the requested delay, or def when none was given.
func (r Reminder) Delay(def time.Duration) time.Duration {
	if r.DelayMs == nil {
		return def
	}
	return max(time.Duration(*r.DelayMs)*time.Millisecond, 0)
}

// Millis returns d as a DelayMs value.
func Millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

// QueuedRequest is a write the page could not deliver.
type QueuedRequest struct {
	URL  string            `json:"url"`
	Init model.RequestInit `json:"init"`
}

// QueueRequest asks the agent to store a request in the outbox.
type QueueRequest struct {
	Payload QueuedRequest `json:"payload"`
}

// GoalComplete asks the agent for a congratulation notification.
type GoalComplete struct {
	GoalTitle string `json:"goalTitle"`
}

// Refresh tells pages that dashboard data changed.
type Refresh struct{}

// Claimed tells pages the agent now controls them.
type Claimed struct{}

// Notification carries a notification for pages to display.
type Notification struct {
	model.Notification
}

func (Reminder) Type() Type     { return TypeReminder }
func (QueueRequest) Type() Type { return TypeQueueRequest }
func (GoalComplete) Type() Type { return TypeGoalComplete }
func (Refresh) Type() Type      { return TypeRefresh }
func (Claimed) Type() Type      { return TypeClaimed }
func (Notification) Type() Type { return TypeNotification }

func (Reminder) isMessage()     {}
func (QueueRequest) isMessage() {}
func (GoalComplete) isMessage() {}
func (Refresh) isMessage()      {}
func (Claimed) isMessage()      {}
func (Notification) isMessage() {}

// Encode marshals m with its type discriminator.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
	}
	head, _ := json.Marshal(struct {
		Type Type `json:"type"`
	}{m.Type()})

	body = bytes.TrimSpace(body)
	if bytes.Equal(body, []byte("{}")) {
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// Decode parses a message by its type field.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var m Message
	var err error
	switch head.Type {
	case TypeReminder:
		var v Reminder
		err = json.Unmarshal(data, &v)
		m = v
	case TypeQueueRequest:
		var v QueueRequest
		err = json.Unmarshal(data, &v)
		m = v
	case TypeGoalComplete:
		var v GoalComplete
		err = json.Unmarshal(data, &v)
		m = v
	case TypeRefresh:
		m = Refresh{}
	case TypeClaimed:
		m = Claimed{}
	case TypeNotification:
		var v Notification
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return m, nil
}
