package model

import (
	"encoding/json"
	"time"
)

// Push payload types
const (
	PushTypeReminder = "reminder"
	PushTypeGoal     = "goal"
)

// PayloadID accepts either a JSON number or a JSON string.
type PayloadID string

func (id *PayloadID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PayloadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = PayloadID(n.String())
	return nil
}

// PushPayload is the JSON carried by a push message.
type PushPayload struct {
	Type  string    `json:"type"`
	ID    PayloadID `json:"id,omitempty"`
	Title string    `json:"title,omitempty"`
	Body  string    `json:"body,omitempty"`
}

// Notification is what the agent asks the notification surface to display.
type Notification struct {
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Tag     string    `json:"tag"`
	Icon    string    `json:"icon,omitempty"`
	Badge   string    `json:"badge,omitempty"`
	URL     string    `json:"url,omitempty"`
	ShownAt time.Time `json:"shown_at"`
}
