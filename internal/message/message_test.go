package message

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/debuck1718/smartstudent/internal/model"
)

func TestDecodeShapes(t *testing.T) {
	m, err := Decode([]byte(`{"type":"REMINDER","title":"Essay","body":"due","delayMs":5000}`))
	if err != nil {
		t.Fatalf("decode reminder: %v", err)
	}
	r, ok := m.(Reminder)
	if !ok || r.Title != "Essay" || r.DelayMs == nil || *r.DelayMs != 5000 {
		t.Errorf("reminder = %#v", m)
	}

	m, err = Decode([]byte(`{"type":"QUEUE_REQUEST","payload":{"url":"/api/assignments","init":{"method":"POST","headers":{"Content-Type":"application/json"},"body":"{}"}}}`))
	if err != nil {
		t.Fatalf("decode queue request: %v", err)
	}
	q := m.(QueueRequest)
	if q.Payload.URL != "/api/assignments" || q.Payload.Init.Method != "POST" {
		t.Errorf("queue request = %#v", q)
	}

	m, _ = Decode([]byte(`{"type":"GOAL_COMPLETE","goalTitle":"Run 5k"}`))
	if g := m.(GoalComplete); g.GoalTitle != "Run 5k" {
		t.Errorf("goal = %#v", g)
	}

	if m, _ := Decode([]byte(`{"type":"REFRESH"}`)); m != (Refresh{}) {
		t.Errorf("refresh = %#v", m)
	}
}

func TestReminderDelay(t *testing.T) {
	def := time.Minute
	tests := []struct {
		in   string
		want time.Duration
	}{
		{`{"type":"REMINDER","title":"a"}`, def},
		{`{"type":"REMINDER","title":"a","delayMs":0}`, 0},
		{`{"type":"REMINDER","title":"a","delayMs":250}`, 250 * time.Millisecond},
		{`{"type":"REMINDER","title":"a","delayMs":-5}`, 0},
	}
	for _, tt := range tests {
		m, err := Decode([]byte(tt.in))
		if err != nil {
			t.Fatalf("decode %s: %v", tt.in, err)
		}
		if got := m.(Reminder).Delay(def); got != tt.want {
			t.Errorf("Delay(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}

	data, err := Encode(Reminder{Title: "a", DelayMs: Millis(0)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"delayMs":0`) {
		t.Errorf("explicit zero delay dropped: %s", data)
	}
}

func TestDecodeUnknown(t *testing.T) {
	for _, in := range []string{`{"type":"NOPE"}`, `{}`} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrUnknownType) {
			t.Errorf("Decode(%s) err = %v, want ErrUnknownType", in, err)
		}
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestEncodeAddsType(t *testing.T) {
	data, err := Encode(Refresh{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"type":"REFRESH"}` {
		t.Errorf("refresh = %s", data)
	}

	data, _ = Encode(GoalComplete{GoalTitle: "x"})
	if string(data) != `{"type":"GOAL_COMPLETE","goalTitle":"x"}` {
		t.Errorf("goal = %s", data)
	}

	in := Notification{model.Notification{Title: "T", Body: "B", Tag: "goal-1"}}
	data, _ = Encode(in)
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if n := out.(Notification); n.Tag != "goal-1" || n.Title != "T" {
		t.Errorf("notification = %#v", n)
	}
}
