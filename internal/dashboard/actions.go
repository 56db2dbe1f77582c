package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/debuck1718/smartstudent/internal/api"
	"github.com/debuck1718/smartstudent/internal/message"
	"github.com/debuck1718/smartstudent/internal/model"
)

// ReminderLead is how long before the due time the local reminder fires.
const ReminderLead = 2 * time.Hour

var validate = validator.New()

// AssignmentForm is the new-assignment form. Time is optional; a missing
// time means end of day.
type AssignmentForm struct {
	Title   string `validate:"required"`
	Subject string `validate:"required"`
	Date    string `validate:"required,datetime=2006-01-02"`
	Time    string `validate:"omitempty,datetime=15:04"`
}

// DueDatetime returns the due value sent to the API.
func (f AssignmentForm) DueDatetime() string {
	if f.Time != "" {
		return f.Date + "T" + f.Time + ":00"
	}
	return f.Date + "T23:59:00"
}

// ExpenseForm is the add-expense form.
type ExpenseForm struct {
	Title  string  `validate:"required"`
	Amount float64 `validate:"gt=0"`
	Type   string  `validate:"required,oneof=expense goal"`
}

// Outcome tells whether a write reached the API, was queued, or was lost.
type Outcome int

const (
	Saved Outcome = iota
	Queued
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Failed:
		return "failed"
	}
	return "saved"
}

// sanitize strips characters the pages never accept in free text.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// AddAssignment posts a new assignment. When the post fails the request is
// handed to the agent's outbox, or to Config.Outbox when the agent cannot
// be reached. A reminder is scheduled two hours before the due time unless
// the write could not be stored anywhere.
func (c *Controller) AddAssignment(ctx context.Context, form AssignmentForm) (Outcome, error) {
	form.Title = sanitize(form.Title)
	form.Subject = sanitize(form.Subject)
	if err := validate.Struct(form); err != nil {
		c.toast("Fill all fields", ToastError)
		return Saved, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dueStr := form.DueDatetime()
	body, err := json.Marshal(model.Assignment{Title: form.Title, Subject: form.Subject, DueDatetime: dueStr})
	if err != nil {
		return Saved, fmt.Errorf("marshal assignment: %w", err)
	}

	outcome := Saved
	if err := c.client.CreateAssignment(ctx, body); err != nil {
		c.logger.Warn("create assignment failed, queueing", "error", err)
		init := model.RequestInit{
			Method:  http.MethodPost,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    string(body),
		}
		if !c.queue(ctx, api.AssignmentsPath, init) {
			c.toast("Could not save assignment", ToastError)
			return Failed, fmt.Errorf("%w: %v", ErrNotQueued, err)
		}
		c.toast("Saved locally – will sync when online", ToastOK)
		outcome = Queued
	} else {
		c.toast("Assignment saved!", ToastOK)
		if _, err := c.LoadAssignments(ctx); err != nil {
			c.logger.Warn("reload assignments", "error", err)
		}
	}

	if due, err := time.ParseInLocation(model.DueLayout, dueStr, c.cfg.Location); err == nil {
		c.scheduleReminder(ctx, form.Title, due)
	}
	return outcome, nil
}

// queue stores a failed write in the agent's outbox, falling back to the
// local outbox. It reports whether the request was stored.
func (c *Controller) queue(ctx context.Context, url string, init model.RequestInit) bool {
	if c.post(ctx, message.QueueRequest{Payload: message.QueuedRequest{URL: url, Init: init}}) {
		return true
	}
	if c.cfg.Outbox == nil {
		return false
	}
	id, err := c.cfg.Outbox.Enqueue(ctx, url, init)
	if err != nil {
		c.logger.Error("local outbox enqueue", "url", url, "error", err)
		return false
	}
	c.logger.Info("queued in local outbox", "id", id, "url", url)
	return true
}

// scheduleReminder asks the agent for a soft reminder ReminderLead before
// due. Past reminders are skipped.
func (c *Controller) scheduleReminder(ctx context.Context, title string, due time.Time) bool {
	delay := due.Add(-ReminderLead).Sub(c.now())
	if delay <= 0 {
		return false
	}
	return c.post(ctx, message.Reminder{
		Title:   title,
		Body:    "“" + title + "” is due in 2 hours",
		DelayMs: message.Millis(delay),
	})
}

// AddExpense records an expense or a savings goal amount.
func (c *Controller) AddExpense(ctx context.Context, form ExpenseForm) error {
	form.Title = sanitize(form.Title)
	if err := validate.Struct(form); err != nil {
		c.toast("Fill all fields", ToastError)
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	e := model.Expense{Title: form.Title, Amount: form.Amount, Type: form.Type}
	if err := c.client.CreateExpense(ctx, e); err != nil {
		c.toast("Could not save expense", ToastError)
		return fmt.Errorf("add expense: %w", err)
	}
	c.toast("Expense saved!", ToastOK)
	if _, err := c.LoadBudget(ctx); err != nil {
		c.logger.Warn("reload budget", "error", err)
	}
	return nil
}

// AddGoal saves the weekly goal.
func (c *Controller) AddGoal(ctx context.Context, text string) error {
	text = sanitize(text)
	if text == "" {
		c.toast("Write a goal first", ToastError)
		return ErrValidation
	}
	if err := c.client.CreateGoal(ctx, model.Goal{Text: text}); err != nil {
		c.toast("Could not save goal", ToastError)
		return fmt.Errorf("add goal: %w", err)
	}
	c.toast("Goal saved!", ToastOK)
	if _, err := c.LoadGoals(ctx); err != nil {
		c.logger.Warn("reload goals", "error", err)
	}
	return nil
}

// SubmitFeedback sends feedback with an optional attachment.
func (c *Controller) SubmitFeedback(ctx context.Context, msg string, file *api.Attachment) error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		c.toast("Write something first", ToastError)
		return ErrValidation
	}
	if err := c.client.SubmitFeedback(ctx, msg, file); err != nil {
		c.toast("Could not send feedback", ToastError)
		return fmt.Errorf("submit feedback: %w", err)
	}
	c.toast("Feedback sent!", ToastOK)
	return nil
}
