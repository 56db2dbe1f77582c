package dashboard

import (
	"context"
	"fmt"
	"time"
)

// FeedbackInterval is the default feedback polling period.
const FeedbackInterval = 15 * time.Second

// LoadTeacher renders the class list and toasts every overdue assignment.
func (c *Controller) LoadTeacher(ctx context.Context) ([]string, error) {
	students, err := c.client.ClassStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	lines := make([]string, 0, len(students))
	for _, s := range students {
		lines = append(lines, fmt.Sprintf("%s %s <%s>", s.Firstname, s.Lastname, s.Email))
	}

	overdue, err := c.client.Overdue(ctx)
	if err != nil {
		return lines, fmt.Errorf("load overdue: %w", err)
	}
	for _, o := range overdue {
		c.toast(fmt.Sprintf("⏰ %s overdue: %s", o.StudentEmail, o.Title), ToastError)
	}
	return lines, nil
}

// PollFeedback polls for feedback newer than lastID, toasting each new
// entry, until ctx is cancelled. Failed polls are retried on the next
// tick. It returns the highest id seen.
func (c *Controller) PollFeedback(ctx context.Context, interval time.Duration, lastID int64) int64 {
	if interval <= 0 {
		interval = FeedbackInterval
	}
	for {
		lastID = c.pollOnce(ctx, lastID)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastID
		case <-timer.C:
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context, lastID int64) int64 {
	fb, err := c.client.FeedbackSince(ctx, lastID)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("poll feedback", "since", lastID, "error", err)
		}
		return lastID
	}
	for _, f := range fb {
		c.toast("💬 New feedback from "+f.StudentEmail, ToastOK)
		lastID = max(lastID, f.ID)
	}
	return lastID
}
