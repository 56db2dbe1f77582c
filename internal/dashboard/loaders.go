package dashboard

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/debuck1718/smartstudent/internal/model"
)

// View is the rendered state of the dashboard widgets.
type View struct {
	Assignments []string
	Budget      []string
	Goal        string
	Rewards     []string
}

// DueFormat renders due times in assignment lines.
const DueFormat = "Jan 2, 2006 3:04 PM"

// View returns the most recently loaded widgets.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// LoadAssignments fetches and renders the assignment list.
func (c *Controller) LoadAssignments(ctx context.Context) ([]string, error) {
	list, err := c.client.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	lines := make([]string, 0, len(list))
	for _, a := range list {
		due := a.DueDatetime
		if t, err := a.Due(c.cfg.Location); err == nil {
			due = t.In(c.cfg.Location).Format(DueFormat)
		}
		lines = append(lines, fmt.Sprintf("%s – %s (due %s)", a.Title, a.Subject, due))
	}
	c.mu.Lock()
	c.view.Assignments = lines
	c.mu.Unlock()
	return lines, nil
}

// LoadBudget fetches and renders expenses, then runs the budget check.
func (c *Controller) LoadBudget(ctx context.Context) ([]string, error) {
	expenses, err := c.client.Expenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}
	lines := make([]string, 0, len(expenses))
	for _, e := range expenses {
		lines = append(lines, fmt.Sprintf("%s – GH₵%s [%s]", e.Title, strconv.FormatFloat(e.Amount, 'f', -1, 64), e.Type))
	}
	c.mu.Lock()
	c.view.Budget = lines
	c.mu.Unlock()
	c.CheckBudgetStatus(expenses)
	return lines, nil
}

// CheckBudgetStatus congratulates the student when spending stays within
// the savings goal amounts. It reports whether the budget was met.
func (c *Controller) CheckBudgetStatus(expenses []model.Expense) bool {
	var spent, goals float64
	for _, e := range expenses {
		switch e.Type {
		case model.ExpenseTypeExpense:
			spent += e.Amount
		case model.ExpenseTypeGoal:
			goals += e.Amount
		}
	}
	if goals != 0 && spent <= goals {
		c.toast("🎉 You are within this week’s budget!", ToastOK)
		return true
	}
	return false
}

// LoadGoals renders the current goal.
func (c *Controller) LoadGoals(ctx context.Context) (string, error) {
	goals, err := c.client.Goals(ctx)
	if err != nil {
		return "", fmt.Errorf("load goals: %w", err)
	}
	text := "No goal set"
	if len(goals) > 0 {
		text = goals[0].Text
	}
	c.mu.Lock()
	c.view.Goal = text
	c.mu.Unlock()
	return text, nil
}

// LoadRewards renders earned rewards.
func (c *Controller) LoadRewards(ctx context.Context) ([]string, error) {
	rewards, err := c.client.Rewards(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}
	lines := make([]string, 0, len(rewards))
	for _, r := range rewards {
		lines = append(lines, "🏅 "+r.Description)
	}
	c.mu.Lock()
	c.view.Rewards = lines
	c.mu.Unlock()
	return lines, nil
}

// RefreshAll reloads every widget concurrently. Widgets load independently;
// the first error is returned after all loaders finish.
func (c *Controller) RefreshAll(ctx context.Context) (View, error) {
	var g errgroup.Group
	g.Go(func() error { _, err := c.LoadAssignments(ctx); return err })
	g.Go(func() error { _, err := c.LoadBudget(ctx); return err })
	g.Go(func() error { _, err := c.LoadGoals(ctx); return err })
	g.Go(func() error { _, err := c.LoadRewards(ctx); return err })
	err := g.Wait()
	return c.View(), err
}
