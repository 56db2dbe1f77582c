package dashboard

import (
	"context"
	"fmt"
	"time"
)

// Quote is a financial quote with its author.
type Quote struct {
	Text   string
	Author string
}

var quotes = []Quote{
	{"“A budget is telling your money where to go instead of wondering where it went.”", "– Dave Ramsey"},
	{"“Beware of little expenses; a small leak will sink a great ship.”", "– Ben Franklin"},
	{"“Do not save what is left after spending, but spend what is left after saving.”", "– Warren Buffett"},
	{"“Money looks better in the bank than on your feet.”", "– Sophia Amoruso"},
	{"“The quickest way to double your money is to fold it over and put it back in your pocket.”", "– Will Rogers"},
}

const week = 7 * 24 * time.Hour

// WeeklyQuote returns the quote for the week containing now. The quote
// changes every 7 days counted from the Unix epoch.
func WeeklyQuote(now time.Time) Quote {
	idx := (now.UnixMilli() / week.Milliseconds()) % int64(len(quotes))
	if idx < 0 {
		idx += int64(len(quotes))
	}
	return quotes[idx]
}

// Badge names awarded by weekly metrics.
const (
	BadgeGoalCrusher   = "🏅 Goal Crusher"
	BadgeBudgetBoss    = "💰 Budget Boss"
	BadgeAssignmentAce = "📘 Assignment Ace"
)

// Rewards is the rendered rewards page.
type Rewards struct {
	Badges  []string
	Message string
}

// LoadRewardsPage fetches the user and this week's metrics and derives the
// badges. Meeting every target adds a personal message.
func (c *Controller) LoadRewardsPage(ctx context.Context) (Rewards, error) {
	user, err := c.client.UserInfo(ctx)
	if err != nil {
		return Rewards{}, fmt.Errorf("load rewards page: %w", err)
	}
	metrics, err := c.client.WeekMetrics(ctx)
	if err != nil {
		return Rewards{}, fmt.Errorf("load rewards page: %w", err)
	}

	var r Rewards
	if metrics.GoalMet {
		r.Badges = append(r.Badges, BadgeGoalCrusher)
	}
	if metrics.BudgetMet {
		r.Badges = append(r.Badges, BadgeBudgetBoss)
	}
	if metrics.AssignMet {
		r.Badges = append(r.Badges, BadgeAssignmentAce)
	}
	if metrics.AllMet() {
		r.Message = fmt.Sprintf("🎉 Great job %s! You nailed all weekly targets.", user.Firstname)
	}
	return r, nil
}
