package model

type Reward struct {
	ID          int64  `json:"id,omitempty"`
	Description string `json:"description"`
}

// WeekMetrics is the weekly target summary returned by /api/metrics/week.
type WeekMetrics struct {
	GoalMet   bool `json:"goalMet"`
	BudgetMet bool `json:"budgetMet"`
	AssignMet bool `json:"assignMet"`
}

// AllMet reports whether every weekly target was reached.
func (w WeekMetrics) AllMet() bool {
	return w.GoalMet && w.BudgetMet && w.AssignMet
}
