package model

// Expense types
const (
	ExpenseTypeExpense = "expense"
	ExpenseTypeGoal    = "goal"
)

type Expense struct {
	ID     int64   `json:"id,omitempty"`
	Title  string  `json:"title"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

type Goal struct {
	ID   int64  `json:"id,omitempty"`
	Text string `json:"text"`
}
