package model

import "time"

// Loan is an outstanding debt the user tracks.
type Loan struct {
	StartDate      time.Time `json:"start_date"`
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Lender         string    `json:"lender"`
	Principal      float64   `json:"principal"`
	Balance        float64   `json:"balance"`
	MonthlyPayment float64   `json:"monthly_payment"`
	InterestRate   float64   `json:"interest_rate"` // annual, percent
	Active         bool      `json:"active"`
}

// IncomeSource is a recurring inflow such as a salary.
type IncomeSource struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"` // salary, freelance, allowance, rent, other
	MonthlyAmount float64   `json:"monthly_amount"`
	Active        bool      `json:"active"`
}

// Goal is a savings target.
type Goal struct {
	Deadline      *time.Time `json:"deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Name          string     `json:"name"`
	AccountID     string     `json:"account_id,omitempty"` // linked savings account, optional
	TargetAmount  float64    `json:"target_amount"`
	CurrentAmount float64    `json:"current_amount"`
	LastMilestone int        `json:"last_milestone"` // last notified percent: 0, 25, 50, 75, 100
	Active        bool       `json:"active"`
}

// Progress returns the completed share of the goal in percent, capped at 100.
func (g *Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := g.CurrentAmount / g.TargetAmount * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// GoalMilestones are the progress percentages that trigger a notification.
var GoalMilestones = []int{25, 50, 75, 100}

// Alert is a persisted notification produced by the alert scan.
type Alert struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"` // dedup key, unique per user
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Magnitude float64   `json:"magnitude"`
}

// Budget is a monthly spending limit. An empty Category is the overall budget.
type Budget struct {
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
}
