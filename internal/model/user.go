// Package model defines the core domain models used throughout the application.
package model

import "time"

// Phase is a user's stage in the onboarding/engagement sequence.
type Phase string

// Phases in their fixed order. Monitoring is terminal.
const (
	PhaseReflection     Phase = "reflection"
	PhaseDataCollection Phase = "data_collection"
	PhaseBehavior       Phase = "behavior"
	PhaseBudget         Phase = "budget"
	PhaseGoals          Phase = "goals"
	PhaseMonitoring     Phase = "monitoring"
)

var phaseOrder = []Phase{
	PhaseReflection,
	PhaseDataCollection,
	PhaseBehavior,
	PhaseBudget,
	PhaseGoals,
	PhaseMonitoring,
}

// Phases returns the phases in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p.index() >= 0
}

func (p Phase) index() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Next returns the following phase. Monitoring returns itself.
func (p Phase) Next() Phase {
	i := p.index()
	if i < 0 {
		return PhaseReflection
	}
	if i == len(phaseOrder)-1 {
		return p
	}
	return phaseOrder[i+1]
}

// Before reports whether p comes strictly before other.
func (p Phase) Before(other Phase) bool {
	return p.index() < other.index()
}

// User is a Phi account, identified on WhatsApp by phone number.
type User struct {
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ID              string    `json:"id"`
	Phone           string    `json:"phone"`
	Name            string    `json:"name"`
	Phase           Phase     `json:"phase"`
	PlaidToken      string    `json:"-"`
	Reflection      string    `json:"reflection,omitempty"` // free-text answer from the reflection phase
	MonthlyIncome   float64   `json:"monthly_income"`
	MonthlyExpenses float64   `json:"monthly_expenses"`
	MonthlyBudget   float64   `json:"monthly_budget"`
}
