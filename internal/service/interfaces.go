// Package service defines the persistence contracts shared by the
// application's components.
package service

import (
	"context"
	"time"

	"github.com/Idosegev23/finhealer/internal/model"
)

// TransactionFilter narrows a transaction query. Zero values mean no filter;
// StartDate is inclusive and EndDate exclusive.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    model.TransactionStatus
	Direction model.Direction
	Vendor    string // normalized
	Limit     int
	Offset    int
}

// UserStore persists accounts and their onboarding phase.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserPhase(ctx context.Context, userID string, phase model.Phase) error
	UpdateUserProfile(ctx context.Context, user *model.User) error
	SaveReflection(ctx context.Context, userID, text string) error
}

// TransactionStore persists transactions. Every call is scoped to one user.
type TransactionStore interface {
	// SaveTransactions inserts new transactions, skips duplicates by hash and
	// returns the rows actually inserted.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	// SetTransactionStatus moves one transaction out of proposed.
	SetTransactionStatus(ctx context.Context, userID, id string, status model.TransactionStatus, category string) error
	// SetProposedCategory records a suggestion without changing the status.
	SetProposedCategory(ctx context.Context, userID, id, category string) error
	// ConfirmVendorTransactions confirms every proposed transaction of a vendor.
	ConfirmVendorTransactions(ctx context.Context, userID, vendor, category string) (int, error)
	// GetCategorySummary sums confirmed expenses per category in [start, end).
	GetCategorySummary(ctx context.Context, userID string, start, end time.Time) (map[string]float64, error)
	// GetMonthlyTotals sums confirmed amounts per YYYY-MM and direction in [start, end).
	GetMonthlyTotals(ctx context.Context, userID string, start, end time.Time) ([]MonthlyTotal, error)
}

// PatternStore persists learned vendor rules.
type PatternStore interface {
	// GetVendorPattern returns common.ErrNotFound when no rule exists.
	GetVendorPattern(ctx context.Context, userID, vendor string) (*model.VendorPattern, error)
	SaveVendorPattern(ctx context.Context, pattern *model.VendorPattern) error
	// DeleteVendorPattern returns common.ErrNotFound when no rule exists.
	DeleteVendorPattern(ctx context.Context, userID, vendor string) error
	ListVendorPatterns(ctx context.Context, userID string) ([]model.VendorPattern, error)
}

// ConversationStore persists router state between messages.
type ConversationStore interface {
	// GetConversationState returns an empty state when none is stored.
	GetConversationState(ctx context.Context, userID string) (*model.ConversationState, error)
	SaveConversationState(ctx context.Context, state *model.ConversationState) error
}

// RecordStore persists the flat financial records the dashboard edits.
type RecordStore interface {
	CreateLoan(ctx context.Context, loan *model.Loan) error
	ListLoans(ctx context.Context, userID string, activeOnly bool) ([]model.Loan, error)
	UpdateLoan(ctx context.Context, loan *model.Loan) error
	DeactivateLoan(ctx context.Context, userID, id string) error

	CreateIncomeSource(ctx context.Context, src *model.IncomeSource) error
	ListIncomeSources(ctx context.Context, userID string, activeOnly bool) ([]model.IncomeSource, error)
	UpdateIncomeSource(ctx context.Context, src *model.IncomeSource) error
	DeactivateIncomeSource(ctx context.Context, userID, id string) error

	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, userID, id string) (*model.Goal, error)
	ListGoals(ctx context.Context, userID string, activeOnly bool) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, goal *model.Goal) error
	DeactivateGoal(ctx context.Context, userID, id string) error

	CreateConsolidationRequest(ctx context.Context, req *model.ConsolidationRequest) error
	GetConsolidationRequest(ctx context.Context, userID, id string) (*model.ConsolidationRequest, error)
	ListConsolidationRequests(ctx context.Context, userID string) ([]model.ConsolidationRequest, error)
	// UpdateConsolidationStatus returns common.ErrInvalidTransition for a
	// move the status machine forbids.
	UpdateConsolidationStatus(ctx context.Context, userID, id string, status model.ConsolidationStatus) error

	SaveBudget(ctx context.Context, budget *model.Budget) error
	ListBudgets(ctx context.Context, userID string) ([]model.Budget, error)
}

// AlertStore persists job notifications.
type AlertStore interface {
	// SaveAlert inserts an alert and reports false when its key already exists.
	SaveAlert(ctx context.Context, alert *model.Alert) (bool, error)
	ListAlerts(ctx context.Context, userID string, limit int) ([]model.Alert, error)
}

// Storage is the full persistence layer.
type Storage interface {
	UserStore
	TransactionStore
	PatternStore
	ConversationStore
	RecordStore
	AlertStore

	Migrate(ctx context.Context) error
	Close() error
}

// MonthlyTotal is the confirmed sum of one direction in one month.
type MonthlyTotal struct {
	Month     string // YYYY-MM
	Direction model.Direction
	Amount    float64
	Count     int
}
