package engine

import (
	"context"

	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

// Learner is the part of the learning engine classification depends on.
type Learner interface {
	Suggest(ctx context.Context, userID, vendor string) (*learning.Suggestion, error)
	Confirm(ctx context.Context, userID, vendor, category string) (*model.VendorPattern, error)
}

// BulkStore is the storage the bulk classifier reads and confirms through.
type BulkStore interface {
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
	ConfirmVendorTransactions(ctx context.Context, userID, vendor, category string) (int, error)
}

// IncomingStore is the storage new transactions are written to.
type IncomingStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error)
}
