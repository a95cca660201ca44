package sheets

import (
	"context"
	"log/slog"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

// TransactionReader loads a user's transactions.
type TransactionReader interface {
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
}

// Exporter builds a report from storage and hands it to a writer.
type Exporter struct {
	store  TransactionReader
	writer ReportWriter
	logger *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(store TransactionReader, writer ReportWriter) *Exporter {
	return &Exporter{
		store:  store,
		writer: writer,
		logger: slog.Default().With("component", "exporter"),
	}
}

// Export writes the user's confirmed transactions in [start, end).
func (e *Exporter) Export(ctx context.Context, userID string, start, end time.Time) (*Report, error) {
	if userID == "" {
		return nil, common.Validationf("user is required")
	}
	if !end.After(start) {
		return nil, common.Validationf("export range is empty: %s to %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	txns, err := e.store.GetTransactions(ctx, userID, service.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
		Status:    model.StatusConfirmed,
	})
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, common.ErrNoTransactions
	}

	report := BuildReport(txns, DateRange{Start: start, End: end})
	if err := e.writer.Write(ctx, report); err != nil {
		return nil, err
	}
	e.logger.Info("Exported report", "user_id", userID, "rows", len(report.Transactions))
	return report, nil
}
