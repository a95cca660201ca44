package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Validation errors. All wrap common.ErrValidation.
var (
	ErrNilContext         = fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	ErrEmptyString        = fmt.Errorf("%w: string parameter cannot be empty", common.ErrValidation)
	ErrNilParameter       = fmt.Errorf("%w: parameter cannot be nil", common.ErrValidation)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date must be before end date", common.ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", common.ErrValidation)
	ErrInvalidTransaction = fmt.Errorf("%w: invalid transaction", common.ErrValidation)
	ErrInvalidPattern     = fmt.Errorf("%w: invalid vendor pattern", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateUserScope(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return validateString(userID, "userID")
}

func validateDateRange(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidDateRange
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	switch {
	case txn.ID == "":
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	case txn.UserID == "":
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	case txn.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	case txn.NormalizedVendor == "":
		return fmt.Errorf("%w: missing vendor", ErrInvalidTransaction)
	case txn.Hash == "":
		return fmt.Errorf("%w: missing hash", ErrInvalidTransaction)
	case txn.Amount < 0:
		return fmt.Errorf("%w: negative amount", ErrInvalidTransaction)
	case txn.Direction != model.DirectionIncome && txn.Direction != model.DirectionExpense:
		return fmt.Errorf("%w: direction %q", ErrInvalidTransaction, txn.Direction)
	case !txn.Status.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidStatus, txn.Status)
	case !txn.Source.Valid():
		return fmt.Errorf("%w: source %q", ErrInvalidTransaction, txn.Source)
	case txn.Status == model.StatusConfirmed && txn.Category == "":
		return fmt.Errorf("%w: confirmed without category", ErrInvalidTransaction)
	}
	return nil
}

// maxStoredConfidence is the hard ceiling; policy may set a lower one.
const maxStoredConfidence = 100

func validatePattern(p *model.VendorPattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	switch {
	case p.UserID == "" || p.Vendor == "" || p.Category == "":
		return fmt.Errorf("%w: missing user, vendor or category", ErrInvalidPattern)
	case p.Confidence < 0 || p.Confidence > maxStoredConfidence:
		return fmt.Errorf("%w: confidence %d out of range", ErrInvalidPattern, p.Confidence)
	case p.ConfirmationCount < 0:
		return fmt.Errorf("%w: negative confirmation count", ErrInvalidPattern)
	}
	return nil
}
