package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionStatus is the review state of a transaction.
type TransactionStatus string

// Transaction statuses. Confirmed and rejected are terminal.
const (
	StatusProposed  TransactionStatus = "proposed"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusRejected  TransactionStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusProposed, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a transaction may move from s to next.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	return s == StatusProposed && (next == StatusConfirmed || next == StatusRejected)
}

// TransactionSource records where a transaction came from.
type TransactionSource string

// Transaction sources.
const (
	SourceOCR    TransactionSource = "ocr"
	SourceManual TransactionSource = "manual"
	SourceExcel  TransactionSource = "excel"
	SourceOFX    TransactionSource = "ofx"
)

// Valid reports whether s is a known source.
func (s TransactionSource) Valid() bool {
	switch s {
	case SourceOCR, SourceManual, SourceExcel, SourceOFX:
		return true
	}
	return false
}

// Direction is money in or out.
type Direction string

// Directions.
const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Transaction is one line of a user's financial history.
type Transaction struct {
	Date             time.Time         `json:"date"`
	CreatedAt        time.Time         `json:"created_at"`
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Vendor           string            `json:"vendor"` // raw text from the source
	NormalizedVendor string            `json:"normalized_vendor"`
	Category         string            `json:"category"`
	Hash             string            `json:"hash"`
	Direction        Direction         `json:"direction"`
	Status           TransactionStatus `json:"status"`
	Source           TransactionSource `json:"source"`
	Amount           float64           `json:"amount"` // always positive; Direction carries the sign
}

// GenerateHash creates a per-user fingerprint for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		t.UserID,
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.NormalizedVendor,
		t.Direction)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// MonthKey returns the calendar month of the transaction as YYYY-MM.
func (t *Transaction) MonthKey() string {
	return t.Date.Format("2006-01")
}
