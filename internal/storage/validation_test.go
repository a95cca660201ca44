package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{name: "valid context", ctx: context.Background()},
		{name: "nil context", ctx: nil, wantErr: true},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "test"},
		{name: "hebrew", str: "שופרסל"},
		{name: "empty", str: "", wantErr: true},
		{name: "whitespace only", str: " \t\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, common.ErrValidation) {
				t.Errorf("validation errors must wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	valid := func() model.Transaction {
		return makeTransaction("u1", "netflix", 49.9, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	}

	tests := []struct {
		mutate  func(*model.Transaction)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.Transaction) {}},
		{name: "missing id", mutate: func(t *model.Transaction) { t.ID = "" }, wantErr: true},
		{name: "missing user", mutate: func(t *model.Transaction) { t.UserID = "" }, wantErr: true},
		{name: "missing date", mutate: func(t *model.Transaction) { t.Date = time.Time{} }, wantErr: true},
		{name: "missing vendor", mutate: func(t *model.Transaction) { t.NormalizedVendor = "" }, wantErr: true},
		{name: "negative amount", mutate: func(t *model.Transaction) { t.Amount = -1 }, wantErr: true},
		{name: "bad direction", mutate: func(t *model.Transaction) { t.Direction = "sideways" }, wantErr: true},
		{name: "bad status", mutate: func(t *model.Transaction) { t.Status = "maybe" }, wantErr: true},
		{name: "bad source", mutate: func(t *model.Transaction) { t.Source = "fax" }, wantErr: true},
		{
			name:    "confirmed without category",
			mutate:  func(t *model.Transaction) { t.Status = model.StatusConfirmed },
			wantErr: true,
		},
		{
			name: "confirmed with category",
			mutate: func(t *model.Transaction) {
				t.Status = model.StatusConfirmed
				t.Category = "מנויים"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid()
			tt.mutate(&txn)
			err := validateTransaction(&txn)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTransaction() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := validateTransaction(nil); err == nil {
		t.Error("nil transaction should fail")
	}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		pattern *model.VendorPattern
		name    string
		wantErr bool
	}{
		{name: "valid", pattern: &model.VendorPattern{UserID: "u", Vendor: "v", Category: "c", Confidence: 60}},
		{name: "nil", pattern: nil, wantErr: true},
		{name: "missing category", pattern: &model.VendorPattern{UserID: "u", Vendor: "v"}, wantErr: true},
		{name: "confidence above 100", pattern: &model.VendorPattern{UserID: "u", Vendor: "v", Category: "c", Confidence: 101}, wantErr: true},
		{name: "negative confidence", pattern: &model.VendorPattern{UserID: "u", Vendor: "v", Category: "c", Confidence: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePattern() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
