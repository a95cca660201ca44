// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned across a package boundary wraps one of
// these so callers can map it with errors.Is.
var (
	// ErrUnauthorized means a missing or invalid user session or shared secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation means malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the entity is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrUpstream means the datastore or a third-party service failed.
	ErrUpstream = errors.New("upstream failure")
	// ErrLogic means an invariant was violated. It must never reach a user.
	ErrLogic = errors.New("logic error")
)

// Secondary errors.
var (
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoTransactions    = errors.New("no transactions")
	ErrMissingConfig     = errors.New("missing configuration")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps err as an ErrUpstream, keeping the cause for logs.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
