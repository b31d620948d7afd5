// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")

	// Validation errors. Raised before a mutation is attempted.
	ErrValidation    = errors.New("validation failed")
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrMissingField  = fmt.Errorf("%w: missing required field", ErrValidation)

	// Remote document store errors.
	ErrUnavailable = errors.New("remote store unavailable")
	ErrRemote      = errors.New("remote store error")
	ErrTimeout     = errors.New("remote call timed out")

	// Session errors.
	ErrNoSession = errors.New("no active session")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
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

// RemoteCallError classifies a remote failure while keeping the cause.
// Kind is one of ErrUnavailable, ErrRemote or ErrTimeout.
type RemoteCallError struct {
	Kind error
	Err  error
	Op   string
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Is reports whether target is the classification of this error.
func (e *RemoteCallError) Is(target error) bool {
	return target == e.Kind
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a transient connectivity failure.
func Unavailable(op string, err error) error {
	return &RemoteCallError{Op: op, Kind: ErrUnavailable, Err: err}
}

// Remote wraps err as a permanent remote failure.
func Remote(op string, err error) error {
	return &RemoteCallError{Op: op, Kind: ErrRemote, Err: err}
}

// ClassifyRemote maps an arbitrary error from a remote call onto the
// Unavailable/Remote/Timeout taxonomy. Already classified errors pass through.
func ClassifyRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRemote) || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteCallError{Op: op, Kind: ErrTimeout, Err: err}
	}
	return Remote(op, err)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
