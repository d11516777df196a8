// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Rule errors.
	ErrNonSpecificRule = errors.New("rule has no match predicates")

	// Template resolution errors.
	ErrUnknownDestination = errors.New("unknown named destination")

	// Executor errors.
	ErrSourceMissing      = errors.New("source file missing")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCrossDeviceFailure = errors.New("cross-device move failed")

	// Undo errors.
	ErrDestinationGone = errors.New("destination no longer exists")
	ErrAlreadyUndone   = errors.New("operation already undone")

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
