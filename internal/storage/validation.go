package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidSignal    = errors.New("invalid signal type")
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

// validateOperation validates a single operation record.
func validateOperation(op *model.Operation) error {
	if op == nil {
		return fmt.Errorf("%w: operation", ErrNilParameter)
	}
	if op.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidOperation)
	}
	if op.BatchID == "" {
		return fmt.Errorf("%w: missing batch ID", ErrInvalidOperation)
	}
	switch op.Type {
	case model.OperationMove, model.OperationCopy:
		if op.Destination == "" {
			return fmt.Errorf("%w: %s requires a destination", ErrInvalidOperation, op.Type)
		}
	case model.OperationDelete:
		if op.Destination == "" {
			return fmt.Errorf("%w: delete requires the trash destination", ErrInvalidOperation)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
	return nil
}

// validateSignal validates a pattern signal type.
func validateSignal(sig model.SignalType) error {
	switch sig {
	case model.SignalExtension, model.SignalFilename, model.SignalFolder:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSignal, sig)
}
