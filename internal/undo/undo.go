// Package undo reverses committed operations using the operation log.
package undo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/executor"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
)

// Manager reverses logged operations. Reversal is best-effort per batch: a
// failed item is reported and left active, and remaining items are still
// attempted.
type Manager struct {
	log service.OperationLog
	now func() time.Time
}

// NewManager creates an undo manager over the operation log.
func NewManager(log service.OperationLog) *Manager {
	return &Manager{
		log: log,
		now: time.Now,
	}
}

// UndoLast reverses the n most recent active operations, newest first, and
// reports the outcome per operation. An operation is marked undone only
// after its physical reversal succeeds.
func (m *Manager) UndoLast(ctx context.Context, n int) ([]service.UndoResult, error) {
	if n <= 0 {
		n = 1
	}

	ops, err := m.log.RecentOperations(ctx, n, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent operations: %w", err)
	}

	results := make([]service.UndoResult, 0, len(ops))
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, m.undoOne(ctx, op))
	}
	return results, nil
}

// UndoBatch reverses every active operation recorded under one run,
// newest first.
func (m *Manager) UndoBatch(ctx context.Context, batchID string) ([]service.UndoResult, error) {
	ops, err := m.log.OperationsByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch operations: %w", err)
	}

	results := make([]service.UndoResult, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !ops[i].Active() {
			results = append(results, service.UndoResult{
				Operation: ops[i],
				Outcome:   service.UndoSkipped,
				Err:       common.ErrAlreadyUndone,
			})
			continue
		}
		results = append(results, m.undoOne(ctx, ops[i]))
	}
	return results, nil
}

func (m *Manager) undoOne(ctx context.Context, op model.Operation) service.UndoResult {
	if err := m.reverse(op); err != nil {
		common.LogError(err, "failed to reverse operation", common.Fields{
			"operation_id": op.ID,
			"type":         op.Type,
		})
		return service.UndoResult{Operation: op, Outcome: service.UndoFailed, Err: err}
	}

	if err := m.log.MarkUndone(ctx, op.ID, m.now()); err != nil {
		// The file came back but the log still shows the op active; the
		// caller has to see this.
		return service.UndoResult{Operation: op, Outcome: service.UndoFailed,
			Err: fmt.Errorf("reversed but failed to mark undone: %w", err)}
	}

	slog.Debug("Reversed operation", "operation_id", op.ID, "type", op.Type, "source", op.Source)
	return service.UndoResult{Operation: op, Outcome: service.UndoReverted}
}

// reverse physically undoes one operation. Moves and deletes are reversed
// by moving destination back to source (deletes come back out of the
// trash); copies are reversed by removing the copy.
func (m *Manager) reverse(op model.Operation) error {
	switch op.Type {
	case model.OperationMove, model.OperationDelete:
		return moveBack(op.Destination, op.Source)
	case model.OperationCopy:
		if err := os.Remove(op.Destination); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", common.ErrDestinationGone, op.Destination)
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("cannot reverse operation type %q", op.Type)
	}
}

func moveBack(destination, source string) error {
	if _, err := os.Lstat(destination); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", common.ErrDestinationGone, destination)
	}

	if err := os.MkdirAll(filepath.Dir(source), 0750); err != nil {
		return err
	}
	return executor.Move(destination, source)
}
