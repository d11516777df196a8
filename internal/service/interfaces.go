// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Storage defines the contract for our persistence layer: the append-only
// operation log and the learned-pattern store.
type Storage interface {
	OperationLog
	PatternStore

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// OperationLog records committed filesystem operations. Records are
// append-only; the only permitted mutation is setting undone_at.
type OperationLog interface {
	AppendOperation(ctx context.Context, op *model.Operation) (int64, error)
	MarkUndone(ctx context.Context, id int64, at time.Time) error
	RecentOperations(ctx context.Context, n int, activeOnly bool) ([]model.Operation, error)
	OperationsByBatch(ctx context.Context, batchID string) ([]model.Operation, error)
	OperationCount(ctx context.Context) (int, error)
}

// PatternStore persists tracked (signal -> destination) statistics.
type PatternStore interface {
	UpsertPattern(ctx context.Context, sig model.SignalType, pattern, destination string, usedAt time.Time) (*model.TrackedPattern, error)
	PatternsAbove(ctx context.Context, minConfidence float64) ([]model.TrackedPattern, error)
	AllPatterns(ctx context.Context) ([]model.TrackedPattern, error)
	DeletePatternsForDestination(ctx context.Context, destination string) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RunStats shows the results of one organize run.
type RunStats struct {
	BatchID   string
	Total     int
	Moved     int
	Copied    int
	Deleted   int
	Suggested int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// UndoOutcome identifies what happened to one operation during an undo batch.
type UndoOutcome string

// Undo outcome constants.
const (
	UndoReverted UndoOutcome = "reverted"
	UndoSkipped  UndoOutcome = "skipped"
	UndoFailed   UndoOutcome = "failed"
)

// UndoResult reports the per-operation outcome of an undo batch. Failures
// are reported here rather than aborting the batch.
type UndoResult struct {
	Err       error
	Outcome   UndoOutcome
	Operation model.Operation
}
