package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
)

// AppendOperation inserts a committed operation record and returns its ID.
// The record is inserted inside its own transaction so a cancelled run never
// leaves a half-written row.
func (s *SQLiteStorage) AppendOperation(ctx context.Context, op *model.Operation) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateOperation(op); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	id, err := s.appendOperationTx(ctx, tx, op)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit operation: %w", err)
	}

	return id, nil
}

func (s *SQLiteStorage) appendOperationTx(ctx context.Context, tx *sql.Tx, op *model.Operation) (int64, error) {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO operations (
			batch_id, type, source, destination, rule_name, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		op.BatchID, string(op.Type), op.Source,
		nullString(op.Destination), nullString(op.RuleName),
		op.Confidence, op.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append operation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation ID: %w", err)
	}

	op.ID = id
	return id, nil
}

// MarkUndone sets undone_at on an active operation. Marking an operation
// that is already undone returns ErrAlreadyUndone; a missing ID returns
// ErrNotFound.
func (s *SQLiteStorage) MarkUndone(ctx context.Context, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := s.markUndoneTx(ctx, tx, id, at); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit undo mark: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) markUndoneTx(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE operations SET undone_at = ? WHERE id = ? AND undone_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark operation undone: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check undo result: %w", err)
	}
	if affected == 0 {
		var exists int
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM operations WHERE id = ?`, id).Scan(&exists); scanErr != nil {
			return fmt.Errorf("failed to check operation existence: %w", scanErr)
		}
		if exists == 0 {
			return fmt.Errorf("operation %d: %w", id, common.ErrNotFound)
		}
		return fmt.Errorf("operation %d: %w", id, common.ErrAlreadyUndone)
	}

	return nil
}

const operationColumns = `id, batch_id, type, source, destination, rule_name, confidence, created_at, undone_at`

// RecentOperations returns the n most recent operations, newest first. When
// activeOnly is set, operations that have been undone are excluded.
func (s *SQLiteStorage) RecentOperations(ctx context.Context, n int, activeOnly bool) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return s.recentOperationsTx(ctx, tx, n, activeOnly)
}

func (s *SQLiteStorage) recentOperationsTx(ctx context.Context, tx *sql.Tx, n int, activeOnly bool) ([]model.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations`
	if activeOnly {
		query += ` WHERE undone_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := tx.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanOperations(rows)
}

// OperationsByBatch returns every operation recorded under one run's batch ID.
func (s *SQLiteStorage) OperationsByBatch(ctx context.Context, batchID string) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return s.operationsByBatchTx(ctx, tx, batchID)
}

func (s *SQLiteStorage) operationsByBatchTx(ctx context.Context, tx *sql.Tx, batchID string) ([]model.Operation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE batch_id = ? ORDER BY id ASC`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanOperations(rows)
}

// OperationCount returns the total number of logged operations.
func (s *SQLiteStorage) OperationCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

func scanOperations(rows *sql.Rows) ([]model.Operation, error) {
	var ops []model.Operation
	for rows.Next() {
		var op model.Operation
		var opType string
		var destination, ruleName sql.NullString
		var undoneAt sql.NullTime

		err := rows.Scan(
			&op.ID, &op.BatchID, &opType, &op.Source,
			&destination, &ruleName, &op.Confidence,
			&op.CreatedAt, &undoneAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Type = model.OperationType(opType)
		op.Destination = destination.String
		op.RuleName = ruleName.String
		if undoneAt.Valid {
			t := undoneAt.Time
			op.UndoneAt = &t
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
