// Package storage implements the persistence layer over SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) AppendOperation(ctx context.Context, op *model.Operation) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateOperation(op); err != nil {
		return 0, err
	}
	return t.storage.appendOperationTx(ctx, t.tx, op)
}

func (t *sqliteTransaction) MarkUndone(ctx context.Context, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markUndoneTx(ctx, t.tx, id, at)
}

func (t *sqliteTransaction) RecentOperations(ctx context.Context, n int, activeOnly bool) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.recentOperationsTx(ctx, t.tx, n, activeOnly)
}

func (t *sqliteTransaction) OperationsByBatch(ctx context.Context, batchID string) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}
	return t.storage.operationsByBatchTx(ctx, t.tx, batchID)
}

func (t *sqliteTransaction) OperationCount(ctx context.Context) (int, error) {
	return t.storage.OperationCount(ctx)
}

func (t *sqliteTransaction) UpsertPattern(ctx context.Context, sig model.SignalType, pattern, destination string, usedAt time.Time) (*model.TrackedPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.upsertPatternTx(ctx, t.tx, sig, pattern, destination, usedAt)
}

func (t *sqliteTransaction) PatternsAbove(ctx context.Context, minConfidence float64) ([]model.TrackedPattern, error) {
	return t.storage.PatternsAbove(ctx, minConfidence)
}

func (t *sqliteTransaction) AllPatterns(ctx context.Context) ([]model.TrackedPattern, error) {
	return t.storage.AllPatterns(ctx)
}

func (t *sqliteTransaction) DeletePatternsForDestination(ctx context.Context, destination string) error {
	return t.storage.DeletePatternsForDestination(ctx, destination)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
