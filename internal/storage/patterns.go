package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
)

// UpsertPattern records one observation of a (signal, pattern, destination)
// triple. A new row starts at one occurrence; an existing row's occurrence
// count is incremented and its confidence recomputed. Confidence only ever
// rises for a given key.
func (s *SQLiteStorage) UpsertPattern(ctx context.Context, sig model.SignalType, pattern, destination string, usedAt time.Time) (*model.TrackedPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSignal(sig); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	if err := validateString(destination, "destination"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tracked, err := s.upsertPatternTx(ctx, tx, sig, pattern, destination, usedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pattern upsert: %w", err)
	}

	return tracked, nil
}

func (s *SQLiteStorage) upsertPatternTx(ctx context.Context, tx *sql.Tx, sig model.SignalType, pattern, destination string, usedAt time.Time) (*model.TrackedPattern, error) {
	if usedAt.IsZero() {
		usedAt = time.Now().UTC()
	}

	// Occurrences drive confidence; compute it in Go so the saturating
	// function lives in one place (model.PatternConfidence).
	var tracked model.TrackedPattern
	err := tx.QueryRowContext(ctx, `
		SELECT id, occurrences FROM tracked_patterns
		WHERE type = ? AND pattern = ? AND destination = ?
	`, string(sig), pattern, destination).Scan(&tracked.ID, &tracked.Occurrences)

	switch {
	case err == sql.ErrNoRows:
		tracked.Occurrences = 1
		tracked.Confidence = model.PatternConfidence(1)
		result, insErr := tx.ExecContext(ctx, `
			INSERT INTO tracked_patterns (type, pattern, destination, occurrences, confidence, last_used)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(sig), pattern, destination, tracked.Occurrences, tracked.Confidence, usedAt.UTC())
		if insErr != nil {
			return nil, fmt.Errorf("failed to insert tracked pattern: %w", insErr)
		}
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return nil, fmt.Errorf("failed to get tracked pattern ID: %w", idErr)
		}
		tracked.ID = id
	case err != nil:
		return nil, fmt.Errorf("failed to look up tracked pattern: %w", err)
	default:
		tracked.Occurrences++
		tracked.Confidence = model.PatternConfidence(tracked.Occurrences)
		_, updErr := tx.ExecContext(ctx, `
			UPDATE tracked_patterns
			SET occurrences = ?, confidence = ?, last_used = ?
			WHERE id = ?
		`, tracked.Occurrences, tracked.Confidence, usedAt.UTC(), tracked.ID)
		if updErr != nil {
			return nil, fmt.Errorf("failed to update tracked pattern: %w", updErr)
		}
	}

	tracked.Type = sig
	tracked.Pattern = pattern
	tracked.Destination = destination
	tracked.LastUsed = usedAt
	return &tracked, nil
}

const patternColumns = `id, type, pattern, destination, occurrences, confidence, last_used`

// PatternsAbove returns tracked patterns at or above the given confidence,
// highest confidence first.
func (s *SQLiteStorage) PatternsAbove(ctx context.Context, minConfidence float64) ([]model.TrackedPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+patternColumns+` FROM tracked_patterns
		WHERE confidence >= ?
		ORDER BY confidence DESC, occurrences DESC, id ASC
	`, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanPatterns(rows)
}

// AllPatterns returns every tracked pattern, highest confidence first.
func (s *SQLiteStorage) AllPatterns(ctx context.Context) ([]model.TrackedPattern, error) {
	return s.PatternsAbove(ctx, 0)
}

// DeletePatternsForDestination removes all tracked patterns targeting a
// destination, used when a suggested rule for that destination is accepted
// so the same history is not re-suggested.
func (s *SQLiteStorage) DeletePatternsForDestination(ctx context.Context, destination string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(destination, "destination"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tracked_patterns WHERE destination = ?`, destination)
	if err != nil {
		return fmt.Errorf("failed to delete tracked patterns: %w", err)
	}
	return nil
}

func scanPatterns(rows *sql.Rows) ([]model.TrackedPattern, error) {
	var patterns []model.TrackedPattern
	for rows.Next() {
		var p model.TrackedPattern
		var sigType string
		err := rows.Scan(
			&p.ID, &sigType, &p.Pattern, &p.Destination,
			&p.Occurrences, &p.Confidence, &p.LastUsed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked pattern: %w", err)
		}
		p.Type = model.SignalType(sigType)
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked patterns: %w", err)
	}
	return patterns, nil
}
