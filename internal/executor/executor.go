// Package executor applies suggestions to the real filesystem and records
// committed operations in the append-only log.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
)

// Config controls one executor instance, scoped to a single run.
type Config struct {
	Log       service.OperationLog
	BatchID   string
	TrashDir  string
	Overwrite bool
}

// Executor applies suggestions to the filesystem. Filesystem mutation is
// serialized per destination path within the run; the unique-name loop is
// not safe against concurrent external writers, which is an accepted
// limitation rather than a guarantee.
type Executor struct {
	log       service.OperationLog
	locks     *pathLocks
	batchID   string
	trashDir  string
	overwrite bool
}

// NewExecutor creates an executor for one run.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("%w: operation log", common.ErrMissingConfig)
	}
	if cfg.BatchID == "" {
		return nil, fmt.Errorf("%w: batch ID", common.ErrMissingConfig)
	}

	trashDir := cfg.TrashDir
	if trashDir == "" {
		trashDir = platformTrashDir()
	}

	return &Executor{
		log:       cfg.Log,
		batchID:   cfg.BatchID,
		trashDir:  trashDir,
		overwrite: cfg.Overwrite,
		locks:     newPathLocks(),
	}, nil
}

// Execute applies one suggestion. On success the committed operation has
// already been appended to the log. On failure the error is classified
// (SourceMissing, PermissionDenied, CrossDeviceFailure, or passed through)
// and no log record is written: operations are logged only for actions that
// actually changed filesystem state.
func (e *Executor) Execute(ctx context.Context, suggestion model.Suggestion) (*model.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if suggestion.IsDelete() {
		return e.executeDelete(ctx, suggestion)
	}
	return e.executeMove(ctx, suggestion)
}

func (e *Executor) executeMove(ctx context.Context, suggestion model.Suggestion) (*model.Operation, error) {
	if suggestion.Destination == "" {
		return nil, fmt.Errorf("suggestion for %s has no destination", suggestion.File.Path)
	}

	destination, err := e.place(suggestion.File.Path, suggestion.Destination)
	if err != nil {
		return nil, err
	}

	op := &model.Operation{
		BatchID:     e.batchID,
		Type:        model.OperationMove,
		Source:      suggestion.File.Path,
		Destination: destination,
		RuleName:    suggestion.RuleName,
		Confidence:  &suggestion.Confidence,
	}
	if _, err := e.log.AppendOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("moved %s but failed to record operation: %w", destination, err)
	}
	return op, nil
}

// executeDelete soft-deletes by relocating the file into the trash
// directory, so delete operations are undoable through the same move-based
// path as everything else.
func (e *Executor) executeDelete(ctx context.Context, suggestion model.Suggestion) (*model.Operation, error) {
	trashed := filepath.Join(e.trashDir, suggestion.File.Name)
	destination, err := e.place(suggestion.File.Path, trashed)
	if err != nil {
		return nil, err
	}

	op := &model.Operation{
		BatchID:     e.batchID,
		Type:        model.OperationDelete,
		Source:      suggestion.File.Path,
		Destination: destination,
		RuleName:    suggestion.RuleName,
		Confidence:  &suggestion.Confidence,
	}
	if _, err := e.log.AppendOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("trashed %s but failed to record operation: %w", destination, err)
	}
	return op, nil
}

// place moves source to the requested destination, creating parent
// directories and resolving collisions, and returns the path actually used.
func (e *Executor) place(source, requested string) (string, error) {
	unlock := e.locks.lock(filepath.Dir(requested))
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(requested), 0750); err != nil {
		return "", classify(err)
	}

	destination := requested
	if !e.overwrite {
		var err error
		destination, err = uniquePath(requested)
		if err != nil {
			return "", classify(err)
		}
	}

	if err := Move(source, destination); err != nil {
		return "", err
	}
	return destination, nil
}

// uniquePath returns requested if it is free, otherwise the first sibling
// name with an incrementing " (n)" counter before the extension that does
// not exist at call time.
func uniquePath(requested string) (string, error) {
	_, err := os.Lstat(requested)
	if os.IsNotExist(err) {
		return requested, nil
	}
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

// Move renames source to destination, falling back to copy-then-delete on
// cross-device errors. If the delete after a successful copy fails, the
// failure is surfaced but the copy remains. Undo uses the same semantics in
// the opposite direction.
func Move(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return classify(err)
	}

	if copyErr := copyFile(source, destination); copyErr != nil {
		// All-or-nothing: drop the partial copy before reporting.
		_ = os.Remove(destination)
		return fmt.Errorf("%w: %v", common.ErrCrossDeviceFailure, copyErr)
	}
	if rmErr := os.Remove(source); rmErr != nil {
		return fmt.Errorf("%w: copied to %s but failed to remove source: %v",
			common.ErrCrossDeviceFailure, destination, rmErr)
	}
	return nil
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// classify maps raw filesystem errors onto the executor error taxonomy.
// Errors outside the taxonomy pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %v", common.ErrSourceMissing, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	case isCrossDevice(err):
		return fmt.Errorf("%w: %v", common.ErrCrossDeviceFailure, err)
	default:
		return err
	}
}

// pathLocks serializes filesystem mutation per destination directory.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) lock(dir string) func() {
	p.mu.Lock()
	m, ok := p.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		p.locks[dir] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
