package undo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/executor"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
	"github.com/kestrelhq/kestrel/internal/storage"
)

func newTestHarness(t *testing.T) (*Manager, *executor.Executor, *storage.SQLiteStorage, string) {
	t.Helper()
	root := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(root, "kestrel.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	exec, err := executor.NewExecutor(executor.Config{
		Log:      store,
		BatchID:  "batch-1",
		TrashDir: filepath.Join(root, "trash"),
	})
	require.NoError(t, err)

	return NewManager(store), exec, store, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func executeMove(t *testing.T, exec *executor.Executor, root, name string) *model.Operation {
	t.Helper()
	source := filepath.Join(root, "in", name)
	writeFile(t, source, name)

	op, err := exec.Execute(context.Background(), model.Suggestion{
		File:        model.FileMetadata{Path: source, Name: name},
		Destination: filepath.Join(root, "out", name),
		RuleName:    "test-rule",
		Action:      model.ActionMove,
		Confidence:  1.0,
	})
	require.NoError(t, err)
	return op
}

func TestManager_UndoLast_RoundTrip(t *testing.T) {
	mgr, exec, store, root := newTestHarness(t)
	ctx := context.Background()

	op := executeMove(t, exec, root, "a.txt")
	source := filepath.Join(root, "in", "a.txt")

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.UndoReverted, results[0].Outcome)

	// File restored to its original path
	assert.FileExists(t, source)
	assert.NoFileExists(t, op.Destination)

	// Log shows the operation undone
	ops, err := store.RecentOperations(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Active())
}

func TestManager_UndoLast_AlreadyUndoneIsNotRepeated(t *testing.T) {
	mgr, exec, _, root := newTestHarness(t)
	ctx := context.Background()

	executeMove(t, exec, root, "a.txt")

	_, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)

	// No active operations remain: a second undo finds nothing to do.
	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	// The restored file is untouched
	assert.FileExists(t, filepath.Join(root, "in", "a.txt"))
}

func TestManager_UndoLast_NewestFirst(t *testing.T) {
	mgr, exec, _, root := newTestHarness(t)
	ctx := context.Background()

	executeMove(t, exec, root, "first.txt")
	executeMove(t, exec, root, "second.txt")

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(root, "in", "second.txt"), results[0].Operation.Source)

	// Only the newest was reversed
	assert.FileExists(t, filepath.Join(root, "in", "second.txt"))
	assert.FileExists(t, filepath.Join(root, "out", "first.txt"))
}

func TestManager_UndoLast_DestinationGone(t *testing.T) {
	mgr, exec, store, root := newTestHarness(t)
	ctx := context.Background()

	op := executeMove(t, exec, root, "a.txt")
	require.NoError(t, os.Remove(op.Destination))

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.UndoFailed, results[0].Outcome)
	assert.True(t, errors.Is(results[0].Err, common.ErrDestinationGone))

	// A failed reversal leaves the operation active
	ops, err := store.RecentOperations(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestManager_UndoLast_BatchContinuesPastFailure(t *testing.T) {
	mgr, exec, _, root := newTestHarness(t)
	ctx := context.Background()

	okOp := executeMove(t, exec, root, "ok.txt")
	goneOp := executeMove(t, exec, root, "gone.txt")
	require.NoError(t, os.Remove(goneOp.Destination))

	results, err := mgr.UndoLast(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	outcomes := map[string]service.UndoOutcome{}
	for _, r := range results {
		outcomes[filepath.Base(r.Operation.Source)] = r.Outcome
	}
	assert.Equal(t, service.UndoFailed, outcomes["gone.txt"])
	assert.Equal(t, service.UndoReverted, outcomes["ok.txt"])

	assert.FileExists(t, filepath.Join(root, "in", "ok.txt"))
	assert.NoFileExists(t, okOp.Destination)
}

func TestManager_UndoLast_Delete_RestoresFromTrash(t *testing.T) {
	mgr, exec, _, root := newTestHarness(t)
	ctx := context.Background()

	source := filepath.Join(root, "in", "junk.tmp")
	writeFile(t, source, "junk")

	op, err := exec.Execute(ctx, model.Suggestion{
		File:       model.FileMetadata{Path: source, Name: "junk.tmp"},
		RuleName:   "cleanup",
		Action:     model.ActionDelete,
		Confidence: 1.0,
	})
	require.NoError(t, err)
	assert.NoFileExists(t, source)

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.UndoReverted, results[0].Outcome)

	assert.FileExists(t, source)
	assert.NoFileExists(t, op.Destination)
}

func appendCopy(t *testing.T, store *storage.SQLiteStorage, source, destination string) *model.Operation {
	t.Helper()
	op := &model.Operation{
		BatchID:     "batch-1",
		Type:        model.OperationCopy,
		Source:      source,
		Destination: destination,
	}
	_, err := store.AppendOperation(context.Background(), op)
	require.NoError(t, err)
	return op
}

func TestManager_UndoLast_Copy_RemovesCopy(t *testing.T) {
	mgr, _, store, root := newTestHarness(t)
	ctx := context.Background()

	source := filepath.Join(root, "in", "a.txt")
	destination := filepath.Join(root, "out", "a.txt")
	writeFile(t, source, "data")
	writeFile(t, destination, "data")
	appendCopy(t, store, source, destination)

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.UndoReverted, results[0].Outcome)

	// Reversing a copy deletes the copy; the original stays put.
	assert.NoFileExists(t, destination)
	assert.FileExists(t, source)

	ops, err := store.RecentOperations(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Active())
}

func TestManager_UndoLast_Copy_DestinationGone(t *testing.T) {
	mgr, _, store, root := newTestHarness(t)
	ctx := context.Background()

	source := filepath.Join(root, "in", "a.txt")
	writeFile(t, source, "data")
	appendCopy(t, store, source, filepath.Join(root, "out", "a.txt"))

	results, err := mgr.UndoLast(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.UndoFailed, results[0].Outcome)
	assert.True(t, errors.Is(results[0].Err, common.ErrDestinationGone))

	// The operation stays active so a later retry is still possible.
	ops, err := store.RecentOperations(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestManager_UndoBatch(t *testing.T) {
	mgr, exec, _, root := newTestHarness(t)
	ctx := context.Background()

	executeMove(t, exec, root, "a.txt")
	executeMove(t, exec, root, "b.txt")

	results, err := mgr.UndoBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, service.UndoReverted, r.Outcome)
	}

	assert.FileExists(t, filepath.Join(root, "in", "a.txt"))
	assert.FileExists(t, filepath.Join(root, "in", "b.txt"))

	// A second batch undo reports skips rather than re-moving files.
	results, err = mgr.UndoBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, service.UndoSkipped, r.Outcome)
	}
}
