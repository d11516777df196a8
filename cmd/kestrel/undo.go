package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/cli"
	"github.com/kestrelhq/kestrel/internal/service"
	"github.com/kestrelhq/kestrel/internal/undo"
)

func undoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo [n]",
		Short: "Reverse recent file operations",
		Long: `Reverse the most recent operations, newest first. Moves go back to where
the file came from and deleted files come back out of the trash. Pass a
count to undo several operations, or --batch to undo a whole run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUndo,
	}

	cmd.Flags().String("batch", "", "Undo every operation from one run")
	return cmd
}

func runUndo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	n := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid count %q: expected a positive number", args[0])
		}
		n = parsed
	}
	batchID, _ := cmd.Flags().GetString("batch")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	manager := undo.NewManager(store)
	var results []service.UndoResult
	if batchID != "" {
		results, err = manager.UndoBatch(ctx, batchID)
	} else {
		results, err = manager.UndoLast(ctx, n)
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println(cli.FormatWarning("Nothing to undo."))
		return nil
	}

	failed := 0
	for _, result := range results {
		op := result.Operation
		switch result.Outcome {
		case service.UndoReverted:
			fmt.Println("  " + cli.FormatSuccess(fmt.Sprintf("restored %s", op.Source)))
		case service.UndoSkipped:
			fmt.Println("  " + cli.SubtleStyle.Render(fmt.Sprintf("already undone: %s", op.Source)))
		case service.UndoFailed:
			failed++
			fmt.Println("  " + cli.FormatError(fmt.Sprintf("%s: %v", op.Source, result.Err)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d operations could not be reversed", failed, len(results))
	}
	return nil
}
