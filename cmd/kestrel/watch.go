package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/cli"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/organize"
	"github.com/kestrelhq/kestrel/internal/scan"
	"github.com/kestrelhq/kestrel/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and organize files as they arrive",
		Long: `Watch a directory for new files and organize each one after it settles.

Only matches at or above the confidence floor execute; everything else is
logged as a suggestion for a later 'kestrel organize' pass.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before acting on a file")
	cmd.Flags().Float64("min-confidence", 0, "Confidence floor for execution (default from rules file)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

	rf, err := loadRules()
	if err != nil {
		return err
	}
	if len(rf.Rules) == 0 {
		return fmt.Errorf("no rules defined in %s; nothing to watch with", rulesPath())
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	runner, err := buildRunner(rf, store, dir, organize.RunConfig{
		AutoExecute:   true,
		MinConfidence: minConfidence,
	})
	if err != nil {
		return err
	}

	handler := func(ctx context.Context, path string) error {
		file, err := scan.Describe(path)
		if err != nil {
			return err
		}
		result, err := runner.Run(ctx, []model.FileMetadata{file})
		if err != nil {
			return err
		}
		for _, op := range result.Executed {
			fmt.Printf("%s %s %s %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				op.Source, cli.SubtleStyle.Render("→"), op.Destination)
		}
		for _, pending := range result.Pending {
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf(
				"suggestion: %s → %s (%.0f%%)", pending.File.Name, pending.Destination, pending.Confidence*100)))
		}
		return nil
	}

	watcher, err := watch.NewWatcher(dir, handler, watch.WithDebounce(debounce))
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Watching " + dir))
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
