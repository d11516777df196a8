package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/cli"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/organize"
	"github.com/kestrelhq/kestrel/internal/scan"
)

func organizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organize [dir]",
		Short: "Organize files in a directory",
		Long: `Scan a directory, match files against your rules, and organize them.

High-confidence rule matches execute immediately when --auto is set; every
other match is shown as a suggestion. Use --accept to also execute the
suggestions, which feeds them into kestrel's learning loop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOrganize,
	}

	cmd.Flags().BoolP("dry-run", "n", false, "Show what would happen without touching anything")
	cmd.Flags().Bool("auto", false, "Execute high-confidence matches without asking")
	cmd.Flags().Bool("accept", false, "Execute pending suggestions after the run")
	cmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().Float64("min-confidence", 0, "Confidence floor for automatic execution (default from rules file)")
	return cmd
}

func runOrganize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	auto, _ := cmd.Flags().GetBool("auto")
	accept, _ := cmd.Flags().GetBool("accept")
	recursive, _ := cmd.Flags().GetBool("recursive")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

	rf, err := loadRules()
	if err != nil {
		return err
	}
	if len(rf.Rules) == 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("No rules found in %s. Use 'kestrel rules suggest' after organizing manually.", rulesPath())))
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	files, err := scan.NewScanner(scan.WithRecursive(recursive)).Scan(ctx, dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println(cli.FormatSuccess("Nothing to organize."))
		return nil
	}

	var bar *progressbar.ProgressBar
	runner, err := buildRunner(rf, store, dir, organize.RunConfig{
		DryRun:        dryRun,
		AutoExecute:   auto,
		MinConfidence: minConfidence,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total, "Organizing files...")
			}
			_ = bar.Set(done)
		},
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, files)
	if err != nil {
		return err
	}

	if accept && !dryRun {
		acceptPending(ctx, runner, result)
	}

	printRunResult(result, dryRun)
	return nil
}

// acceptPending executes every pending suggestion, moving successes into the
// executed set so the summary reflects what actually happened.
func acceptPending(ctx context.Context, runner *organize.Runner, result *organize.RunResult) {
	pending := result.Pending
	result.Pending = nil
	result.Stats.Suggested = 0

	for _, suggestion := range pending {
		if ctx.Err() != nil {
			result.Pending = append(result.Pending, suggestion)
			continue
		}
		op, err := runner.Accept(ctx, suggestion)
		if err != nil {
			result.Failed = append(result.Failed, organize.Failed{Suggestion: suggestion, Err: err})
			result.Stats.Failed++
			continue
		}
		result.Executed = append(result.Executed, *op)
		switch op.Type {
		case model.OperationDelete:
			result.Stats.Deleted++
		case model.OperationCopy:
			result.Stats.Copied++
		default:
			result.Stats.Moved++
		}
	}
}

func printRunResult(result *organize.RunResult, dryRun bool) {
	fmt.Println()
	title := "Organization Complete"
	if dryRun {
		title = "Dry Run"
	}
	fmt.Println(cli.FormatTitle(title))

	for _, op := range result.Executed {
		fmt.Printf("  %s %s %s %s\n",
			cli.SuccessStyle.Render(cli.SuccessIcon),
			op.Source,
			cli.SubtleStyle.Render("→"),
			op.Destination)
	}

	if len(result.Pending) > 0 {
		fmt.Println()
		fmt.Println(cli.BoldStyle.Render("Suggestions (not executed):"))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  FILE\tSIZE\tDESTINATION\tRULE\tCONFIDENCE")
		for _, s := range result.Pending {
			destination := s.Destination
			if s.IsDelete() {
				destination = cli.WarningStyle.Render("(delete)")
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%.0f%%\n",
				s.File.Name,
				humanize.Bytes(uint64(s.File.Size)),
				destination,
				s.RuleName,
				s.Confidence*100)
		}
		_ = w.Flush()
	}

	for _, skipped := range result.Skipped {
		fmt.Println("  " + cli.FormatWarning(fmt.Sprintf("skipped %s: %v", skipped.File.Name, skipped.Err)))
	}
	for _, failed := range result.Failed {
		fmt.Println("  " + cli.FormatError(fmt.Sprintf("%s: %v", failed.Suggestion.File.Name, failed.Err)))
	}

	stats := result.Stats
	fmt.Println()
	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf(
		"%d files scanned · %d moved · %d deleted · %d suggested · %d failed · %s",
		stats.Total, stats.Moved, stats.Deleted, stats.Suggested, stats.Failed,
		stats.Duration.Round(time.Millisecond))))
	if len(result.Executed) > 0 {
		fmt.Println(cli.SubtleStyle.Render("Undo this run with: kestrel undo --batch " + stats.BatchID))
	}
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
