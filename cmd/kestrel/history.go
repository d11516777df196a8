package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/cli"
)

const defaultHistoryCount = 20

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [n]",
		Short: "Show recent file operations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}

	cmd.Flags().BoolP("all", "a", false, "Include operations that were undone")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	n := defaultHistoryCount
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid count %q: expected a positive number", args[0])
		}
		n = parsed
	}
	all, _ := cmd.Flags().GetBool("all")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	ops, err := store.RecentOperations(ctx, n, !all)
	if err != nil {
		return fmt.Errorf("failed to load operations: %w", err)
	}
	if len(ops) == 0 {
		fmt.Println(cli.FormatWarning("No operations recorded yet."))
		return nil
	}

	fmt.Println(cli.FormatTitle("Operation History"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tTYPE\tSOURCE\tDESTINATION\tRULE\tSTATUS")
	for _, op := range ops {
		status := "active"
		if !op.Active() {
			status = cli.SubtleStyle.Render("undone " + humanize.Time(*op.UndoneAt))
		}
		rule := op.RuleName
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			op.ID,
			humanize.Time(op.CreatedAt),
			op.Type,
			op.Source,
			op.Destination,
			rule,
			status)
	}
	return w.Flush()
}
