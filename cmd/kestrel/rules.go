package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/cli"
	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/learning"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage organization rules",
		Long: `Manage the declarative rules kestrel organizes with, including the
learning loop: inspect what kestrel has learned from your manual moves and
promote it into real rules.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesSuggestCmd())
	cmd.AddCommand(rulesAcceptCmd())
	cmd.AddCommand(rulesMergeCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(_ *cobra.Command, _ []string) error {
			rf, err := loadRules()
			if err != nil {
				return err
			}
			if len(rf.Rules) == 0 {
				fmt.Println(cli.FormatWarning("No rules defined in " + rulesPath()))
				return nil
			}

			fmt.Println(cli.FormatTitle("Rules"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tMATCH\tACTION\tENABLED\tLEARNED")
			for _, rule := range rf.Rules {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%t\t%t\n",
					rule.Name,
					rule.Priority,
					summarizeMatch(rule.Match),
					summarizeAction(rule.Action),
					rule.Enabled,
					rule.Learned)
			}
			return w.Flush()
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the rules file for problems",
		RunE: func(_ *cobra.Command, _ []string) error {
			rf, err := config.LoadRulesFile(rulesPath())
			if err != nil {
				return err
			}

			warnings, err := rf.Validate()
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Println(cli.FormatWarning(warning.String()))
			}
			if len(warnings) == 0 {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d rules look good.", len(rf.Rules))))
			}
			return nil
		},
	}
}

func rulesSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Show rules kestrel has learned from your moves",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rf, err := loadRules()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			suggested, err := suggestRules(ctx, store, rf)
			if err != nil {
				return err
			}
			if len(suggested) == 0 {
				fmt.Println(cli.FormatWarning("Nothing learned yet. Keep organizing; kestrel is watching."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Suggested Rules"))
			for i, candidate := range suggested {
				fmt.Printf("%s %s %s\n",
					cli.BoldStyle.Render(fmt.Sprintf("[%d]", i+1)),
					candidate.Rule.Name,
					cli.SubtleStyle.Render(fmt.Sprintf("(%.0f%% confident)", candidate.Confidence*100)))
				fmt.Printf("    %s\n", candidate.Description)
				fmt.Printf("    match: %s → %s\n\n",
					summarizeMatch(candidate.Rule.Match), candidate.Rule.Action.MoveTo)
			}
			fmt.Println(cli.SubtleStyle.Render("Accept one with: kestrel rules accept <number>"))
			return nil
		},
	}
}

func rulesAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <number>",
		Short: "Promote a suggested rule into the rules file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rf, err := loadRules()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			candidate, err := pickSuggestion(ctx, store, rf, args[0])
			if err != nil {
				return err
			}

			suggester := learning.NewRuleSuggester(learning.NewTracker(store))
			overlaps, err := suggester.ValidateSuggestedRule(*candidate, rf.Rules)
			if err != nil {
				return err
			}
			if len(overlaps) > 0 {
				names := make([]string, 0, len(overlaps))
				for _, rule := range overlaps {
					names = append(names, rule.Name)
				}
				fmt.Println(cli.FormatWarning(fmt.Sprintf(
					"Overlaps with existing rule(s) %s. Consider: kestrel rules merge %s %q",
					strings.Join(names, ", "), args[0], names[0])))
				return nil
			}

			rf.Rules = append(rf.Rules, candidate.Rule)
			if err := rf.Save(rulesPath()); err != nil {
				return err
			}
			// The patterns are promoted; keeping them would re-suggest the
			// same rule forever.
			if err := store.DeletePatternsForDestination(ctx, candidate.Rule.Action.MoveTo); err != nil {
				return fmt.Errorf("rule saved but failed to clear learned patterns: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added rule %q to %s", candidate.Rule.Name, rulesPath())))
			return nil
		},
	}
}

func rulesMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <number> <rule-name>",
		Short: "Fold a suggested rule into an existing rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rf, err := loadRules()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			candidate, err := pickSuggestion(ctx, store, rf, args[0])
			if err != nil {
				return err
			}

			target := -1
			for i, rule := range rf.Rules {
				if rule.Name == args[1] {
					target = i
					break
				}
			}
			if target < 0 {
				return fmt.Errorf("no rule named %q in %s", args[1], rulesPath())
			}

			rf.Rules[target] = learning.MergeWithExisting(rf.Rules[target], *candidate)
			if err := rf.Save(rulesPath()); err != nil {
				return err
			}
			if err := store.DeletePatternsForDestination(ctx, candidate.Rule.Action.MoveTo); err != nil {
				return fmt.Errorf("rule saved but failed to clear learned patterns: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Merged suggestion into rule %q", args[1])))
			return nil
		},
	}
}

func suggestRules(ctx context.Context, store service.Storage, rf *config.RulesFile) ([]model.SuggestedRule, error) {
	suggester := learning.NewRuleSuggester(learning.NewTracker(store))
	return suggester.SuggestRules(ctx, rf.Settings.Learning.MinConfidence)
}

func pickSuggestion(ctx context.Context, store service.Storage, rf *config.RulesFile, arg string) (*model.SuggestedRule, error) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 1 {
		return nil, fmt.Errorf("invalid suggestion number %q", arg)
	}

	suggested, err := suggestRules(ctx, store, rf)
	if err != nil {
		return nil, err
	}
	if index > len(suggested) {
		return nil, fmt.Errorf("suggestion %d does not exist; there are %d", index, len(suggested))
	}
	return &suggested[index-1], nil
}

func summarizeMatch(m model.RuleMatch) string {
	var parts []string
	if len(m.Extensions) > 0 {
		parts = append(parts, "ext:"+strings.Join(m.Extensions, ","))
	}
	if len(m.Filenames) > 0 {
		parts = append(parts, "name:"+strings.Join(m.Filenames, ","))
	}
	if len(m.Categories) > 0 {
		parts = append(parts, "category:"+strings.Join(m.Categories, ","))
	}
	if m.Location != "" {
		parts = append(parts, "in:"+m.Location)
	}
	if m.MaxAge != nil {
		parts = append(parts, "younger than "+m.MaxAge.String())
	}
	if m.MinAge != nil {
		parts = append(parts, "older than "+m.MinAge.String())
	}
	if m.MaxUnused != nil {
		parts = append(parts, "used within "+m.MaxUnused.String())
	}
	if m.HasEXIF != nil {
		parts = append(parts, fmt.Sprintf("exif:%t", *m.HasEXIF))
	}
	if len(parts) == 0 {
		return "(everything)"
	}
	return strings.Join(parts, " ")
}

func summarizeAction(a model.RuleAction) string {
	kind, err := a.Kind()
	if err != nil {
		return "(invalid)"
	}
	if kind == model.ActionDelete {
		return "delete"
	}
	return string(kind) + " → " + a.Template()
}
