package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
)

// DefaultSuggestedPriority is the priority assigned to synthesized rules so
// they sit below typical hand-written rules until the user adjusts them.
const DefaultSuggestedPriority = 10

// RuleSuggester turns high-confidence tracked patterns into candidate rules.
type RuleSuggester struct {
	tracker *Tracker
}

// NewRuleSuggester creates a rule suggester over the tracker.
func NewRuleSuggester(tracker *Tracker) *RuleSuggester {
	return &RuleSuggester{tracker: tracker}
}

// SuggestRules synthesizes one candidate rule per destination from tracked
// patterns at or above minConfidence, ordered by descending confidence.
// Extension and filename signals are unioned into the rule's match; folder
// signals participate only when a destination has no other signal, so
// folder-only rules never dominate. Signatures already processed in the
// same pass are deduplicated.
func (s *RuleSuggester) SuggestRules(ctx context.Context, minConfidence float64) ([]model.SuggestedRule, error) {
	patterns, err := s.tracker.Learned(ctx, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to load learned patterns: %w", err)
	}

	groups := make(map[string][]model.TrackedPattern)
	var order []string
	seen := make(map[string]bool)

	for _, p := range patterns {
		sig := string(p.Type) + "\x00" + p.Pattern
		if seen[sig] {
			continue
		}
		seen[sig] = true

		if _, ok := groups[p.Destination]; !ok {
			order = append(order, p.Destination)
		}
		groups[p.Destination] = append(groups[p.Destination], p)
	}

	suggested := make([]model.SuggestedRule, 0, len(groups))
	for _, destination := range order {
		if candidate := synthesize(destination, groups[destination]); candidate != nil {
			suggested = append(suggested, *candidate)
		}
	}

	sort.SliceStable(suggested, func(i, j int) bool {
		return suggested[i].Confidence > suggested[j].Confidence
	})
	return suggested, nil
}

// synthesize builds one candidate rule for a destination group.
func synthesize(destination string, group []model.TrackedPattern) *model.SuggestedRule {
	var match model.RuleMatch
	var confidenceSum float64
	var basedOn []model.TrackedPattern
	var folders []model.TrackedPattern

	for _, p := range group {
		switch p.Type {
		case model.SignalExtension:
			match.Extensions = append(match.Extensions, p.Pattern)
		case model.SignalFilename:
			match.Filenames = append(match.Filenames, p.Pattern)
		case model.SignalFolder:
			folders = append(folders, p)
			continue
		default:
			continue
		}
		basedOn = append(basedOn, p)
		confidenceSum += p.Confidence
	}

	// Folder signals back the rule only when nothing sharper exists.
	if len(basedOn) == 0 {
		for _, p := range folders {
			match.Location = p.Pattern
			basedOn = append(basedOn, p)
			confidenceSum += p.Confidence
			break
		}
	}

	if len(basedOn) == 0 {
		return nil
	}

	confidence := confidenceSum / float64(len(basedOn))
	rule := model.Rule{
		Name:     suggestedRuleName(destination),
		Priority: DefaultSuggestedPriority,
		Enabled:  true,
		Learned:  true,
		Match:    match,
		Action: model.RuleAction{
			MoveTo:     destination,
			Confidence: &confidence,
		},
	}

	return &model.SuggestedRule{
		Rule:        rule,
		Confidence:  confidence,
		BasedOn:     basedOn,
		Description: describe(match, destination, basedOn),
	}
}

// ValidateSuggestedRule flags problems with a candidate before acceptance:
// a candidate with no predicates is rejected as non-specific, and overlap
// with an existing enabled rule sharing an extension or filename pattern is
// reported so the caller can offer a merge instead.
func (s *RuleSuggester) ValidateSuggestedRule(candidate model.SuggestedRule, existing []model.Rule) (overlaps []model.Rule, err error) {
	if candidate.Rule.Match.IsEmpty() {
		return nil, fmt.Errorf("%w: suggested rule %q", common.ErrNonSpecificRule, candidate.Rule.Name)
	}

	for _, rule := range existing {
		if !rule.Enabled {
			continue
		}
		if sharesAny(candidate.Rule.Match.Extensions, rule.Match.Extensions) ||
			sharesAny(candidate.Rule.Match.Filenames, rule.Match.Filenames) {
			overlaps = append(overlaps, rule)
		}
	}
	return overlaps, nil
}

// MergeWithExisting unions a candidate's extension and filename lists into
// an existing rule, deduplicating. Used when a human accepts "extend this
// rule" instead of "create a new rule".
func MergeWithExisting(existing model.Rule, candidate model.SuggestedRule) model.Rule {
	existing.Match.Extensions = unionStrings(existing.Match.Extensions, candidate.Rule.Match.Extensions)
	existing.Match.Filenames = unionStrings(existing.Match.Filenames, candidate.Rule.Match.Filenames)
	return existing
}

func sharesAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func suggestedRuleName(destination string) string {
	base := strings.Trim(strings.ReplaceAll(destination, "\\", "/"), "/")
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if base == "" {
		base = "destination"
	}
	return "learned: " + base
}

func describe(match model.RuleMatch, destination string, basedOn []model.TrackedPattern) string {
	var parts []string
	if len(match.Extensions) > 0 {
		parts = append(parts, "."+strings.Join(match.Extensions, ", ."))
	}
	if len(match.Filenames) > 0 {
		parts = append(parts, strings.Join(match.Filenames, ", "))
	}
	if match.Location != "" {
		parts = append(parts, "files from "+match.Location)
	}

	occurrences := 0
	for _, p := range basedOn {
		occurrences += p.Occurrences
	}

	return fmt.Sprintf("You moved %s files to %s %d times",
		strings.Join(parts, " and "), destination, occurrences)
}
