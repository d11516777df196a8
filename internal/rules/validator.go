package rules

import (
	"fmt"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
)

// Warning is a non-fatal finding about a rule.
type Warning struct {
	RuleName string
	Message  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.RuleName, w.Message)
}

// ValidateRule checks one rule for structural problems. A malformed action
// is an error; an empty match block is a warning (the rule is a global
// catch-all) rather than a rejection.
func ValidateRule(rule model.Rule) ([]Warning, error) {
	if rule.Name == "" {
		return nil, fmt.Errorf("%w: rule has no name", common.ErrInvalidConfig)
	}

	// Kind rejects actionless rules and combinations, including a delete
	// that also carries a destination template.
	if _, err := rule.Action.Kind(); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	var warnings []Warning
	if rule.Match.IsEmpty() {
		warnings = append(warnings, Warning{
			RuleName: rule.Name,
			Message:  "matches every file (no predicates); consider narrowing it",
		})
	}
	if conf := rule.Action.Confidence; conf != nil && (*conf < 0 || *conf > 1) {
		return nil, fmt.Errorf("rule %q: confidence %v outside [0,1]", rule.Name, *conf)
	}

	return warnings, nil
}

// ValidateRules checks a whole rule set, collecting warnings across rules.
// The first structural error fails validation; the rule set is config and a
// malformed set is fatal to the run.
func ValidateRules(ruleSet []model.Rule) ([]Warning, error) {
	seen := make(map[string]bool, len(ruleSet))
	var warnings []Warning

	for _, rule := range ruleSet {
		if seen[rule.Name] {
			return nil, fmt.Errorf("%w: duplicate rule name %q", common.ErrDuplicateEntry, rule.Name)
		}
		seen[rule.Name] = true

		w, err := ValidateRule(rule)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)
	}

	return warnings, nil
}
