package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rule represents a declarative organization rule: a match predicate plus an
// action. Rules are evaluated in descending priority order; the first rule
// whose predicates all hold wins.
type Rule struct {
	Name     string     `yaml:"name" json:"name"`
	Match    RuleMatch  `yaml:"match" json:"match"`
	Action   RuleAction `yaml:"action" json:"action"`
	Priority int        `yaml:"priority" json:"priority"`
	Enabled  bool       `yaml:"enabled" json:"enabled"`
	Learned  bool       `yaml:"learned,omitempty" json:"learned,omitempty"`
}

// RuleMatch is a conjunction of optional predicates. Absent predicates are
// wildcards; every present predicate must hold for the rule to match.
type RuleMatch struct {
	MaxAge     *Duration `yaml:"max_age,omitempty" json:"max_age,omitempty"`
	MinAge     *Duration `yaml:"min_age,omitempty" json:"min_age,omitempty"`
	MaxUnused  *Duration `yaml:"max_unused,omitempty" json:"max_unused,omitempty"`
	HasEXIF    *bool     `yaml:"has_exif,omitempty" json:"has_exif,omitempty"`
	Location   string    `yaml:"location,omitempty" json:"location,omitempty"`
	Extensions []string  `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Filenames  []string  `yaml:"filenames,omitempty" json:"filenames,omitempty"`
	Categories []string  `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// UnmarshalYAML decodes a rule, treating an omitted enabled field as true.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	aux := plain{Enabled: true}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*r = Rule(aux)
	return nil
}

// IsEmpty reports whether no predicates are present, making the rule a
// global catch-all.
func (m RuleMatch) IsEmpty() bool {
	return len(m.Extensions) == 0 &&
		len(m.Filenames) == 0 &&
		len(m.Categories) == 0 &&
		m.Location == "" &&
		m.MaxAge == nil &&
		m.MinAge == nil &&
		m.MaxUnused == nil &&
		m.HasEXIF == nil
}

// ActionKind identifies which action a rule performs.
type ActionKind string

// Action kind constants.
const (
	ActionMove    ActionKind = "move"
	ActionSuggest ActionKind = "suggest"
	ActionArchive ActionKind = "archive"
	ActionDelete  ActionKind = "delete"
)

// RuleAction describes what to do with a matched file. Exactly one of
// MoveTo, SuggestTo, ArchiveTo, or Delete must be set.
type RuleAction struct {
	Confidence *float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	MoveTo     string   `yaml:"move_to,omitempty" json:"move_to,omitempty"`
	SuggestTo  string   `yaml:"suggest_to,omitempty" json:"suggest_to,omitempty"`
	ArchiveTo  string   `yaml:"archive_to,omitempty" json:"archive_to,omitempty"`
	Delete     bool     `yaml:"delete,omitempty" json:"delete,omitempty"`
	Confirm    bool     `yaml:"confirm,omitempty" json:"confirm,omitempty"`
}

// Kind returns the action kind, or an error when the action is ambiguous or
// unset.
func (a RuleAction) Kind() (ActionKind, error) {
	var kinds []ActionKind
	if a.MoveTo != "" {
		kinds = append(kinds, ActionMove)
	}
	if a.SuggestTo != "" {
		kinds = append(kinds, ActionSuggest)
	}
	if a.ArchiveTo != "" {
		kinds = append(kinds, ActionArchive)
	}
	if a.Delete {
		kinds = append(kinds, ActionDelete)
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("rule action has no move_to, suggest_to, archive_to, or delete")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("rule action sets %d actions, want exactly one", len(kinds))
	}
}

// Template returns the destination template for destination-bearing actions.
func (a RuleAction) Template() string {
	switch {
	case a.MoveTo != "":
		return a.MoveTo
	case a.SuggestTo != "":
		return a.SuggestTo
	case a.ArchiveTo != "":
		return a.ArchiveTo
	}
	return ""
}
