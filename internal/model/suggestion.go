package model

// Suggestion is a proposed destination for one file, produced by matching
// the active rule set and resolving the winning rule's template.
type Suggestion struct {
	File        FileMetadata `json:"file"`
	Destination string       `json:"destination"`
	RuleName    string       `json:"rule_name"`
	Action      ActionKind   `json:"action"`
	Confidence  float64      `json:"confidence"`
	Partial     bool         `json:"partial,omitempty"`
	Confirm     bool         `json:"confirm,omitempty"`
}

// IsDelete reports whether the suggestion is a deletion intent rather than a
// destination-bearing move.
func (s Suggestion) IsDelete() bool {
	return s.Action == ActionDelete
}
