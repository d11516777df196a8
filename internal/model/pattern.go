package model

import (
	"math"
	"time"
)

// SignalType identifies which file attribute a tracked pattern keys on.
type SignalType string

// Signal type constants.
const (
	SignalExtension SignalType = "extension"
	SignalFilename  SignalType = "filename"
	SignalFolder    SignalType = "folder"
)

// TrackedPattern accumulates frequency statistics for one observed
// (signal -> destination) pairing. Identity is (Type, Pattern, Destination);
// re-observation increments Occurrences and recomputes Confidence.
type TrackedPattern struct {
	LastUsed    time.Time  `json:"last_used"`
	Type        SignalType `json:"type"`
	Pattern     string     `json:"pattern"`
	Destination string     `json:"destination"`
	ID          int64      `json:"id"`
	Occurrences int        `json:"occurrences"`
	Confidence  float64    `json:"confidence"`
}

// PatternConfidence computes the confidence for a pattern observed n times.
// It saturates toward 1.0 and is strictly increasing in n, so repeated
// identical observations never lower an existing confidence.
func PatternConfidence(occurrences int) float64 {
	if occurrences <= 0 {
		return 0
	}
	return 1 - math.Pow(0.5, float64(occurrences))
}

// SuggestedRule is an ephemeral rule candidate synthesized from tracked
// patterns. It is not persisted unless a caller accepts it into the active
// rule set.
type SuggestedRule struct {
	Rule        Rule             `json:"rule"`
	Description string           `json:"description"`
	BasedOn     []TrackedPattern `json:"based_on"`
	Confidence  float64          `json:"confidence"`
}
