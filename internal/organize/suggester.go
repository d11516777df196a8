// Package organize combines rule matching and template resolution into
// per-file suggestions and orchestrates organization runs.
package organize

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/resolve"
	"github.com/kestrelhq/kestrel/internal/rules"
)

// DefaultLearnedConfidence is the starting confidence for rules accepted
// from the learning loop that carry no explicit override.
const DefaultLearnedConfidence = 0.7

// Baseline confidences per action kind.
const (
	confidenceMove    = 1.0
	confidenceSuggest = 0.6
	confidenceArchive = 0.5
)

// Skipped records a file that produced no suggestion for a reason worth
// reporting (as opposed to files no rule matched, which are simply omitted).
type Skipped struct {
	Err  error
	File model.FileMetadata
}

// Suggester produces destination suggestions for files.
type Suggester struct {
	engine   *rules.Engine
	resolver *resolve.Resolver
}

// NewSuggester creates a suggester over one run's engine and resolver.
func NewSuggester(engine *rules.Engine, resolver *resolve.Resolver) *Suggester {
	return &Suggester{
		engine:   engine,
		resolver: resolver,
	}
}

// Generate evaluates each file against the rule set and resolves the winning
// rule's destination. Files with no matching rule are omitted. A resolution
// failure (bad template reference) skips only that file; the batch
// continues. Running Generate over an already-organized tree yields nothing.
func (s *Suggester) Generate(ctx context.Context, files []model.FileMetadata) ([]model.Suggestion, []Skipped, error) {
	var suggestions []model.Suggestion
	var skipped []Skipped

	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		suggestion, err := s.suggest(ctx, file)
		if err != nil {
			skipped = append(skipped, Skipped{File: file, Err: err})
			continue
		}
		if suggestion == nil {
			continue
		}
		suggestions = append(suggestions, *suggestion)
	}

	return suggestions, skipped, nil
}

// suggest produces the suggestion for one file, nil when the file is
// unorganizable under the current rules or already in place.
func (s *Suggester) suggest(ctx context.Context, file model.FileMetadata) (*model.Suggestion, error) {
	rule, err := s.engine.Match(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to match rules: %w", err)
	}
	if rule == nil {
		return nil, nil
	}

	kind, err := rule.Action.Kind()
	if err != nil {
		return nil, err
	}

	suggestion := model.Suggestion{
		File:       file,
		RuleName:   rule.Name,
		Action:     kind,
		Confidence: confidence(rule, kind),
		Confirm:    rule.Action.Confirm,
	}

	if kind == model.ActionDelete {
		return &suggestion, nil
	}

	res, err := s.resolver.Resolve(rule.Action.Template(), file)
	if err != nil {
		return nil, err
	}

	// Already organized: the file lives in the resolved directory.
	if filepath.Clean(file.Dir()) == res.Path {
		return nil, nil
	}

	suggestion.Destination = filepath.Join(res.Path, file.Name)
	suggestion.Partial = res.Partial
	return &suggestion, nil
}

// confidence computes the suggestion confidence: the action-kind baseline,
// discounted for learned rules, with a rule-level override winning outright.
func confidence(rule *model.Rule, kind model.ActionKind) float64 {
	if rule.Action.Confidence != nil {
		return *rule.Action.Confidence
	}
	if rule.Learned {
		return DefaultLearnedConfidence
	}
	switch kind {
	case model.ActionMove, model.ActionDelete:
		return confidenceMove
	case model.ActionSuggest:
		return confidenceSuggest
	case model.ActionArchive:
		return confidenceArchive
	}
	return confidenceSuggest
}
