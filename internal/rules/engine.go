// Package rules evaluates the active rule set against file metadata.
package rules

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kestrelhq/kestrel/internal/model"
)

// Engine evaluates files against an ordered rule set. Selection is
// first-match: rules are tried in descending priority (declaration order
// breaks ties) and evaluation stops at the first rule whose predicates all
// hold. A broad low-priority rule can therefore shadow a narrower one if the
// author misorders priorities; rule authors order mutually-exclusive cases
// by priority.
type Engine struct {
	now   func() time.Time
	rules []model.Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source, used by age predicates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the given rules. The slice is copied and
// stably sorted by descending priority so declaration order breaks ties.
func NewEngine(rules []model.Rule, opts ...Option) *Engine {
	sorted := make([]model.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	e := &Engine{
		rules: sorted,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []model.Rule {
	return e.rules
}

// Match returns the first enabled rule whose predicates all hold for the
// file, or nil when no rule matches. Evaluation is pure.
func (e *Engine) Match(_ context.Context, file model.FileMetadata) (*model.Rule, error) {
	now := e.now()
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled {
			continue
		}
		if e.matchesRule(file, rule.Match, now) {
			return rule, nil
		}
	}
	return nil, nil
}

// matchesRule checks every present predicate; absent predicates are wildcards.
func (e *Engine) matchesRule(file model.FileMetadata, m model.RuleMatch, now time.Time) bool {
	if len(m.Extensions) > 0 && !matchesExtension(file, m.Extensions) {
		return false
	}
	if len(m.Filenames) > 0 && !matchesAnyGlob(file.Name, m.Filenames) {
		return false
	}
	if m.Location != "" && !matchesLocation(file, m.Location) {
		return false
	}
	if len(m.Categories) > 0 && !matchesCategory(file, m.Categories) {
		return false
	}
	if m.HasEXIF != nil && file.HasEXIF() != *m.HasEXIF {
		return false
	}

	if m.MaxAge != nil || m.MinAge != nil {
		age := now.Sub(file.CreatedAt)
		if m.MaxAge != nil && age > m.MaxAge.Std() {
			return false
		}
		if m.MinAge != nil && age < m.MinAge.Std() {
			return false
		}
	}
	if m.MaxUnused != nil {
		if file.AccessedAt.IsZero() || now.Sub(file.AccessedAt) > m.MaxUnused.Std() {
			return false
		}
	}

	return true
}

func matchesExtension(file model.FileMetadata, extensions []string) bool {
	ext := file.NormalizedExtension()
	for _, candidate := range extensions {
		if strings.ToLower(strings.TrimPrefix(candidate, ".")) == ext {
			return true
		}
	}
	return false
}

func matchesAnyGlob(name string, globs []string) bool {
	lower := strings.ToLower(name)
	for _, glob := range globs {
		if ok, err := path.Match(strings.ToLower(glob), lower); err == nil && ok {
			return true
		}
	}
	return false
}

func matchesLocation(file model.FileMetadata, glob string) bool {
	dir := strings.ToLower(strings.ReplaceAll(file.Dir(), "\\", "/"))
	pattern := strings.ToLower(glob)
	if ok, err := path.Match(pattern, dir); err == nil && ok {
		return true
	}
	// Also match against the folder name alone so "Downloads" style
	// locations work without the full path.
	if ok, err := path.Match(pattern, path.Base(dir)); err == nil && ok {
		return true
	}
	return false
}

func matchesCategory(file model.FileMetadata, categories []string) bool {
	have := strings.ToLower(file.Category)
	if have == "" && file.Classification != nil {
		have = strings.ToLower(file.Classification.Category)
	}
	if have == "" {
		return false
	}
	for _, candidate := range categories {
		if strings.ToLower(candidate) == have {
			return true
		}
	}
	return false
}
