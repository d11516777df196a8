package learning

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/storage"
)

func newTestSuggester(t *testing.T) (*RuleSuggester, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return NewRuleSuggester(NewTracker(store)), store
}

func observe(t *testing.T, store *storage.SQLiteStorage, sig model.SignalType, pattern, destination string, times int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < times; i++ {
		_, err := store.UpsertPattern(ctx, sig, pattern, destination, time.Now())
		require.NoError(t, err)
	}
}

func TestRuleSuggester_SuggestRules_MergesSignalsPerDestination(t *testing.T) {
	suggester, store := newTestSuggester(t)
	ctx := context.Background()

	// pdf extension seen 5 times, *invoice* filename seen 2 times, both
	// headed for Invoices: one rule carrying both predicates.
	observe(t, store, model.SignalExtension, "pdf", "/docs/Invoices", 5)
	observe(t, store, model.SignalFilename, "*invoice*", "/docs/Invoices", 2)

	suggested, err := suggester.SuggestRules(ctx, 0.7)
	require.NoError(t, err)
	require.Len(t, suggested, 1)

	rule := suggested[0].Rule
	assert.Equal(t, []string{"pdf"}, rule.Match.Extensions)
	assert.Equal(t, []string{"*invoice*"}, rule.Match.Filenames)
	assert.Equal(t, "/docs/Invoices", rule.Action.MoveTo)
	assert.True(t, rule.Learned)
	assert.Len(t, suggested[0].BasedOn, 2)
	assert.NotEmpty(t, suggested[0].Description)
}

func TestRuleSuggester_SuggestRules_BelowThresholdExcluded(t *testing.T) {
	suggester, store := newTestSuggester(t)
	ctx := context.Background()

	// One observation: confidence 0.5, below the 0.7 floor.
	observe(t, store, model.SignalExtension, "png", "/pics", 1)

	suggested, err := suggester.SuggestRules(ctx, 0.7)
	require.NoError(t, err)
	assert.Empty(t, suggested)
}

func TestRuleSuggester_SuggestRules_FolderOnlyWhenNoSharperSignal(t *testing.T) {
	suggester, store := newTestSuggester(t)
	ctx := context.Background()

	// Folder signal alongside an extension signal: folder must not appear.
	observe(t, store, model.SignalExtension, "zip", "/archives", 3)
	observe(t, store, model.SignalFolder, "Downloads", "/archives", 3)

	// Folder signal alone: it backs the rule as a location glob.
	observe(t, store, model.SignalFolder, "Inbox", "/sorted", 3)

	suggested, err := suggester.SuggestRules(ctx, 0.7)
	require.NoError(t, err)
	require.Len(t, suggested, 2)

	byDest := map[string]model.SuggestedRule{}
	for _, s := range suggested {
		byDest[s.Rule.Action.MoveTo] = s
	}

	archives := byDest["/archives"]
	assert.Equal(t, []string{"zip"}, archives.Rule.Match.Extensions)
	assert.Empty(t, archives.Rule.Match.Location)

	sorted := byDest["/sorted"]
	assert.Empty(t, sorted.Rule.Match.Extensions)
	assert.Equal(t, "Inbox", sorted.Rule.Match.Location)
}

func TestRuleSuggester_SuggestRules_OrderedByConfidence(t *testing.T) {
	suggester, store := newTestSuggester(t)
	ctx := context.Background()

	observe(t, store, model.SignalExtension, "png", "/pics", 2)
	observe(t, store, model.SignalExtension, "pdf", "/docs", 6)

	suggested, err := suggester.SuggestRules(ctx, 0.7)
	require.NoError(t, err)
	require.Len(t, suggested, 2)
	assert.Equal(t, "/docs", suggested[0].Rule.Action.MoveTo)
	assert.Greater(t, suggested[0].Confidence, suggested[1].Confidence)
}

func TestRuleSuggester_SuggestRules_DeduplicatesSignatures(t *testing.T) {
	suggester, store := newTestSuggester(t)
	ctx := context.Background()

	// Same (extension, pdf) signature tracked toward two destinations; the
	// higher-confidence one claims it and the other group is left empty.
	observe(t, store, model.SignalExtension, "pdf", "/docs/Invoices", 5)
	observe(t, store, model.SignalExtension, "pdf", "/docs/Reports", 2)

	suggested, err := suggester.SuggestRules(ctx, 0.7)
	require.NoError(t, err)
	require.Len(t, suggested, 1)
	assert.Equal(t, "/docs/Invoices", suggested[0].Rule.Action.MoveTo)
}

func TestRuleSuggester_ValidateSuggestedRule(t *testing.T) {
	suggester, _ := newTestSuggester(t)

	candidate := model.SuggestedRule{
		Rule: model.Rule{
			Name:   "learned: Invoices",
			Match:  model.RuleMatch{Extensions: []string{"pdf"}},
			Action: model.RuleAction{MoveTo: "/docs/Invoices"},
		},
	}

	existing := []model.Rule{
		{
			Name: "documents", Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"PDF", "docx"}},
			Action: model.RuleAction{MoveTo: "/docs"},
		},
		{
			Name: "disabled-docs", Enabled: false,
			Match:  model.RuleMatch{Extensions: []string{"pdf"}},
			Action: model.RuleAction{MoveTo: "/old"},
		},
		{
			Name: "images", Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"png"}},
			Action: model.RuleAction{MoveTo: "/pics"},
		},
	}

	overlaps, err := suggester.ValidateSuggestedRule(candidate, existing)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, "documents", overlaps[0].Name)
}

func TestRuleSuggester_ValidateSuggestedRule_RejectsNonSpecific(t *testing.T) {
	suggester, _ := newTestSuggester(t)

	candidate := model.SuggestedRule{
		Rule: model.Rule{
			Name:   "learned: everything",
			Action: model.RuleAction{MoveTo: "/sorted"},
		},
	}

	_, err := suggester.ValidateSuggestedRule(candidate, nil)
	assert.True(t, errors.Is(err, common.ErrNonSpecificRule))
}

func TestMergeWithExisting(t *testing.T) {
	existing := model.Rule{
		Name:   "documents",
		Match:  model.RuleMatch{Extensions: []string{"pdf", "docx"}, Filenames: []string{"*report*"}},
		Action: model.RuleAction{MoveTo: "/docs"},
	}
	candidate := model.SuggestedRule{
		Rule: model.Rule{
			Match: model.RuleMatch{Extensions: []string{"PDF", "odt"}, Filenames: []string{"*invoice*"}},
		},
	}

	merged := MergeWithExisting(existing, candidate)
	assert.Equal(t, []string{"pdf", "docx", "odt"}, merged.Match.Extensions)
	assert.Equal(t, []string{"*report*", "*invoice*"}, merged.Match.Filenames)
	// Action and identity are untouched
	assert.Equal(t, "/docs", merged.Action.MoveTo)
	assert.Equal(t, "documents", merged.Name)
}
