package organize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/resolve"
	"github.com/kestrelhq/kestrel/internal/rules"
)

func floatPtr(f float64) *float64 { return &f }

func newSuggester(ruleSet []model.Rule, opts resolve.Options) *Suggester {
	return NewSuggester(rules.NewEngine(ruleSet), resolve.NewResolver(opts))
}

func TestSuggester_Generate_ScreenshotExample(t *testing.T) {
	// The worked example: a screenshot rule routing into a dated folder
	// under the named screenshots destination.
	ruleSet := []model.Rule{
		{
			Name:     "screenshots",
			Priority: 100,
			Enabled:  true,
			Match: model.RuleMatch{
				Extensions: []string{"png", "jpg"},
				Filenames:  []string{"Screenshot*"},
			},
			Action: model.RuleAction{MoveTo: "{destinations.screenshots}/{year}-{month}"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{
		BaseDir:      "/scan",
		Destinations: map[string]string{"screenshots": "Pictures/Screenshots"},
	})

	file := model.FileMetadata{
		Path:       "/scan/Downloads/Screenshot 2024-01-01.png",
		Name:       "Screenshot 2024-01-01.png",
		Extension:  ".png",
		CreatedAt:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	suggestions, skipped, err := s.Generate(context.Background(), []model.FileMetadata{file})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, suggestions, 1)

	got := suggestions[0]
	assert.Equal(t, "/scan/Pictures/Screenshots/2024-01/Screenshot 2024-01-01.png", got.Destination)
	assert.Equal(t, "screenshots", got.RuleName)
	assert.Equal(t, model.ActionMove, got.Action)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001)
}

func TestSuggester_Generate_UnmatchedFilesOmitted(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "images", Priority: 10, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"png"}},
			Action: model.RuleAction{MoveTo: "pics"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	files := []model.FileMetadata{
		{Path: "/scan/a.png", Name: "a.png", Extension: ".png"},
		{Path: "/scan/notes.txt", Name: "notes.txt", Extension: ".txt"},
	}

	suggestions, skipped, err := s.Generate(context.Background(), files)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "/scan/a.png", suggestions[0].File.Path)
}

func TestSuggester_Generate_Idempotent(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "images", Priority: 10, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"png"}},
			Action: model.RuleAction{MoveTo: "pics"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	// File already sits in the resolved destination directory.
	file := model.FileMetadata{Path: "/scan/pics/a.png", Name: "a.png", Extension: ".png"}

	suggestions, skipped, err := s.Generate(context.Background(), []model.FileMetadata{file})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Empty(t, suggestions)
}

func TestSuggester_Generate_UnknownDestinationSkipsFileOnly(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "broken", Priority: 100, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"png"}},
			Action: model.RuleAction{MoveTo: "{destinations.nope}"},
		},
		{
			Name: "texts", Priority: 10, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"txt"}},
			Action: model.RuleAction{MoveTo: "docs"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	files := []model.FileMetadata{
		{Path: "/scan/a.png", Name: "a.png", Extension: ".png"},
		{Path: "/scan/b.txt", Name: "b.txt", Extension: ".txt"},
	}

	suggestions, skipped, err := s.Generate(context.Background(), files)
	require.NoError(t, err)

	// The bad template fails only its own file; the batch continues.
	require.Len(t, skipped, 1)
	assert.Equal(t, "/scan/a.png", skipped[0].File.Path)
	assert.True(t, errors.Is(skipped[0].Err, common.ErrUnknownDestination))

	require.Len(t, suggestions, 1)
	assert.Equal(t, "/scan/b.txt", suggestions[0].File.Path)
}

func TestSuggester_Generate_ConfidenceByAction(t *testing.T) {
	tests := []struct {
		name   string
		action model.RuleAction
		want   float64
	}{
		{name: "move", action: model.RuleAction{MoveTo: "x"}, want: 1.0},
		{name: "suggest", action: model.RuleAction{SuggestTo: "x"}, want: 0.6},
		{name: "archive", action: model.RuleAction{ArchiveTo: "x"}, want: 0.5},
		{name: "delete", action: model.RuleAction{Delete: true}, want: 1.0},
		{name: "override wins", action: model.RuleAction{MoveTo: "x", Confidence: floatPtr(0.42)}, want: 0.42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ruleSet := []model.Rule{
				{
					Name: "r", Priority: 10, Enabled: true,
					Match:  model.RuleMatch{Extensions: []string{"png"}},
					Action: tt.action,
				},
			}
			s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

			suggestions, _, err := s.Generate(context.Background(),
				[]model.FileMetadata{{Path: "/scan/in/a.png", Name: "a.png", Extension: ".png"}})
			require.NoError(t, err)
			require.Len(t, suggestions, 1)
			assert.InDelta(t, tt.want, suggestions[0].Confidence, 0.0001)
		})
	}
}

func TestSuggester_Generate_LearnedRuleDiscount(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "learned: docs", Priority: 10, Enabled: true, Learned: true,
			Match:  model.RuleMatch{Extensions: []string{"pdf"}},
			Action: model.RuleAction{MoveTo: "docs"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	suggestions, _, err := s.Generate(context.Background(),
		[]model.FileMetadata{{Path: "/scan/in/a.pdf", Name: "a.pdf", Extension: ".pdf"}})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.InDelta(t, DefaultLearnedConfidence, suggestions[0].Confidence, 0.0001)
}

func TestSuggester_Generate_DeleteIntent(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "cleanup", Priority: 10, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"tmp"}},
			Action: model.RuleAction{Delete: true},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	suggestions, _, err := s.Generate(context.Background(),
		[]model.FileMetadata{{Path: "/scan/in/x.tmp", Name: "x.tmp", Extension: ".tmp"}})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.True(t, suggestions[0].IsDelete())
	assert.Empty(t, suggestions[0].Destination)
}

func TestSuggester_Generate_PartialResolutionFlagged(t *testing.T) {
	ruleSet := []model.Rule{
		{
			Name: "photos", Priority: 10, Enabled: true,
			Match:  model.RuleMatch{Extensions: []string{"jpg"}},
			Action: model.RuleAction{MoveTo: "photos/{exif.year}"},
		},
	}
	s := newSuggester(ruleSet, resolve.Options{BaseDir: "/scan"})

	suggestions, _, err := s.Generate(context.Background(),
		[]model.FileMetadata{{Path: "/scan/in/a.jpg", Name: "a.jpg", Extension: ".jpg"}})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.True(t, suggestions[0].Partial)
}
