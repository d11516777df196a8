// Package learning accumulates statistics on accepted organization choices
// and promotes recurring ones into candidate rules.
package learning

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
)

// Signal is one candidate (attribute -> destination) pairing decomposed
// from an accepted operation.
type Signal struct {
	Type    model.SignalType
	Pattern string
}

// Tracker observes accepted operations and maintains tracked-pattern rows.
type Tracker struct {
	store service.PatternStore
}

// NewTracker creates a pattern tracker over the pattern store.
func NewTracker(store service.PatternStore) *Tracker {
	return &Tracker{store: store}
}

// Observe records the signals of one committed operation. Operations applied
// automatically by an existing rule at full confidence carry no new
// information and are ignored; only manual acceptances feed the learning
// loop. Each observation upserts its pattern rows, incrementing occurrences
// and recomputing confidence.
func (t *Tracker) Observe(ctx context.Context, op model.Operation, file model.FileMetadata) error {
	if op.Confidence != nil && *op.Confidence >= 1.0 && op.RuleName != "" {
		return nil
	}
	if op.Destination == "" || op.Type == model.OperationDelete {
		return nil
	}

	destination := filepath.Dir(op.Destination)
	for _, sig := range DecomposeSignals(file) {
		if _, err := t.store.UpsertPattern(ctx, sig.Type, sig.Pattern, destination, op.CreatedAt); err != nil {
			return fmt.Errorf("failed to track %s pattern %q: %w", sig.Type, sig.Pattern, err)
		}
	}

	common.LogDebug("Observed operation for learning", common.Fields{
		"source":      op.Source,
		"destination": destination,
	})
	return nil
}

// Learned returns tracked patterns at or above minConfidence.
func (t *Tracker) Learned(ctx context.Context, minConfidence float64) ([]model.TrackedPattern, error) {
	return t.store.PatternsAbove(ctx, minConfidence)
}

// DecomposeSignals extracts the candidate signals of one file: its
// extension, a glob family derived from its name, and its source folder
// name.
func DecomposeSignals(file model.FileMetadata) []Signal {
	var signals []Signal

	if ext := file.NormalizedExtension(); ext != "" {
		signals = append(signals, Signal{Type: model.SignalExtension, Pattern: ext})
	}
	if glob := filenameGlob(file.Name); glob != "" {
		signals = append(signals, Signal{Type: model.SignalFilename, Pattern: glob})
	}
	if folder := path.Base(strings.ReplaceAll(file.Dir(), "\\", "/")); folder != "" && folder != "." && folder != "/" {
		signals = append(signals, Signal{Type: model.SignalFolder, Pattern: folder})
	}

	return signals
}

// filenameGlob generalizes a filename into a glob family by keeping its
// leading alphabetic stem: "Screenshot 2024-01-01.png" becomes
// "Screenshot*". Names without a usable stem produce no filename signal.
func filenameGlob(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	var stem strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			stem.WriteRune(r)
			continue
		}
		break
	}

	// Short stems over-generalize; require a meaningful prefix.
	if stem.Len() < 3 {
		return ""
	}
	return stem.String() + "*"
}
