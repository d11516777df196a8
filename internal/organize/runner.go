package organize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/executor"
	"github.com/kestrelhq/kestrel/internal/learning"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/service"
)

// RunConfig controls one organization run's execution policy.
type RunConfig struct {
	OnProgress    func(done, total int)
	MinConfidence float64
	AutoExecute   bool
	DryRun        bool
}

// Failed pairs a suggestion with the executor error that stopped it.
type Failed struct {
	Err        error
	Suggestion model.Suggestion
}

// RunResult reports everything that happened in one run. Per-file failures
// are collected here; they never abort the batch.
type RunResult struct {
	Stats    service.RunStats
	Executed []model.Operation
	Pending  []model.Suggestion
	Skipped  []Skipped
	Failed   []Failed
}

// Runner drives a full scan batch through suggestion, policy, execution,
// and learning observation. One runner serves one run; it is the explicit
// context object holding what would otherwise be process-wide state.
type Runner struct {
	suggester *Suggester
	tracker   *learning.Tracker
	log       service.OperationLog
	newExec   func(batchID string) (*executor.Executor, error)
	cfg       RunConfig
}

// NewRunner assembles a runner. The executor is constructed per run so each
// run gets its own batch ID. tracker may be nil to disable learning.
func NewRunner(suggester *Suggester, log service.OperationLog, tracker *learning.Tracker, trashDir string, cfg RunConfig) *Runner {
	return &Runner{
		suggester: suggester,
		tracker:   tracker,
		log:       log,
		cfg:       cfg,
		newExec: func(batchID string) (*executor.Executor, error) {
			return executor.NewExecutor(executor.Config{
				Log:      log,
				BatchID:  batchID,
				TrashDir: trashDir,
			})
		},
	}
}

// Run organizes one batch of files. Suggestions execute when automatic
// execution is on, the confidence clears the floor, and the rule does not
// demand confirmation; everything else lands in Pending for the caller to
// surface. Dry runs produce suggestions but touch nothing.
func (r *Runner) Run(ctx context.Context, files []model.FileMetadata) (*RunResult, error) {
	start := time.Now()
	batchID := uuid.New().String()

	result := &RunResult{}
	result.Stats.BatchID = batchID
	result.Stats.Total = len(files)

	suggestions, skipped, err := r.suggester.Generate(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	result.Skipped = skipped
	result.Stats.Skipped = len(skipped)

	exec, err := r.newExec(batchID)
	if err != nil {
		return nil, err
	}

	for i, suggestion := range suggestions {
		if r.cfg.OnProgress != nil {
			r.cfg.OnProgress(i, len(suggestions))
		}

		if r.cfg.DryRun || !r.shouldExecute(suggestion) {
			result.Pending = append(result.Pending, suggestion)
			result.Stats.Suggested++
			continue
		}

		op, execErr := exec.Execute(ctx, suggestion)
		if execErr != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed = append(result.Failed, Failed{Suggestion: suggestion, Err: execErr})
			result.Stats.Failed++
			continue
		}

		result.Executed = append(result.Executed, *op)
		r.count(&result.Stats, op.Type)
		r.observe(ctx, *op, suggestion.File)
	}
	if r.cfg.OnProgress != nil {
		r.cfg.OnProgress(len(suggestions), len(suggestions))
	}

	result.Stats.Duration = time.Since(start)
	common.LogInfo("Organization run complete", common.Fields{
		"batch_id":  batchID,
		"total":     result.Stats.Total,
		"moved":     result.Stats.Moved,
		"deleted":   result.Stats.Deleted,
		"suggested": result.Stats.Suggested,
		"failed":    result.Stats.Failed,
	})
	return result, nil
}

// Accept executes a single pending suggestion on the user's behalf and
// feeds the acceptance into the learning loop.
func (r *Runner) Accept(ctx context.Context, suggestion model.Suggestion) (*model.Operation, error) {
	exec, err := r.newExec(uuid.New().String())
	if err != nil {
		return nil, err
	}

	op, err := exec.Execute(ctx, suggestion)
	if err != nil {
		return nil, err
	}
	r.observe(ctx, *op, suggestion.File)
	return op, nil
}

func (r *Runner) shouldExecute(suggestion model.Suggestion) bool {
	if !r.cfg.AutoExecute || suggestion.Confirm || suggestion.Partial {
		return false
	}
	if suggestion.Action == model.ActionSuggest {
		return false
	}
	return suggestion.Confidence >= r.cfg.MinConfidence
}

func (r *Runner) observe(ctx context.Context, op model.Operation, file model.FileMetadata) {
	if r.tracker == nil {
		return
	}
	if err := r.tracker.Observe(ctx, op, file); err != nil {
		slog.Warn("Failed to record learning observation",
			"source", op.Source,
			"error", err)
	}
}

func (r *Runner) count(stats *service.RunStats, opType model.OperationType) {
	switch opType {
	case model.OperationMove:
		stats.Moved++
	case model.OperationCopy:
		stats.Copied++
	case model.OperationDelete:
		stats.Deleted++
	}
}
