package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/learning"
	"github.com/kestrelhq/kestrel/internal/organize"
	"github.com/kestrelhq/kestrel/internal/resolve"
	"github.com/kestrelhq/kestrel/internal/rules"
	"github.com/kestrelhq/kestrel/internal/service"
	"github.com/kestrelhq/kestrel/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/kestrel/kestrel.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// closeStorage closes the store, logging rather than failing on error.
func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

func rulesPath() string {
	if path := viper.GetString("rules.path"); path != "" {
		return path
	}
	return config.DefaultRulesPath()
}

// loadRules loads and validates the rules file, logging non-fatal warnings.
func loadRules() (*config.RulesFile, error) {
	rf, err := config.LoadRulesFile(rulesPath())
	if err != nil {
		return nil, err
	}

	warnings, err := rf.Validate()
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		slog.Warn("rules file warning", "rule", warning.RuleName, "message", warning.Message)
	}
	return rf, nil
}

// buildRunner assembles the organization pipeline for one directory: rule
// engine, template resolver, suggester, learning tracker, and runner, all
// sharing one storage handle.
func buildRunner(rf *config.RulesFile, store service.Storage, baseDir string, cfg organize.RunConfig) (*organize.Runner, error) {
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	opts, err := rf.ResolverOptions(baseDir)
	if err != nil {
		return nil, err
	}

	engine := rules.NewEngine(rf.Rules)
	suggester := organize.NewSuggester(engine, resolve.NewResolver(opts))
	tracker := learning.NewTracker(store)

	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = rf.Settings.MinConfidence
	}
	return organize.NewRunner(suggester, store, tracker, "", cfg), nil
}
