package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/resolve"
	"github.com/kestrelhq/kestrel/internal/rules"
)

// Default thresholds applied when the rules file leaves settings unset.
const (
	DefaultMinConfidence         = 0.8
	DefaultLearningMinConfidence = 0.7
)

// Settings holds thresholds and mode flags from the rules file.
type Settings struct {
	MinConfidence      float64          `yaml:"min_confidence"`
	GlobalDestinations bool             `yaml:"global_destinations"`
	Learning           LearningSettings `yaml:"learning"`
}

// LearningSettings controls the pattern tracker and rule suggester.
type LearningSettings struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// RulesFile is the parsed form of rules.yaml: an ordered rule list, a named
// destination table, and settings.
type RulesFile struct {
	Destinations map[string]string `yaml:"destinations,omitempty"`
	Settings     Settings          `yaml:"settings,omitempty"`
	Rules        []model.Rule      `yaml:"rules"`
}

// DefaultRulesFile returns an empty rules file with default settings.
func DefaultRulesFile() *RulesFile {
	return &RulesFile{
		Destinations: make(map[string]string),
		Settings: Settings{
			MinConfidence: DefaultMinConfidence,
			Learning: LearningSettings{
				MinConfidence: DefaultLearningMinConfidence,
			},
		},
	}
}

// LoadRulesFile reads and parses the rules file at path. A missing file is
// not an error; it yields an empty rule set with default settings.
func LoadRulesFile(path string) (*RulesFile, error) {
	rf := DefaultRulesFile()

	data, err := os.ReadFile(ExpandPath(path))
	if os.IsNotExist(err) {
		return rf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, rf); err != nil {
		return nil, common.NewUserError(
			fmt.Sprintf("Rules file %s is not valid YAML", path),
			fmt.Errorf("%w: %w", common.ErrInvalidConfig, err),
		)
	}
	if rf.Destinations == nil {
		rf.Destinations = make(map[string]string)
	}
	if rf.Settings.MinConfidence == 0 {
		rf.Settings.MinConfidence = DefaultMinConfidence
	}
	if rf.Settings.Learning.MinConfidence == 0 {
		rf.Settings.Learning.MinConfidence = DefaultLearningMinConfidence
	}

	return rf, nil
}

// Save writes the rules file back to path, creating parent directories as
// needed.
func (rf *RulesFile) Save(path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("failed to marshal rules file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	return nil
}

var destinationToken = regexp.MustCompile(`\{destinations\.([^}]+)\}`)

// Validate checks every rule and reports non-fatal warnings, including
// destination tokens that name no entry in the destination table.
func (rf *RulesFile) Validate() ([]rules.Warning, error) {
	warnings, err := rules.ValidateRules(rf.Rules)
	if err != nil {
		return warnings, err
	}

	for _, rule := range rf.Rules {
		for _, match := range destinationToken.FindAllStringSubmatch(rule.Action.Template(), -1) {
			if _, ok := rf.Destinations[match[1]]; !ok {
				warnings = append(warnings, rules.Warning{
					RuleName: rule.Name,
					Message:  fmt.Sprintf("references unknown destination %q", match[1]),
				})
			}
		}
	}

	return warnings, nil
}

// ResolverOptions builds template resolution options for a run rooted at
// baseDir. Destination table values get ~ and $VAR expansion.
func (rf *RulesFile) ResolverOptions(baseDir string) (resolve.Options, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return resolve.Options{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	destinations := make(map[string]string, len(rf.Destinations))
	for name, dir := range rf.Destinations {
		destinations[name] = ExpandPath(dir)
	}

	return resolve.Options{
		Destinations: destinations,
		BaseDir:      baseDir,
		HomeDir:      home,
		Global:       rf.Settings.GlobalDestinations,
	}, nil
}
