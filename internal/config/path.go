// Package config loads kestrel's rule file and settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ and $VAR style environment variables in a
// file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultRulesPath returns the default location of the rules file,
// $HOME/.config/kestrel/rules.yaml.
func DefaultRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rules.yaml"
	}
	return filepath.Join(home, ".config", "kestrel", "rules.yaml")
}
