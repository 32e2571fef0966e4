package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.rushstack/config.json
// Project: rushstack.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".rushstack", "config.json")
	projectPath := "rushstack.json"

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
// Operations merge by name: a redefinition replaces the earlier entry in place,
// new names append in file order.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, op := range loaded.Operations {
		if i := operationIndex(base.Operations, op.Name); i >= 0 {
			base.Operations[i] = op
		} else {
			base.Operations = append(base.Operations, op)
		}
	}

	if loaded.Runner.Concurrency > 0 {
		base.Runner.Concurrency = loaded.Runner.Concurrency
	}
	if loaded.Runner.WorkDir != "" {
		base.Runner.WorkDir = loaded.Runner.WorkDir
	}
	if loaded.HistoryPath != "" {
		base.HistoryPath = loaded.HistoryPath
	}

	return nil
}

func operationIndex(ops []OperationConfig, name string) int {
	for i, op := range ops {
		if op.Name == name {
			return i
		}
	}
	return -1
}
