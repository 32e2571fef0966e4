package config

import "path/filepath"

// DefaultConcurrency is used when the config does not set a worker pool size.
const DefaultConcurrency = 4

// DefaultConfig returns the built-in configuration baseline.
func DefaultConfig() *Config {
	return &Config{
		Operations: []OperationConfig{},
		Runner: RunnerConfig{
			Concurrency: DefaultConcurrency,
		},
		HistoryPath: filepath.Join(".rushstack", "history.db"),
	}
}
