package config

// OperationConfig declares one operation of the command graph.
type OperationConfig struct {
	Name      string   `json:"name"`                // Unique operation name
	Command   string   `json:"command"`             // Shell command executed by a worker
	DependsOn []string `json:"dependsOn,omitempty"` // Names of operations this one waits for
	Weight    int      `json:"weight,omitempty"`    // Relative cost for critical-path ranking (default 1)
	Locks     []string `json:"locks,omitempty"`     // Resource keys held exclusively while the command runs
}

// RunnerConfig controls how the worker pool executes the graph.
type RunnerConfig struct {
	Concurrency int    `json:"concurrency,omitempty"` // Max operations running at once (default 4)
	WorkDir     string `json:"workDir,omitempty"`     // Working directory for commands (default cwd)
}

// Config is the top-level configuration.
type Config struct {
	Operations  []OperationConfig `json:"operations"`
	Runner      RunnerConfig      `json:"runner"`
	HistoryPath string            `json:"historyPath,omitempty"` // SQLite run-history database path
}
