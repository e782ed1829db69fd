package config

// WorkerConfig defines how tasks are dispatched to an executor.
type WorkerConfig struct {
	Type    string   `json:"type"`              // "command" or "script"
	Command string   `json:"command"`           // Executable invoked per task
	Args    []string `json:"args,omitempty"`    // Default args prepended to every invocation
	Timeout string   `json:"timeout,omitempty"` // Per-task deadline (Go duration string, e.g. "10m")
}

// TestsConfig defines the repository test command the guard runs
// before cleanup steps.
type TestsConfig struct {
	Command string   `json:"command"`        // Test binary (e.g., "go")
	Args    []string `json:"args,omitempty"` // Test args (e.g., ["test", "./..."])
}

// LimitsConfig bounds batch packing and dispatch concurrency.
type LimitsConfig struct {
	MaxBatchSize int `json:"max_batch_size,omitempty"` // Tasks per parallel batch
	MaxGroupSize int `json:"max_group_size,omitempty"` // Batches per checkpoint group
	Concurrency  int `json:"concurrency,omitempty"`    // Concurrent workers within a batch
}

// RepoConfig locates the git repository the run operates on.
type RepoConfig struct {
	Path         string `json:"path,omitempty"`          // Repository root (default cwd)
	BaseBranch   string `json:"base_branch,omitempty"`   // Branch checkpoints land on
	WorkspaceDir string `json:"workspace_dir,omitempty"` // Directory for task worktrees
	StatePath    string `json:"state_path,omitempty"`    // Tracker database path
}

// RetrySettings configures worker dispatch retry behavior.
type RetrySettings struct {
	InitialInterval string  `json:"initial_interval,omitempty"` // Go duration string
	MaxInterval     string  `json:"max_interval,omitempty"`
	MaxElapsedTime  string  `json:"max_elapsed_time,omitempty"`
	Multiplier      float64 `json:"multiplier,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Worker   WorkerConfig        `json:"worker"`
	Tests    TestsConfig         `json:"tests"`
	Limits   LimitsConfig        `json:"limits"`
	Repo     RepoConfig          `json:"repo"`
	Retry    RetrySettings       `json:"retry"`
	Keywords map[string][]string `json:"keywords,omitempty"` // Domain classifier overrides: domain -> keywords
}
