package config

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			Type:    "command",
			Command: "batchflow-executor",
			Timeout: "15m",
		},
		Tests: TestsConfig{
			Command: "go",
			Args:    []string{"test", "./..."},
		},
		Limits: LimitsConfig{
			MaxBatchSize: 4,
			MaxGroupSize: 3,
			Concurrency:  4,
		},
		Repo: RepoConfig{
			BaseBranch:   "main",
			WorkspaceDir: ".batchflow/workspaces",
			StatePath:    ".batchflow/state.db",
		},
		Retry: RetrySettings{
			InitialInterval: "100ms",
			MaxInterval:     "10s",
			MaxElapsedTime:  "2m",
			Multiplier:      2.0,
		},
		Keywords: map[string][]string{},
	}
}
