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
// Global: ~/.batchflow/config.json
// Project: .batchflow/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".batchflow", "config.json")
	projectPath := filepath.Join(".batchflow", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped. Malformed JSON returns an
// error. Only fields the file actually sets override the base.
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

	mergeWorker(&base.Worker, loaded.Worker)
	mergeTests(&base.Tests, loaded.Tests)
	mergeLimits(&base.Limits, loaded.Limits)
	mergeRepo(&base.Repo, loaded.Repo)
	mergeRetry(&base.Retry, loaded.Retry)

	for domain, keywords := range loaded.Keywords {
		base.Keywords[domain] = keywords
	}

	return nil
}

func mergeWorker(base *WorkerConfig, loaded WorkerConfig) {
	if loaded.Type != "" {
		base.Type = loaded.Type
	}
	if loaded.Command != "" {
		base.Command = loaded.Command
	}
	if loaded.Args != nil {
		base.Args = loaded.Args
	}
	if loaded.Timeout != "" {
		base.Timeout = loaded.Timeout
	}
}

func mergeTests(base *TestsConfig, loaded TestsConfig) {
	if loaded.Command != "" {
		base.Command = loaded.Command
	}
	if loaded.Args != nil {
		base.Args = loaded.Args
	}
}

func mergeLimits(base *LimitsConfig, loaded LimitsConfig) {
	if loaded.MaxBatchSize > 0 {
		base.MaxBatchSize = loaded.MaxBatchSize
	}
	if loaded.MaxGroupSize > 0 {
		base.MaxGroupSize = loaded.MaxGroupSize
	}
	if loaded.Concurrency > 0 {
		base.Concurrency = loaded.Concurrency
	}
}

func mergeRepo(base *RepoConfig, loaded RepoConfig) {
	if loaded.Path != "" {
		base.Path = loaded.Path
	}
	if loaded.BaseBranch != "" {
		base.BaseBranch = loaded.BaseBranch
	}
	if loaded.WorkspaceDir != "" {
		base.WorkspaceDir = loaded.WorkspaceDir
	}
	if loaded.StatePath != "" {
		base.StatePath = loaded.StatePath
	}
}

func mergeRetry(base *RetrySettings, loaded RetrySettings) {
	if loaded.InitialInterval != "" {
		base.InitialInterval = loaded.InitialInterval
	}
	if loaded.MaxInterval != "" {
		base.MaxInterval = loaded.MaxInterval
	}
	if loaded.MaxElapsedTime != "" {
		base.MaxElapsedTime = loaded.MaxElapsedTime
	}
	if loaded.Multiplier > 0 {
		base.Multiplier = loaded.Multiplier
	}
}
