package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name string, cfg *Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Worker.Type != "command" {
		t.Errorf("expected default worker type 'command', got %q", cfg.Worker.Type)
	}
	if cfg.Limits.MaxBatchSize != 4 || cfg.Limits.MaxGroupSize != 3 {
		t.Errorf("unexpected default limits: %+v", cfg.Limits)
	}
	if cfg.Repo.BaseBranch != "main" {
		t.Errorf("expected default base branch 'main', got %q", cfg.Repo.BaseBranch)
	}
	if cfg.Tests.Command != "go" {
		t.Errorf("expected default test command 'go', got %q", cfg.Tests.Command)
	}
}

func TestLoadMissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("missing files should not error: %v", err)
	}
	if cfg.Worker.Command != "batchflow-executor" {
		t.Errorf("expected defaults, got %+v", cfg.Worker)
	}
}

func TestLoadGlobalOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	globalPath := writeConfigFile(t, dir, "global.json", &Config{
		Worker: WorkerConfig{Command: "my-executor"},
		Limits: LimitsConfig{MaxBatchSize: 8},
	})

	cfg, err := Load(globalPath, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Worker.Command != "my-executor" {
		t.Errorf("expected global worker command override, got %q", cfg.Worker.Command)
	}
	// Untouched fields keep their defaults.
	if cfg.Worker.Type != "command" {
		t.Errorf("unset field should keep default, got %q", cfg.Worker.Type)
	}
	if cfg.Limits.MaxBatchSize != 8 {
		t.Errorf("expected batch size 8, got %d", cfg.Limits.MaxBatchSize)
	}
	if cfg.Limits.MaxGroupSize != 3 {
		t.Errorf("unset limit should keep default, got %d", cfg.Limits.MaxGroupSize)
	}
}

func TestLoadProjectTakesPrecedenceOverGlobal(t *testing.T) {
	dir := t.TempDir()
	globalPath := writeConfigFile(t, dir, "global.json", &Config{
		Repo: RepoConfig{BaseBranch: "develop"},
	})
	projectPath := writeConfigFile(t, dir, "project.json", &Config{
		Repo: RepoConfig{BaseBranch: "release"},
	})

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Repo.BaseBranch != "release" {
		t.Errorf("expected project config to win, got %q", cfg.Repo.BaseBranch)
	}
}

func TestLoadMergesKeywordOverrides(t *testing.T) {
	dir := t.TempDir()
	globalPath := writeConfigFile(t, dir, "global.json", &Config{
		Keywords: map[string][]string{
			"backend": {"grpc", "proto"},
		},
	})

	cfg, err := Load(globalPath, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := cfg.Keywords["backend"]
	if len(got) != 2 || got[0] != "grpc" || got[1] != "proto" {
		t.Errorf("unexpected keywords: %v", got)
	}
}

func TestLoadMalformedJSONIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
