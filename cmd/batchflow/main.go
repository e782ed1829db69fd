package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/batchflow/internal/config"
	"github.com/aristath/batchflow/internal/scheduler"
	"github.com/aristath/batchflow/internal/task"
)

// exitCode is set by commands that finished without a fatal error: 0
// when every task completed, 2 when any task ended Failed or Blocked.
// Errors returned through RunE (parse, dependency, checkpoint,
// inconsistency) exit 1.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "batchflow",
	Short: "Dependency-aware batch runner for ordered task lists",
	Long: `batchflow parses an ordered task list, resolves TDD phase chains,
packs independent tasks into parallel batches, and executes them through
an external worker with git worktree isolation and per-group checkpoints.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(runCmd, planCmd, statusCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// loadConfig loads merged configuration from the conventional paths.
func loadConfig() (*config.Config, error) {
	return config.LoadDefault()
}

// loadPlan reads, parses, resolves, and schedules the task list.
func loadPlan(path string, cfg *config.Config) (*scheduler.Plan, []*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading task list: %w", err)
	}

	var classifier task.Classifier
	if len(cfg.Keywords) > 0 {
		classifier = task.NewKeywordClassifierWithOverrides(cfg.Keywords)
	}

	tasks, err := task.NewParser(classifier).ParseString(string(data))
	if err != nil {
		return nil, nil, err
	}
	if len(tasks) == 0 {
		return nil, nil, fmt.Errorf("task list %s contains no tasks", path)
	}

	resolved, err := scheduler.NewResolver().Resolve(tasks)
	if err != nil {
		return nil, nil, err
	}

	plan := scheduler.NewBatchScheduler(cfg.Limits.MaxBatchSize, cfg.Limits.MaxGroupSize).Schedule(resolved)
	return plan, resolved, nil
}

// parseDuration parses a config duration string, falling back when unset.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
