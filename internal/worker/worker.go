package worker

import (
	"context"
	"fmt"
)

// Worker executes a single task inside an isolated workspace and
// reports whether it succeeded, together with the test-run evidence
// the guard will judge.
type Worker interface {
	// Execute runs the task in the given working directory.
	Execute(ctx context.Context, req Request) (Result, error)

	// Close terminates any worker subprocess gracefully.
	Close() error
}

// New creates a worker based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (Worker, error) {
	switch cfg.Type {
	case "command":
		return NewCommandWorker(cfg, pm)
	case "script":
		return NewScriptWorker(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown worker type: %s", cfg.Type)
	}
}
