package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CommandWorker dispatches each task to an external executable. The
// request is written to the executable's stdin as JSON and the result
// is read back from stdout as JSON, so any tool that speaks the small
// request/result contract can serve as an executor.
type CommandWorker struct {
	command string
	args    []string
	workDir string
	procMgr *ProcessManager
}

// NewCommandWorker creates a worker that invokes cfg.Command per task.
// The ProcessManager is optional; if nil, subprocesses won't be tracked.
func NewCommandWorker(cfg Config, procMgr *ProcessManager) (*CommandWorker, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command worker requires a command")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &CommandWorker{
		command: cfg.Command,
		args:    cfg.Args,
		workDir: workDir,
		procMgr: procMgr,
	}, nil
}

// Execute runs the external executor for one task. The subprocess runs
// inside the request's workspace so its file changes stay confined.
func (w *CommandWorker) Execute(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request for %s: %w", req.TaskID, err)
	}

	cmd := newCommand(ctx, w.command, w.args...)
	cmd.Dir = w.workDir
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	cmd.Stdin = bytes.NewReader(payload)

	stdout, stderr, err := executeCommand(ctx, cmd, w.procMgr)
	if err != nil {
		return Result{
			Evidence: strings.TrimSpace(string(stderr)),
			Error:    fmt.Sprintf("executor failed: %v", err),
		}, err
	}

	res, err := parseResult(stdout)
	if err != nil {
		return Result{
			Error: fmt.Sprintf("failed to parse executor output: %v (stderr: %s)", err, string(stderr)),
		}, err
	}

	return res, nil
}

// Close is a no-op for CommandWorker (subprocess-per-task model).
func (w *CommandWorker) Close() error {
	return nil
}

// parseResult decodes the executor's JSON result line. Executors may
// print diagnostics before the result, so the last non-empty line wins.
func parseResult(data []byte) (Result, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var res Result
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			return Result{}, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		return res, nil
	}
	return Result{}, fmt.Errorf("executor produced no output")
}
