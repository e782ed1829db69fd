package worker

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ScriptWorker is the simpler adapter: it invokes a script with the
// task ID and description as arguments and treats the exit code as the
// success signal. Combined output becomes the evidence. Useful for
// shell-script executors that do not speak the JSON contract.
type ScriptWorker struct {
	command string
	args    []string
	workDir string
	procMgr *ProcessManager
}

// NewScriptWorker creates a script-based worker.
func NewScriptWorker(cfg Config, procMgr *ProcessManager) (*ScriptWorker, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("script worker requires a command")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &ScriptWorker{
		command: cfg.Command,
		args:    cfg.Args,
		workDir: workDir,
		procMgr: procMgr,
	}, nil
}

// Execute invokes the script as: <command> [args...] <task-id> <description>.
func (w *ScriptWorker) Execute(ctx context.Context, req Request) (Result, error) {
	args := append(append([]string{}, w.args...), req.TaskID, req.Description)
	cmd := newCommand(ctx, w.command, args...)
	cmd.Dir = w.workDir
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	cmd.Env = append(os.Environ(),
		"BATCHFLOW_TASK_ID="+req.TaskID,
		"BATCHFLOW_PHASE="+req.Phase,
	)

	stdout, stderr, err := executeCommand(ctx, cmd, w.procMgr)
	evidence := strings.TrimSpace(string(stdout))
	if evidence == "" {
		evidence = strings.TrimSpace(string(stderr))
	}
	if err != nil {
		return Result{
			Success:  false,
			Evidence: evidence,
			Error:    err.Error(),
		}, nil // non-zero exit is a task failure, not a dispatch error
	}

	return Result{Success: true, Evidence: evidence}, nil
}

// Close is a no-op for ScriptWorker.
func (w *ScriptWorker) Close() error {
	return nil
}
