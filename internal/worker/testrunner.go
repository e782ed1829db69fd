package worker

import (
	"context"
	"fmt"
	"strings"
)

// CommandTestRunner runs the repository's test suite by invoking a
// configured command in the repository root. The guard uses it to
// confirm a green suite before dispatching cleanup steps.
type CommandTestRunner struct {
	command string
	args    []string
	dir     string
	procMgr *ProcessManager
}

// NewCommandTestRunner creates a test runner for the given command,
// run in dir.
func NewCommandTestRunner(command string, args []string, dir string, procMgr *ProcessManager) (*CommandTestRunner, error) {
	if command == "" {
		return nil, fmt.Errorf("test runner requires a command")
	}
	return &CommandTestRunner{
		command: command,
		args:    args,
		dir:     dir,
		procMgr: procMgr,
	}, nil
}

// Run executes the test command. A zero exit reports passed; a non-zero
// exit reports a failing suite with the output as the summary, not an
// error. Errors are reserved for the command being unrunnable.
func (r *CommandTestRunner) Run(ctx context.Context) (passed bool, summary string, err error) {
	cmd := newCommand(ctx, r.command, r.args...)
	cmd.Dir = r.dir

	stdout, stderr, runErr := executeCommand(ctx, cmd, r.procMgr)
	summary = strings.TrimSpace(string(stdout))
	if summary == "" {
		summary = strings.TrimSpace(string(stderr))
	}

	if runErr != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.Exited() {
			return false, summary, nil
		}
		return false, summary, fmt.Errorf("test command did not run: %w", runErr)
	}

	return true, summary, nil
}
