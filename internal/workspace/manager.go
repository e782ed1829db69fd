package workspace

import (
	"bufio"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Manager provides each in-flight task with an isolated git worktree so
// parallel workers in a group cannot trample each other's files. Merges
// and checkpoints run against the main repo and are serialized.
type Manager struct {
	config  ManagerConfig
	mergeMu sync.Mutex // Serializes merge and checkpoint operations to prevent git lock conflicts
}

// NewManager creates a workspace manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = filepath.Join(".batchflow", "workspaces")
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	return &Manager{config: cfg}
}

// git runs a git command in dir and returns its combined output.
func (m *Manager) git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w (output: %s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Create creates a new workspace for the given task ID, branched off
// the base branch.
func (m *Manager) Create(taskID string) (*Info, error) {
	branch := fmt.Sprintf("task/%s", taskID)
	wsPath := filepath.Join(m.config.RepoPath, m.config.WorkspaceDir, taskID)

	if _, err := m.git(m.config.RepoPath, "worktree", "add", "-b", branch, wsPath, m.config.BaseBranch); err != nil {
		return nil, fmt.Errorf("failed to create workspace for %s: %w", taskID, err)
	}

	head, err := m.git(wsPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace HEAD: %w", err)
	}

	return &Info{
		Path:   wsPath,
		Branch: branch,
		TaskID: taskID,
		Head:   strings.TrimSpace(head),
	}, nil
}

// Merge folds the task workspace's changes back into the base branch.
// Uncommitted worker changes are committed on the task branch first. A
// workspace with no changes merges trivially.
func (m *Manager) Merge(info *Info) (*MergeResult, error) {
	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	changed, err := m.commitWorkspace(info)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &MergeResult{Merged: true}, nil
	}

	if out, err := m.git(m.config.RepoPath, "checkout", m.config.BaseBranch); err != nil {
		return &MergeResult{
			Merged: false,
			Error:  fmt.Errorf("failed to checkout base branch: %w (output: %s)", err, out),
		}, nil
	}

	// Dry-run merge to detect conflicts before touching the base branch.
	detectOut, detectErr := m.git(m.config.RepoPath, "merge-tree", "--write-tree", m.config.BaseBranch, info.Branch)
	if detectErr != nil || strings.Contains(detectOut, "CONFLICT") {
		return &MergeResult{
			Merged:        false,
			ConflictFiles: parseConflictFiles(detectOut),
			Error:         fmt.Errorf("merge conflict in workspace %s: %s", info.TaskID, strings.TrimSpace(detectOut)),
		}, nil
	}

	if out, err := m.git(m.config.RepoPath, "merge", "--no-ff", info.Branch); err != nil {
		return &MergeResult{
			Merged: false,
			Error:  fmt.Errorf("merge failed: %w (output: %s)", err, out),
		}, nil
	}

	return &MergeResult{Merged: true}, nil
}

// commitWorkspace stages and commits any uncommitted changes on the
// task branch. Reports whether the branch diverged from base.
func (m *Manager) commitWorkspace(info *Info) (bool, error) {
	status, err := m.git(info.Path, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to inspect workspace %s: %w", info.TaskID, err)
	}
	if strings.TrimSpace(status) != "" {
		if _, err := m.git(info.Path, "add", "-A"); err != nil {
			return false, fmt.Errorf("failed to stage workspace %s: %w", info.TaskID, err)
		}
		if _, err := m.git(info.Path, "commit", "-m", fmt.Sprintf("task %s", info.TaskID)); err != nil {
			return false, fmt.Errorf("failed to commit workspace %s: %w", info.TaskID, err)
		}
		return true, nil
	}

	// No dirty files; the branch may still carry commits the worker made.
	head, err := m.git(info.Path, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(head) != info.Head, nil
}

// Checkpoint commits everything accumulated on the base branch since
// the last checkpoint and returns the commit hash. A quiescent tree
// with no new merges returns an empty hash and no error.
func (m *Manager) Checkpoint(groupIndex int, message string) (string, error) {
	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	status, err := m.git(m.config.RepoPath, "status", "--porcelain")
	if err != nil {
		return "", &CommitError{GroupIndex: groupIndex, Detail: "failed to inspect repository", Err: err}
	}

	if strings.TrimSpace(status) != "" {
		if _, err := m.git(m.config.RepoPath, "add", "-A"); err != nil {
			return "", &CommitError{GroupIndex: groupIndex, Detail: "failed to stage changes", Err: err}
		}
		if out, err := m.git(m.config.RepoPath, "commit", "-m", message); err != nil {
			return "", &CommitError{GroupIndex: groupIndex, Detail: fmt.Sprintf("commit failed: %s", out), Err: err}
		}
	}

	head, err := m.git(m.config.RepoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", &CommitError{GroupIndex: groupIndex, Detail: "failed to resolve HEAD", Err: err}
	}
	return strings.TrimSpace(head), nil
}

// Discard throws away a task workspace and everything in it. Used when
// a task fails or is rejected so its partial work never reaches the
// base branch.
func (m *Manager) Discard(info *Info) error {
	var errs []string

	if out, err := m.git(m.config.RepoPath, "worktree", "remove", "--force", info.Path); err != nil {
		errs = append(errs, fmt.Sprintf("worktree remove failed: %v (output: %s)", err, out))
	}
	if out, err := m.git(m.config.RepoPath, "branch", "-D", info.Branch); err != nil {
		errs = append(errs, fmt.Sprintf("branch delete failed: %v (output: %s)", err, out))
	}

	if len(errs) > 0 {
		return fmt.Errorf("discard errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Cleanup removes a merged workspace and its branch.
func (m *Manager) Cleanup(info *Info) error {
	var errs []string

	if out, err := m.git(m.config.RepoPath, "worktree", "remove", info.Path); err != nil {
		// Retry with --force
		if forceOut, forceErr := m.git(m.config.RepoPath, "worktree", "remove", "--force", info.Path); forceErr != nil {
			errs = append(errs, fmt.Sprintf("worktree remove failed: %v (output: %s, force output: %s)", err, out, forceOut))
		}
	}
	if out, err := m.git(m.config.RepoPath, "branch", "-d", info.Branch); err != nil {
		// Retry with -D
		if forceOut, forceErr := m.git(m.config.RepoPath, "branch", "-D", info.Branch); forceErr != nil {
			errs = append(errs, fmt.Sprintf("branch delete failed: %v (output: %s, force output: %s)", err, out, forceOut))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// List returns all task workspaces in the repository.
func (m *Manager) List() ([]Info, error) {
	output, err := m.git(m.config.RepoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var workspaces []Info
	var current Info

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// Empty line signals end of a worktree entry
			if current.Path != "" && current.TaskID != "" {
				workspaces = append(workspaces, current)
			}
			current = Info{}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			branch := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(branch, "refs/heads/")
			if strings.HasPrefix(current.Branch, "task/") {
				current.TaskID = strings.TrimPrefix(current.Branch, "task/")
			}
		}
	}
	if current.Path != "" && current.TaskID != "" {
		workspaces = append(workspaces, current)
	}

	return workspaces, nil
}

// Prune cleans up stale worktree metadata left by crashed runs.
func (m *Manager) Prune() error {
	if _, err := m.git(m.config.RepoPath, "worktree", "prune"); err != nil {
		return fmt.Errorf("failed to prune workspaces: %w", err)
	}
	return nil
}

// parseConflictFiles extracts conflicting file paths from merge-tree
// output lines like "CONFLICT (content): Merge conflict in <file>".
func parseConflictFiles(output string) []string {
	var conflicts []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "CONFLICT") && strings.Contains(line, "in ") {
			parts := strings.Split(line, "in ")
			if len(parts) > 1 {
				conflicts = append(conflicts, strings.TrimSpace(parts[len(parts)-1]))
			}
		}
	}
	return conflicts
}
