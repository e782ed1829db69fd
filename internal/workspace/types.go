package workspace

import "fmt"

// Info holds information about a created task workspace.
type Info struct {
	Path   string // Absolute path to the worktree directory
	Branch string // Branch name (e.g., "task/T3")
	TaskID string // Original task ID
	Head   string // HEAD commit hash at creation
}

// MergeResult represents the outcome of merging a task workspace back
// into the base branch.
type MergeResult struct {
	Merged        bool     // True if merge succeeded
	ConflictFiles []string // Files with conflicts (if any)
	Error         error    // Error if merge failed
}

// CommitError reports a failed group checkpoint. The repository may be
// left with unversioned work, so the run stops rather than dispatching
// further groups on top of an uncommitted tree.
type CommitError struct {
	GroupIndex int
	Detail     string
	Err        error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("checkpoint for group %d failed: %s", e.GroupIndex, e.Detail)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// ManagerConfig configures the workspace manager.
type ManagerConfig struct {
	RepoPath     string // Absolute path to the git repository
	BaseBranch   string // Base branch to branch from (e.g., "main")
	WorkspaceDir string // Directory under repo for worktrees (default ".batchflow/workspaces")
}
