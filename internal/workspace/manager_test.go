package workspace

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestRepo creates a temporary git repository for testing
func setupTestRepo(t *testing.T) string {
	t.Helper()

	repoPath := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s failed: %v (output: %s)", args[0], err, string(output))
		}
	}

	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("checkout", "-b", "main")

	initialFile := filepath.Join(repoPath, "README.md")
	if err := os.WriteFile(initialFile, []byte("# Test Repo\n"), 0644); err != nil {
		t.Fatalf("failed to write initial file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial commit")

	return repoPath
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	repoPath := setupTestRepo(t)
	return NewManager(ManagerConfig{RepoPath: repoPath, BaseBranch: "main"}), repoPath
}

func TestCreateAndDiscard(t *testing.T) {
	m, repoPath := newTestManager(t)

	info, err := m.Create("T1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if info.Branch != "task/T1" {
		t.Errorf("expected branch task/T1, got %s", info.Branch)
	}
	if _, err := os.Stat(info.Path); err != nil {
		t.Errorf("workspace directory missing: %v", err)
	}
	if info.Head == "" {
		t.Error("expected HEAD commit hash")
	}

	if err := m.Discard(info); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if _, err := os.Stat(info.Path); !os.IsNotExist(err) {
		t.Error("workspace directory still exists after discard")
	}

	branchCmd := exec.Command("git", "branch", "--list", info.Branch)
	branchCmd.Dir = repoPath
	output, _ := branchCmd.CombinedOutput()
	if strings.Contains(string(output), info.Branch) {
		t.Error("branch still exists after discard")
	}
}

func TestMergeFoldsWorkIntoBase(t *testing.T) {
	m, repoPath := newTestManager(t)

	info, err := m.Create("T1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Simulate worker output in the workspace.
	if err := os.WriteFile(filepath.Join(info.Path, "queue.go"), []byte("package queue\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	result, err := m.Merge(info)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !result.Merged {
		t.Fatalf("expected merge to succeed: %v", result.Error)
	}

	if _, err := os.Stat(filepath.Join(repoPath, "queue.go")); err != nil {
		t.Errorf("merged file missing from base branch: %v", err)
	}
}

func TestMergeEmptyWorkspaceIsTrivial(t *testing.T) {
	m, _ := newTestManager(t)

	info, err := m.Create("T1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := m.Merge(info)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !result.Merged {
		t.Errorf("expected trivial merge for untouched workspace: %v", result.Error)
	}
}

func TestMergeConflictReported(t *testing.T) {
	m, repoPath := newTestManager(t)

	a, err := m.Create("T1")
	if err != nil {
		t.Fatalf("Create T1 failed: %v", err)
	}
	b, err := m.Create("T2")
	if err != nil {
		t.Fatalf("Create T2 failed: %v", err)
	}

	// Both workspaces edit the same file differently.
	if err := os.WriteFile(filepath.Join(a.Path, "README.md"), []byte("version A\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(b.Path, "README.md"), []byte("version B\n"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := m.Merge(a)
	if err != nil || !first.Merged {
		t.Fatalf("first merge should succeed: %v %v", err, first)
	}

	second, err := m.Merge(b)
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if second.Merged {
		t.Fatal("expected conflict on second merge")
	}
	if second.Error == nil {
		t.Error("expected conflict error detail")
	}

	// Base branch keeps the first merge's content.
	content, err := os.ReadFile(filepath.Join(repoPath, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "version A\n" {
		t.Errorf("base branch content changed by conflicting merge: %q", content)
	}
}

func TestCheckpoint(t *testing.T) {
	m, repoPath := newTestManager(t)

	// Quiescent tree returns current HEAD, no new commit.
	before, err := m.git(repoPath, "rev-parse", "HEAD")
	if err != nil {
		t.Fatal(err)
	}
	ref, err := m.Checkpoint(0, "batch checkpoint: group 0")
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if ref != strings.TrimSpace(before) {
		t.Errorf("quiescent checkpoint moved HEAD: %s != %s", ref, strings.TrimSpace(before))
	}

	// Dirty tree gets committed.
	if err := os.WriteFile(filepath.Join(repoPath, "notes.txt"), []byte("work\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ref2, err := m.Checkpoint(1, "batch checkpoint: group 1")
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if ref2 == ref {
		t.Error("expected new commit for dirty tree")
	}

	status, err := m.git(repoPath, "status", "--porcelain")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(status) != "" {
		t.Errorf("tree not clean after checkpoint: %s", status)
	}
}

func TestCheckpointFailureIsCommitError(t *testing.T) {
	m := NewManager(ManagerConfig{RepoPath: filepath.Join(t.TempDir(), "not-a-repo"), BaseBranch: "main"})

	_, err := m.Checkpoint(2, "batch checkpoint: group 2")
	if err == nil {
		t.Fatal("expected error for missing repository")
	}
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommitError, got %T: %v", err, err)
	}
	if ce.GroupIndex != 2 {
		t.Errorf("expected group 2 in error, got %d", ce.GroupIndex)
	}
}

func TestListAndPrune(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Create("T1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Create("T2"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	workspaces, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(workspaces) != 2 {
		t.Fatalf("expected 2 task workspaces, got %d", len(workspaces))
	}
	ids := map[string]bool{}
	for _, ws := range workspaces {
		ids[ws.TaskID] = true
	}
	if !ids["T1"] || !ids["T2"] {
		t.Errorf("unexpected workspace IDs: %v", ids)
	}

	if err := m.Prune(); err != nil {
		t.Errorf("Prune failed: %v", err)
	}
}

func TestParseConflictFiles(t *testing.T) {
	output := `100644 abc 1	README.md
CONFLICT (content): Merge conflict in README.md
CONFLICT (content): Merge conflict in pkg/queue.go`

	files := parseConflictFiles(output)
	if len(files) != 2 {
		t.Fatalf("expected 2 conflict files, got %d: %v", len(files), files)
	}
	if files[0] != "README.md" || files[1] != "pkg/queue.go" {
		t.Errorf("unexpected conflict files: %v", files)
	}
}
