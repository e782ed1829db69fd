package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/batchflow/internal/config"
	"github.com/aristath/batchflow/internal/scheduler"
	"github.com/aristath/batchflow/internal/task"
)

func writeTaskList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write task list: %v", err)
	}
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writeTaskList(t, `# sample list
T1 [failing-test] queue rejects duplicate IDs
T2 [make-pass] implement duplicate check
T3 add api endpoint for queue stats
T4 add api handler docs
`)

	plan, tasks, err := loadPlan(path, config.DefaultConfig())
	if err != nil {
		t.Fatalf("loadPlan failed: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}
	if tasks[1].Predecessor != "T1" {
		t.Errorf("expected T2 chained to T1, got %q", tasks[1].Predecessor)
	}
	// T1 and T2 are phase-bound singletons; T3 and T4 share a batch.
	if len(plan.Batches) != 3 {
		t.Errorf("expected 3 batches, got %d", len(plan.Batches))
	}
	if plan.TaskCount() != 4 {
		t.Errorf("expected 4 tasks in plan, got %d", plan.TaskCount())
	}
}

func TestLoadPlanParseErrorSurfaces(t *testing.T) {
	path := writeTaskList(t, "T2 first\nT1 out of order\n")

	_, _, err := loadPlan(path, config.DefaultConfig())
	if err == nil {
		t.Fatal("expected parse error for non-increasing IDs")
	}
	var pe *task.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *task.ParseError, got %T: %v", err, err)
	}
}

func TestLoadPlanDependencyErrorSurfaces(t *testing.T) {
	path := writeTaskList(t, "T1 [make-pass] nothing to pair with\n")

	_, _, err := loadPlan(path, config.DefaultConfig())
	if err == nil {
		t.Fatal("expected dependency error for unpaired make-pass")
	}
	var de *scheduler.DependencyError
	if !errors.As(err, &de) {
		t.Fatalf("expected *scheduler.DependencyError, got %T: %v", err, err)
	}
}

func TestLoadPlanMissingFile(t *testing.T) {
	_, _, err := loadPlan(filepath.Join(t.TempDir(), "nope.txt"), config.DefaultConfig())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDuration(t *testing.T) {
	if d := parseDuration("250ms", time.Second); d != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", d)
	}
	if d := parseDuration("", time.Second); d != time.Second {
		t.Errorf("expected fallback for empty string, got %v", d)
	}
	if d := parseDuration("garbage", time.Minute); d != time.Minute {
		t.Errorf("expected fallback for bad string, got %v", d)
	}
}
