package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aristath/batchflow/internal/task"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	tr, err := NewSQLiteTracker(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTrackerStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	tk := &task.Task{ID: "T1", Seq: 0, Description: "wire api handler", Phase: task.PhaseNone, Domain: task.DomainBackend}
	if err := tr.RegisterTask(ctx, tk); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}

	// A task with no record reports pending.
	rec, err := tr.QueryStatus(ctx, "T1")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if rec.Status != task.StatusPending {
		t.Errorf("expected pending before dispatch, got %v", rec.Status)
	}

	if err := tr.MarkPending(ctx, "T1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := tr.MarkInProgress(ctx, "T1"); err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	if err := tr.MarkCompleted(ctx, "T1", "abc123", "42 passed, 0 failed"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	rec, err = tr.QueryStatus(ctx, "T1")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("expected completed, got %v", rec.Status)
	}
	if rec.CommitRef != "abc123" {
		t.Errorf("expected commit ref abc123, got %q", rec.CommitRef)
	}
	if rec.Evidence != "42 passed, 0 failed" {
		t.Errorf("unexpected evidence: %q", rec.Evidence)
	}
}

func TestTrackerFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	tk := &task.Task{ID: "T1", Seq: 0, Description: "original", Phase: task.PhaseNone}
	if err := tr.RegisterTask(ctx, tk); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}

	// Same definition re-registers cleanly (resume path).
	if err := tr.RegisterTask(ctx, tk); err != nil {
		t.Fatalf("re-register identical task: %v", err)
	}

	// An edited definition must be refused.
	edited := &task.Task{ID: "T1", Seq: 0, Description: "edited between runs", Phase: task.PhaseNone}
	err := tr.RegisterTask(ctx, edited)
	if err == nil {
		t.Fatal("expected InconsistencyError, got nil")
	}
	var inc *InconsistencyError
	if !errors.As(err, &inc) {
		t.Fatalf("expected *InconsistencyError, got %T: %v", err, err)
	}
	if inc.TaskID != "T1" {
		t.Errorf("expected error naming T1, got %q", inc.TaskID)
	}
}

func TestTrackerFailureLedgerAppendOrder(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	entries := []struct{ taskID, reason string }{
		{"T2", "guard rejected: test unexpectedly passes"},
		{"T5", "worker timed out"},
		{"T2", "retry also failed"},
	}
	for _, e := range entries {
		if err := tr.AppendFailure(ctx, e.taskID, e.reason); err != nil {
			t.Fatalf("AppendFailure: %v", err)
		}
	}

	got, err := tr.Failures(ctx)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, want := range entries {
		if got[i].TaskID != want.taskID || got[i].Reason != want.reason {
			t.Errorf("entry %d: got {%s %q}, want {%s %q}",
				i, got[i].TaskID, got[i].Reason, want.taskID, want.reason)
		}
	}
}

func TestTrackerCheckpoints(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	if err := tr.SaveCheckpoint(ctx, 0, "commit-a"); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := tr.SaveCheckpoint(ctx, 1, "commit-b"); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	cps, err := tr.Checkpoints(ctx)
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(cps))
	}
	if cps[0].GroupIndex != 0 || cps[0].CommitRef != "commit-a" {
		t.Errorf("unexpected first checkpoint: %+v", cps[0])
	}
	if cps[1].GroupIndex != 1 || cps[1].CommitRef != "commit-b" {
		t.Errorf("unexpected second checkpoint: %+v", cps[1])
	}
	if cps[0].ID == "" || cps[0].ID == cps[1].ID {
		t.Error("checkpoint IDs must be unique and non-empty")
	}
}

func TestTrackerListRecordsOrderedBySeq(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	for i, id := range []string{"T1", "T2", "T3"} {
		tk := &task.Task{ID: id, Seq: i, Description: "task " + id}
		if err := tr.RegisterTask(ctx, tk); err != nil {
			t.Fatalf("RegisterTask %s: %v", id, err)
		}
	}

	// Mark out of order; listing must follow task sequence.
	if err := tr.MarkCompleted(ctx, "T3", "", "ok"); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkFailed(ctx, "T1", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkBlocked(ctx, "T2", "predecessor failed"); err != nil {
		t.Fatal(err)
	}

	records, err := tr.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	wantOrder := []string{"T1", "T2", "T3"}
	wantStatus := []task.Status{task.StatusFailed, task.StatusBlocked, task.StatusCompleted}
	for i := range records {
		if records[i].TaskID != wantOrder[i] {
			t.Errorf("record %d: expected %s, got %s", i, wantOrder[i], records[i].TaskID)
		}
		if records[i].Status != wantStatus[i] {
			t.Errorf("record %d: expected %v, got %v", i, wantStatus[i], records[i].Status)
		}
	}
}
