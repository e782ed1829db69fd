package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/batchflow/internal/task"
)

// FailureEntry is one row of the append-only failure ledger.
type FailureEntry struct {
	TaskID    string
	Reason    string
	Timestamp time.Time
}

// Checkpoint records the single commit attempted for a settled group.
type Checkpoint struct {
	ID         string // uuid
	GroupIndex int
	CommitRef  string
	Timestamp  time.Time
}

// InconsistencyError is returned when the tracker's persisted state
// disagrees with what the coordinator expects, e.g. a task whose
// definition changed since the run being resumed. Continuing on
// disagreement risks silent double-execution or skipped work, so the
// coordinator treats this as fatal.
type InconsistencyError struct {
	TaskID string
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("tracker inconsistency for task %s: %s", e.TaskID, e.Detail)
}

// Tracker is the authoritative persisted record of task execution.
// The coordinator consults it before dispatching anything, so a
// restarted run safely skips tasks already Completed.
type Tracker interface {
	// RegisterTask upserts the task definition. A previously registered
	// task whose fingerprint no longer matches yields an
	// InconsistencyError.
	RegisterTask(ctx context.Context, t *task.Task) error

	// MarkPending creates or resets the task's execution record.
	MarkPending(ctx context.Context, taskID string) error
	// MarkInProgress transitions the record to in_progress.
	MarkInProgress(ctx context.Context, taskID string) error
	// MarkCompleted records completion with the checkpoint commit and
	// the worker's evidence.
	MarkCompleted(ctx context.Context, taskID, commitRef, evidence string) error
	// MarkFailed records failure with a reason.
	MarkFailed(ctx context.Context, taskID, reason string) error
	// MarkBlocked records that the task was never dispatched because a
	// predecessor did not complete.
	MarkBlocked(ctx context.Context, taskID, reason string) error

	// QueryStatus returns the task's execution record. Tasks with no
	// record yet report StatusPending.
	QueryStatus(ctx context.Context, taskID string) (task.ExecutionRecord, error)
	// ListRecords returns all execution records in task registration order.
	ListRecords(ctx context.Context) ([]task.ExecutionRecord, error)

	// AppendFailure appends to the failure ledger. The ledger is
	// append-only; entries are never updated or removed.
	AppendFailure(ctx context.Context, taskID, reason string) error
	// Failures returns the ledger in append order.
	Failures(ctx context.Context) ([]FailureEntry, error)

	// SaveCheckpoint records the commit created for a settled group.
	SaveCheckpoint(ctx context.Context, groupIndex int, commitRef string) error
	// Checkpoints returns all checkpoints in group order.
	Checkpoints(ctx context.Context) ([]Checkpoint, error)

	Close() error
}
