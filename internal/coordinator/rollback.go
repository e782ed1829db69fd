package coordinator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aristath/batchflow/internal/events"
	"github.com/aristath/batchflow/internal/task"
	"github.com/aristath/batchflow/internal/tracker"
	"github.com/aristath/batchflow/internal/workspace"
)

// RollbackManager reverses the effects of a failed or rejected task:
// its workspace is discarded so no partial work can leak into the base
// branch, the failure is recorded in the ledger, and every task that
// transitively depends on it is blocked.
type RollbackManager struct {
	tracker    tracker.Tracker
	workspaces Workspaces
	bus        *events.EventBus
}

// NewRollbackManager creates a rollback manager. The event bus is
// optional.
func NewRollbackManager(tr tracker.Tracker, ws Workspaces, bus *events.EventBus) *RollbackManager {
	return &RollbackManager{tracker: tr, workspaces: ws, bus: bus}
}

// HandleFailure rolls back one failed task. The workspace may be nil
// when failure happened before the workspace was created.
func (r *RollbackManager) HandleFailure(ctx context.Context, t *task.Task, info *workspace.Info, reason string) error {
	if info != nil {
		if err := r.workspaces.Discard(info); err != nil {
			// The failure record still matters more than a stray worktree.
			log.Printf("WARNING: failed to discard workspace for %s: %v", t.ID, err)
		}
	}

	if err := r.tracker.MarkFailed(ctx, t.ID, reason); err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", t.ID, err)
	}
	if err := r.tracker.AppendFailure(ctx, t.ID, reason); err != nil {
		return fmt.Errorf("failed to append failure ledger entry for %s: %w", t.ID, err)
	}

	if r.bus != nil {
		r.bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID:        t.ID,
			Reason:    reason,
			Timestamp: time.Now(),
		})
	}
	return nil
}

// BlockDependents marks every task that transitively depends on the
// failed task as blocked and returns their IDs. Dependents are found
// by walking predecessor edges breadth-first.
func (r *RollbackManager) BlockDependents(ctx context.Context, failedID string, tasks []*task.Task) ([]string, error) {
	children := make(map[string][]*task.Task)
	for _, t := range tasks {
		if t.Predecessor != "" {
			children[t.Predecessor] = append(children[t.Predecessor], t)
		}
	}

	var blocked []string
	queue := []string{failedID}
	seen := map[string]bool{failedID: true}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, dep := range children[id] {
			if seen[dep.ID] {
				continue
			}
			seen[dep.ID] = true

			reason := fmt.Sprintf("predecessor %s did not complete", failedID)
			if err := r.tracker.MarkBlocked(ctx, dep.ID, reason); err != nil {
				return blocked, fmt.Errorf("failed to mark %s blocked: %w", dep.ID, err)
			}
			blocked = append(blocked, dep.ID)

			if r.bus != nil {
				r.bus.Publish(events.TopicTask, events.TaskBlockedEvent{
					ID:        dep.ID,
					Reason:    reason,
					Timestamp: time.Now(),
				})
			}

			queue = append(queue, dep.ID)
		}
	}

	return blocked, nil
}
