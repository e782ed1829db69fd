package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/batchflow/internal/events"
	"github.com/aristath/batchflow/internal/guard"
	"github.com/aristath/batchflow/internal/scheduler"
	"github.com/aristath/batchflow/internal/task"
	"github.com/aristath/batchflow/internal/tracker"
	"github.com/aristath/batchflow/internal/worker"
	"github.com/aristath/batchflow/internal/workspace"
)

// Workspaces is the slice of the workspace manager the coordinator
// needs. Tests substitute a fake.
type Workspaces interface {
	Create(taskID string) (*workspace.Info, error)
	Merge(info *workspace.Info) (*workspace.MergeResult, error)
	Discard(info *workspace.Info) error
	Cleanup(info *workspace.Info) error
	Checkpoint(groupIndex int, message string) (string, error)
	Prune() error
}

// TaskGuard enforces phase preconditions and postconditions. The TDD
// guard satisfies this; tests substitute a permissive fake.
type TaskGuard interface {
	CanStart(ctx context.Context, t *task.Task) (ok bool, reason string, err error)
	Accept(t *task.Task, evidence string) error
}

// Config configures the coordinator.
type Config struct {
	Concurrency int           // Max concurrent tasks within a batch (default 4)
	TaskTimeout time.Duration // Per-task deadline (0 disables)
	Retry       RetryConfig   // Worker dispatch retry policy
}

// Coordinator walks a plan group by group, dispatching each batch's
// tasks to workers in isolated workspaces, enforcing the guard around
// every dispatch, and committing one checkpoint per settled group.
type Coordinator struct {
	cfg        Config
	worker     worker.Worker
	guard      TaskGuard
	tracker    tracker.Tracker
	workspaces Workspaces
	rollback   *RollbackManager
	bus        *events.EventBus
	breaker    *gobreaker.CircuitBreaker

	mu        sync.Mutex
	completed []string
	failed    []string
	blocked   map[string]string // taskID -> reason
	skipped   []string          // completed in a prior run
	total     int
}

// New creates a coordinator. The event bus is optional.
func New(cfg Config, w worker.Worker, g TaskGuard, tr tracker.Tracker, ws Workspaces, bus *events.EventBus) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = scheduler.DefaultMaxBatchSize
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Coordinator{
		cfg:        cfg,
		worker:     w,
		guard:      g,
		tracker:    tr,
		workspaces: ws,
		rollback:   NewRollbackManager(tr, ws, bus),
		bus:        bus,
		breaker:    newWorkerBreaker(),
		blocked:    make(map[string]string),
	}
}

// Run executes the plan. The returned error is non-nil only for fatal
// conditions (tracker inconsistency, checkpoint failure, broken worker,
// cancellation); ordinary task failures are recorded in the report.
func (c *Coordinator) Run(ctx context.Context, plan *scheduler.Plan) (*Report, error) {
	runID := uuid.NewString()
	started := time.Now()
	allTasks := plan.Tasks()
	c.total = len(allTasks)

	log.Printf("Run %s: %d tasks in %d groups", runID, len(allTasks), len(plan.Groups))

	// Clean stale workspaces from prior crashes
	if err := c.workspaces.Prune(); err != nil {
		log.Printf("WARNING: failed to prune stale workspaces: %v", err)
	}

	// Register every task before dispatching anything. A fingerprint
	// mismatch against a prior run is fatal.
	for _, t := range allTasks {
		if err := c.tracker.RegisterTask(ctx, t); err != nil {
			return nil, err
		}
	}

	for _, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return c.report(ctx, runID, started), err
		}

		for _, batch := range group.Batches {
			if err := c.runBatch(ctx, group.Index, batch, allTasks); err != nil {
				return c.report(ctx, runID, started), err
			}
		}

		// Barrier reached: every batch in the group has settled.
		if err := c.checkpoint(ctx, group.Index, runID); err != nil {
			return c.report(ctx, runID, started), err
		}
	}

	return c.report(ctx, runID, started), nil
}

// runBatch dispatches one batch. Parallel batches run their tasks
// concurrently with bounded concurrency; sequential batches hold a
// single task so the same path serves both.
func (c *Coordinator) runBatch(ctx context.Context, groupIndex int, batch *scheduler.Batch, allTasks []*task.Task) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := c.cfg.Concurrency
	if batch.Mode == scheduler.Sequential {
		limit = 1
	}
	g.SetLimit(limit)

	for _, t := range batch.Tasks {
		t := t
		g.Go(func() error {
			return c.runTask(gctx, groupIndex, t, allTasks)
		})
	}

	return g.Wait()
}

// runTask runs one task end to end. Ordinary failures are recorded and
// return nil so the rest of the batch keeps going; the returned error
// is reserved for conditions that must abort the run.
func (c *Coordinator) runTask(ctx context.Context, groupIndex int, t *task.Task, allTasks []*task.Task) error {
	// Resume: a task completed by a prior run is not re-dispatched.
	rec, err := c.tracker.QueryStatus(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("querying status of %s: %w", t.ID, err)
	}
	if rec.Status == task.StatusCompleted {
		c.recordSkipped(t.ID)
		return nil
	}

	// A predecessor failure may have blocked this task already.
	c.mu.Lock()
	_, isBlocked := c.blocked[t.ID]
	c.mu.Unlock()
	if isBlocked {
		return nil
	}

	// Phase precondition.
	ok, reason, err := c.guard.CanStart(ctx, t)
	if err != nil {
		return fmt.Errorf("guard precondition for %s: %w", t.ID, err)
	}
	if !ok {
		return c.blockTask(ctx, t, reason, allTasks)
	}

	if err := c.tracker.MarkInProgress(ctx, t.ID); err != nil {
		return fmt.Errorf("marking %s in progress: %w", t.ID, err)
	}
	c.publish(events.TopicTask, events.TaskStartedEvent{
		ID:         t.ID,
		Phase:      t.Phase.String(),
		Domain:     t.Domain.String(),
		GroupIndex: groupIndex,
		Timestamp:  time.Now(),
	})
	taskStart := time.Now()

	info, err := c.workspaces.Create(t.ID)
	if err != nil {
		return c.failTask(ctx, t, nil, fmt.Sprintf("failed to create workspace: %v", err), allTasks)
	}

	taskCtx := ctx
	if c.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.cfg.TaskTimeout)
		defer cancel()
	}

	res, err := executeWithRetry(taskCtx, c.worker, worker.Request{
		TaskID:      t.ID,
		Description: t.Description,
		Phase:       t.Phase.String(),
		WorkDir:     info.Path,
	}, c.breaker, c.cfg.Retry)
	if err != nil {
		if errors.Is(err, ErrWorkerUnavailable) {
			// The executor itself is broken; recording more failures
			// against the remaining tasks would only blur the cause.
			_ = c.rollback.HandleFailure(ctx, t, info, err.Error())
			c.recordFailed(t.ID)
			return err
		}
		if ctx.Err() != nil {
			_ = c.rollback.HandleFailure(ctx, t, info, "run cancelled")
			c.recordFailed(t.ID)
			return ctx.Err()
		}
		reason := fmt.Sprintf("worker dispatch failed: %v", err)
		if taskCtx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("task exceeded deadline of %s", c.cfg.TaskTimeout)
		}
		return c.failTask(ctx, t, info, reason, allTasks)
	}

	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = "worker reported failure"
		}
		return c.failTask(ctx, t, info, reason, allTasks)
	}

	// Phase postcondition. A rejection is an ordinary failure: the
	// offending task rolls back, the rest of the batch continues.
	if err := c.guard.Accept(t, res.Evidence); err != nil {
		var rej *guard.Rejection
		if errors.As(err, &rej) {
			return c.failTask(ctx, t, info, rej.Reason, allTasks)
		}
		return c.failTask(ctx, t, info, err.Error(), allTasks)
	}

	mergeRes, err := c.workspaces.Merge(info)
	if err != nil {
		return c.failTask(ctx, t, info, fmt.Sprintf("merge error: %v", err), allTasks)
	}
	c.publish(events.TopicTask, events.TaskMergedEvent{
		ID:            t.ID,
		Merged:        mergeRes.Merged,
		ConflictFiles: mergeRes.ConflictFiles,
		Timestamp:     time.Now(),
	})
	if !mergeRes.Merged {
		return c.failTask(ctx, t, info, fmt.Sprintf("merge conflict: %v", mergeRes.Error), allTasks)
	}

	if err := c.workspaces.Cleanup(info); err != nil {
		log.Printf("WARNING: failed to clean up workspace for %s: %v", t.ID, err)
	}

	if err := c.tracker.MarkCompleted(ctx, t.ID, "", res.Evidence); err != nil {
		return fmt.Errorf("marking %s completed: %w", t.ID, err)
	}
	c.recordCompleted(t.ID)
	c.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        t.ID,
		Evidence:  res.Evidence,
		Duration:  time.Since(taskStart),
		Timestamp: time.Now(),
	})
	c.publishProgress()
	return nil
}

// failTask records an ordinary task failure and blocks its dependents.
func (c *Coordinator) failTask(ctx context.Context, t *task.Task, info *workspace.Info, reason string, allTasks []*task.Task) error {
	if err := c.rollback.HandleFailure(ctx, t, info, reason); err != nil {
		return err
	}
	c.recordFailed(t.ID)

	blocked, err := c.rollback.BlockDependents(ctx, t.ID, allTasks)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, id := range blocked {
		c.blocked[id] = fmt.Sprintf("predecessor %s did not complete", t.ID)
	}
	c.mu.Unlock()

	c.publishProgress()
	return nil
}

// blockTask records a task the guard refused to start, and cascades to
// its dependents.
func (c *Coordinator) blockTask(ctx context.Context, t *task.Task, reason string, allTasks []*task.Task) error {
	if err := c.tracker.MarkBlocked(ctx, t.ID, reason); err != nil {
		return fmt.Errorf("marking %s blocked: %w", t.ID, err)
	}
	c.mu.Lock()
	c.blocked[t.ID] = reason
	c.mu.Unlock()
	c.publish(events.TopicTask, events.TaskBlockedEvent{
		ID:        t.ID,
		Reason:    reason,
		Timestamp: time.Now(),
	})

	blocked, err := c.rollback.BlockDependents(ctx, t.ID, allTasks)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, id := range blocked {
		c.blocked[id] = fmt.Sprintf("predecessor %s did not complete", t.ID)
	}
	c.mu.Unlock()

	c.publishProgress()
	return nil
}

// checkpoint commits the settled group and records it. A quiescent
// tree (every task failed or was blocked) produces no checkpoint.
func (c *Coordinator) checkpoint(ctx context.Context, groupIndex int, runID string) error {
	ref, err := c.workspaces.Checkpoint(groupIndex, fmt.Sprintf("batchflow: checkpoint group %d", groupIndex))
	if err != nil {
		return err
	}
	if ref == "" {
		return nil
	}

	if err := c.tracker.SaveCheckpoint(ctx, groupIndex, ref); err != nil {
		return fmt.Errorf("recording checkpoint for group %d: %w", groupIndex, err)
	}
	c.publish(events.TopicRun, events.CheckpointEvent{
		GroupIndex: groupIndex,
		CommitRef:  ref,
		Timestamp:  time.Now(),
	})
	log.Printf("Run %s: group %d checkpointed at %.12s", runID, groupIndex, ref)
	return nil
}

func (c *Coordinator) recordCompleted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, id)
}

func (c *Coordinator) recordFailed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, id)
}

func (c *Coordinator) recordSkipped(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped = append(c.skipped, id)
}

func (c *Coordinator) publish(topic string, e events.Event) {
	if c.bus != nil {
		c.bus.Publish(topic, e)
	}
}

func (c *Coordinator) publishProgress() {
	if c.bus == nil {
		return
	}
	c.mu.Lock()
	done := len(c.completed) + len(c.skipped)
	failed := len(c.failed)
	blocked := len(c.blocked)
	pending := c.total - done - failed - blocked
	c.mu.Unlock()
	if pending < 0 {
		pending = 0
	}
	c.bus.Publish(events.TopicRun, events.RunProgressEvent{
		Total:     c.total,
		Completed: done,
		Failed:    failed,
		Blocked:   blocked,
		Pending:   pending,
		Timestamp: time.Now(),
	})
}

// report assembles the final run report from the coordinator's tallies
// and the tracker's ledgers.
func (c *Coordinator) report(ctx context.Context, runID string, started time.Time) *Report {
	c.mu.Lock()
	r := &Report{
		RunID:     runID,
		Started:   started,
		Duration:  time.Since(started),
		Total:     c.total,
		Completed: append([]string(nil), c.completed...),
		Failed:    append([]string(nil), c.failed...),
		Skipped:   append([]string(nil), c.skipped...),
	}
	for id, reason := range c.blocked {
		r.Blocked = append(r.Blocked, BlockedTask{ID: id, Reason: reason})
	}
	c.mu.Unlock()
	sortBlocked(r.Blocked)

	if failures, err := c.tracker.Failures(ctx); err == nil {
		r.Failures = failures
	}
	if checkpoints, err := c.tracker.Checkpoints(ctx); err == nil {
		r.Checkpoints = checkpoints
	}
	return r
}
