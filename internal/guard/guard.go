package guard

import (
	"context"
	"fmt"

	"github.com/aristath/batchflow/internal/task"
)

// StatusOracle answers status queries about other tasks. The tracker
// satisfies this; tests use a map-backed fake.
type StatusOracle interface {
	QueryStatus(ctx context.Context, taskID string) (task.ExecutionRecord, error)
}

// TestRunner runs the repository test suite and reports whether it is
// green. The cleanup precondition queries it fresh rather than trusting
// cached evidence.
type TestRunner interface {
	Run(ctx context.Context) (passed bool, summary string, err error)
}

// Rejection is returned by Accept when the evidence does not satisfy
// the phase's postcondition. The coordinator treats any Rejection as a
// task failure and triggers rollback; a rejected task is never marked
// Completed.
type Rejection struct {
	TaskID string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("guard rejected task %s: %s", r.TaskID, r.Reason)
}

// Guard enforces TDD phase preconditions and postconditions around
// worker execution.
type Guard struct {
	oracle StatusOracle
	runner TestRunner
	judge  EvidenceJudge
}

// New creates a Guard. A nil judge falls back to the keyword judge.
func New(oracle StatusOracle, runner TestRunner, judge EvidenceJudge) *Guard {
	if judge == nil {
		judge = KeywordJudge{}
	}
	return &Guard{oracle: oracle, runner: runner, judge: judge}
}

// CanStart checks the phase precondition for dispatching a task.
// Returns ok=false with a human-readable reason when the task must not
// start; err is reserved for oracle or runner failures.
func (g *Guard) CanStart(ctx context.Context, t *task.Task) (ok bool, reason string, err error) {
	switch t.Phase {
	case task.PhaseNone, task.PhaseFailingTest:
		return true, "", nil

	case task.PhaseMakePass:
		return g.predecessorCompleted(ctx, t)

	case task.PhaseCleanup:
		ok, reason, err := g.predecessorCompleted(ctx, t)
		if err != nil || !ok {
			return ok, reason, err
		}
		// Queried fresh: the tree may have drifted since the make-pass
		// step's evidence was recorded.
		passed, summary, err := g.runner.Run(ctx)
		if err != nil {
			return false, "", fmt.Errorf("pre-cleanup test run: %w", err)
		}
		if !passed {
			return false, fmt.Sprintf("test run is not green before cleanup: %s", summary), nil
		}
		return true, "", nil

	default:
		return false, fmt.Sprintf("unknown phase %d", t.Phase), nil
	}
}

// predecessorCompleted checks that the task's predecessor has a
// Completed record.
func (g *Guard) predecessorCompleted(ctx context.Context, t *task.Task) (bool, string, error) {
	if t.Predecessor == "" {
		return false, fmt.Sprintf("%s step %s has no resolved predecessor", t.Phase, t.ID), nil
	}
	rec, err := g.oracle.QueryStatus(ctx, t.Predecessor)
	if err != nil {
		return false, "", fmt.Errorf("querying predecessor %s: %w", t.Predecessor, err)
	}
	if rec.Status != task.StatusCompleted {
		return false, fmt.Sprintf("predecessor %s is %s, not completed", t.Predecessor, rec.Status), nil
	}
	return true, "", nil
}

// Accept checks the phase postcondition against the worker's evidence.
// Returns nil when the task may be marked Completed, or a *Rejection.
func (g *Guard) Accept(t *task.Task, evidence string) error {
	verdict := g.judge.Judge(evidence)

	switch t.Phase {
	case task.PhaseNone:
		return nil

	case task.PhaseFailingTest:
		switch verdict {
		case VerdictExpectedFailure:
			return nil
		case VerdictPass:
			// A test that passes before its implementation exists is
			// testing the wrong defect.
			return &Rejection{TaskID: t.ID, Reason: "new test unexpectedly passes"}
		case VerdictFailure:
			return &Rejection{TaskID: t.ID, Reason: "test failed for an unrelated reason, not the expected defect"}
		default:
			return &Rejection{TaskID: t.ID, Reason: "evidence does not show a failing test run"}
		}

	case task.PhaseMakePass:
		if verdict != VerdictPass {
			return &Rejection{TaskID: t.ID, Reason: fmt.Sprintf("full test run is not green (%s)", verdict)}
		}
		return nil

	case task.PhaseCleanup:
		if verdict != VerdictPass {
			return &Rejection{TaskID: t.ID, Reason: fmt.Sprintf("test run did not stay green after cleanup (%s)", verdict)}
		}
		return nil

	default:
		return &Rejection{TaskID: t.ID, Reason: fmt.Sprintf("unknown phase %d", t.Phase)}
	}
}
