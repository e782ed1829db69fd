package task

import (
	"time"
)

// Phase is the TDD phase a task declares.
// A chain runs PhaseFailingTest -> PhaseMakePass -> PhaseCleanup.
type Phase int

const (
	PhaseNone        Phase = iota // Plain work item, no TDD ordering constraint
	PhaseFailingTest              // Write a test that must fail for the expected reason
	PhaseMakePass                 // Make the paired failing test pass
	PhaseCleanup                  // Refactor while keeping the test run green
)

// String returns the tag form used in the raw task list.
func (p Phase) String() string {
	switch p {
	case PhaseFailingTest:
		return "failing-test"
	case PhaseMakePass:
		return "make-pass"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "none"
	}
}

// Domain classifies what part of the codebase a task touches.
// Domain homogeneity is what lets independent tasks share a Parallel batch.
type Domain int

const (
	DomainGeneral Domain = iota
	DomainBackend
	DomainFrontend
	DomainDatabase
	DomainTest
)

// String returns the lowercase domain name.
func (d Domain) String() string {
	switch d {
	case DomainBackend:
		return "backend"
	case DomainFrontend:
		return "frontend"
	case DomainDatabase:
		return "database"
	case DomainTest:
		return "test"
	default:
		return "general"
	}
}

// Task is one unit of work from the ordered task list.
// Tasks are created once at parse time and never mutated; all execution
// state lives in ExecutionRecords owned by the tracker.
type Task struct {
	ID          string // Unique identifier from the raw line (e.g., "T12")
	Seq         int    // Zero-based position in the raw list
	Description string // Free-text description after the ID and tags
	Phase       Phase
	Domain      Domain
	Predecessor string // Task ID this phase step depends on ("" until resolved)
}

// Status is the execution state of a task as recorded by the tracker.
type Status int

const (
	StatusPending    Status = iota // Entered a dispatched batch, not started
	StatusInProgress               // Worker is executing the task
	StatusCompleted                // Worker finished and the guard accepted
	StatusFailed                   // Worker failed, guard rejected, or deadline hit
	StatusBlocked                  // Predecessor not Completed; never dispatched
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	default:
		return "pending"
	}
}

// Terminal reports whether a status is final for barrier purposes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusBlocked
}

// ExecutionRecord is the persisted execution state of a single task.
type ExecutionRecord struct {
	TaskID    string
	Status    Status
	CommitRef string // Checkpoint commit that captured this task's work, if any
	Evidence  string // Free-form test-run summary from the worker
	Timestamp time.Time
}
