package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskBlocked   = "task.blocked"
	EventTypeTaskMerged    = "task.merged"
	EventTypeCheckpoint    = "run.checkpoint"
	EventTypeRunProgress   = "run.progress"
)

// TaskStartedEvent is published when a task is dispatched to a worker.
type TaskStartedEvent struct {
	ID         string
	Phase      string
	Domain     string
	GroupIndex int
	Timestamp  time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task's work is accepted and merged.
type TaskCompletedEvent struct {
	ID        string
	Evidence  string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails or its result is rejected.
type TaskFailedEvent struct {
	ID        string
	Reason    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskBlockedEvent is published when a task is skipped because a
// predecessor did not complete.
type TaskBlockedEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskBlockedEvent) EventType() string { return EventTypeTaskBlocked }
func (e TaskBlockedEvent) TaskID() string    { return e.ID }

// TaskMergedEvent is published when a task workspace is merged back to
// the base branch.
type TaskMergedEvent struct {
	ID            string
	Merged        bool
	ConflictFiles []string
	Timestamp     time.Time
}

func (e TaskMergedEvent) EventType() string { return EventTypeTaskMerged }
func (e TaskMergedEvent) TaskID() string    { return e.ID }

// CheckpointEvent is published after a group settles and its commit is
// recorded.
type CheckpointEvent struct {
	GroupIndex int
	CommitRef  string
	Timestamp  time.Time
}

func (e CheckpointEvent) EventType() string { return EventTypeCheckpoint }
func (e CheckpointEvent) TaskID() string    { return "" }

// RunProgressEvent is published as the run's aggregate counts change.
type RunProgressEvent struct {
	Total     int
	Completed int
	Running   int
	Failed    int
	Blocked   int
	Pending   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
