package scheduler

import (
	"github.com/aristath/batchflow/internal/task"
)

// Default packing limits.
const (
	DefaultMaxBatchSize = 4 // Tasks per Parallel batch
	DefaultMaxGroupSize = 3 // Batches per Group (and the worker pool size)
)

// BatchMode determines how a batch's tasks execute.
type BatchMode int

const (
	Sequential BatchMode = iota // Exactly one phase-bound task
	Parallel                    // Independent same-domain tasks, no ordering among them
)

// String returns the lowercase mode name.
func (m BatchMode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// Batch is a unit of work dispatched together. Immutable once built.
// Invariant: a batch containing any phase-bound task holds exactly that
// one task in Sequential mode; a Parallel batch holds only PhaseNone
// tasks of one domain, at most MaxBatchSize of them.
type Batch struct {
	Tasks []*task.Task
	Mode  BatchMode
}

// Domain returns the shared domain of the batch's tasks.
func (b *Batch) Domain() task.Domain {
	return b.Tasks[0].Domain
}

// Group is a bounded run of consecutive batches executed concurrently
// with a barrier before checkpointing.
type Group struct {
	Index   int
	Batches []*Batch
}

// Plan is the full execution plan: batches in list order, chunked into
// groups. Concatenating the plan in order reproduces the input task
// order exactly.
type Plan struct {
	Batches []*Batch
	Groups  []*Group
}

// Tasks returns the plan's tasks flattened back into list order.
func (p *Plan) Tasks() []*task.Task {
	var out []*task.Task
	for _, b := range p.Batches {
		out = append(out, b.Tasks...)
	}
	return out
}

// TaskCount returns the total number of tasks in the plan.
func (p *Plan) TaskCount() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Tasks)
	}
	return n
}

// BatchScheduler packs an ordered, dependency-validated task list into
// batches and groups. It is a single linear pass that preserves input
// order: reordering would silently break author-intended sequencing,
// so group and batch boundaries only ever partition the sequence.
type BatchScheduler struct {
	maxBatchSize int
	maxGroupSize int
}

// NewBatchScheduler creates a scheduler with the given limits.
// Non-positive limits fall back to the defaults.
func NewBatchScheduler(maxBatchSize, maxGroupSize int) *BatchScheduler {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if maxGroupSize <= 0 {
		maxGroupSize = DefaultMaxGroupSize
	}
	return &BatchScheduler{maxBatchSize: maxBatchSize, maxGroupSize: maxGroupSize}
}

// Schedule builds the execution plan for the given tasks.
//
// Phase-bound tasks always flush the open accumulator and become their
// own Sequential singleton batch. That flush boundary is what gives the
// system its sequencing guarantee: a make-pass step can never end up
// concurrent with its own failing-test predecessor.
func (s *BatchScheduler) Schedule(tasks []*task.Task) *Plan {
	var batches []*Batch
	var acc []*task.Task

	flush := func() {
		if len(acc) == 0 {
			return
		}
		batches = append(batches, &Batch{Tasks: acc, Mode: Parallel})
		acc = nil
	}

	for _, t := range tasks {
		if t.Phase != task.PhaseNone {
			flush()
			batches = append(batches, &Batch{Tasks: []*task.Task{t}, Mode: Sequential})
			continue
		}

		if len(acc) > 0 && (acc[0].Domain != t.Domain || len(acc) >= s.maxBatchSize) {
			flush()
		}
		acc = append(acc, t)
	}
	flush()

	return &Plan{
		Batches: batches,
		Groups:  s.chunkGroups(batches),
	}
}

// chunkGroups packs the batch sequence into groups by run-length
// chunking, preserving order.
func (s *BatchScheduler) chunkGroups(batches []*Batch) []*Group {
	var groups []*Group
	for start := 0; start < len(batches); start += s.maxGroupSize {
		end := start + s.maxGroupSize
		if end > len(batches) {
			end = len(batches)
		}
		groups = append(groups, &Group{
			Index:   len(groups),
			Batches: batches[start:end],
		})
	}
	return groups
}
