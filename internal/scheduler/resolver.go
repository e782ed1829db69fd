package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/batchflow/internal/task"
)

// BrokenChain describes one task whose TDD phase chain could not be
// resolved.
type BrokenChain struct {
	TaskID string
	Reason string
}

// DependencyError is the pre-flight error for invalid phase chains.
// It enumerates every broken chain, not just the first, so the task
// list can be fixed in one pass.
type DependencyError struct {
	Broken []BrokenChain
}

func (e *DependencyError) Error() string {
	parts := make([]string, 0, len(e.Broken))
	for _, b := range e.Broken {
		parts = append(parts, fmt.Sprintf("%s: %s", b.TaskID, b.Reason))
	}
	return fmt.Sprintf("dependency error in %d task(s): %s", len(e.Broken), strings.Join(parts, "; "))
}

// Resolver validates and links TDD phase chains into a partial order.
// It never reorders tasks: list order is the scheduling backbone, and
// the resolver only annotates each make-pass and cleanup step with the
// predecessor it depends on.
//
// A failing-test step is "open" until a make-pass step consumes it; a
// make-pass step is then open until a cleanup step consumes it.
// Explicit after= references may consume any open step regardless of
// domain. Inference only binds when exactly one open candidate exists
// in the task's own domain; zero or several candidates fail closed
// with a DependencyError telling the author to add an explicit
// reference.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// openSteps tracks phase steps that have not been consumed yet.
type openSteps struct {
	byID     map[string]*task.Task                 // open step lookup for explicit references
	byDomain map[task.Domain]map[task.Phase][]*task.Task // inference candidates in list order
}

func newOpenSteps() *openSteps {
	return &openSteps{
		byID:     make(map[string]*task.Task),
		byDomain: make(map[task.Domain]map[task.Phase][]*task.Task),
	}
}

func (o *openSteps) add(t *task.Task) {
	o.byID[t.ID] = t
	phases, ok := o.byDomain[t.Domain]
	if !ok {
		phases = make(map[task.Phase][]*task.Task)
		o.byDomain[t.Domain] = phases
	}
	phases[t.Phase] = append(phases[t.Phase], t)
}

func (o *openSteps) consume(t *task.Task) {
	delete(o.byID, t.ID)
	candidates := o.byDomain[t.Domain][t.Phase]
	kept := candidates[:0]
	for _, c := range candidates {
		if c.ID != t.ID {
			kept = append(kept, c)
		}
	}
	o.byDomain[t.Domain][t.Phase] = kept
}

func (o *openSteps) candidates(domain task.Domain, phase task.Phase) []*task.Task {
	return o.byDomain[domain][phase]
}

// Resolve walks tasks in order and returns annotated copies with every
// Predecessor reference resolved; the input tasks are not mutated.
func (r *Resolver) Resolve(tasks []*task.Task) ([]*task.Task, error) {
	resolved := make([]*task.Task, 0, len(tasks))
	byID := make(map[string]*task.Task, len(tasks))
	open := newOpenSteps()
	var broken []BrokenChain

	for _, t := range tasks {
		cp := *t

		switch cp.Phase {
		case task.PhaseFailingTest:
			open.add(&cp)

		case task.PhaseMakePass:
			pred, reason := bindPredecessor(&cp, byID, open, task.PhaseFailingTest)
			if reason != "" {
				broken = append(broken, BrokenChain{TaskID: cp.ID, Reason: reason})
				break
			}
			cp.Predecessor = pred.ID
			open.consume(pred)
			open.add(&cp)

		case task.PhaseCleanup:
			pred, reason := bindPredecessor(&cp, byID, open, task.PhaseMakePass)
			if reason != "" {
				broken = append(broken, BrokenChain{TaskID: cp.ID, Reason: reason})
				break
			}
			cp.Predecessor = pred.ID
			open.consume(pred)
		}

		byID[cp.ID] = &cp
		resolved = append(resolved, &cp)
	}

	if len(broken) > 0 {
		return nil, &DependencyError{Broken: broken}
	}

	if err := validateGraph(resolved); err != nil {
		return nil, err
	}

	return resolved, nil
}

// bindPredecessor resolves the predecessor for a make-pass or cleanup
// step. Returns the predecessor or a non-empty reason string.
func bindPredecessor(t *task.Task, byID map[string]*task.Task, open *openSteps, wantPhase task.Phase) (*task.Task, string) {
	if t.Predecessor != "" {
		pred, seen := byID[t.Predecessor]
		if !seen {
			return nil, fmt.Sprintf("references %q which does not precede it in the list", t.Predecessor)
		}
		if pred.Phase != wantPhase {
			return nil, fmt.Sprintf("references %q which is a %s step, not %s", t.Predecessor, pred.Phase, wantPhase)
		}
		openPred, stillOpen := open.byID[t.Predecessor]
		if !stillOpen {
			return nil, fmt.Sprintf("references %q whose chain is already closed", t.Predecessor)
		}
		return openPred, ""
	}

	candidates := open.candidates(t.Domain, wantPhase)
	switch len(candidates) {
	case 0:
		return nil, fmt.Sprintf("no open %s step in its %s chain", wantPhase, t.Domain)
	case 1:
		return candidates[0], ""
	default:
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return nil, fmt.Sprintf("ambiguous: %d open %s steps (%s); add an explicit after= reference",
			len(candidates), wantPhase, strings.Join(ids, ", "))
	}
}

// validateGraph runs a topological sort over the resolved predecessor
// edges. Resolution only ever links backwards, so a cycle indicates a
// resolver bug, but the sort also catches dangling references.
func validateGraph(tasks []*task.Task) error {
	var edges []toposort.Edge
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}

	for _, t := range tasks {
		if t.Predecessor == "" {
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		if !ids[t.Predecessor] {
			return &DependencyError{Broken: []BrokenChain{{
				TaskID: t.ID,
				Reason: fmt.Sprintf("resolved predecessor %q is not in the task list", t.Predecessor),
			}}}
		}
		edges = append(edges, toposort.Edge{t.Predecessor, t.ID})
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return &DependencyError{Broken: []BrokenChain{{
			TaskID: "",
			Reason: fmt.Sprintf("predecessor graph contains a cycle: %v", err),
		}}}
	}

	return nil
}
