package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/batchflow/internal/tracker"
)

// BlockedTask names a task that was never dispatched and why.
type BlockedTask struct {
	ID     string
	Reason string
}

func sortBlocked(blocked []BlockedTask) {
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].ID < blocked[j].ID })
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Total    int

	Completed []string // completed this run
	Skipped   []string // completed by a prior run
	Failed    []string
	Blocked   []BlockedTask

	Failures    []tracker.FailureEntry
	Checkpoints []tracker.Checkpoint
}

// Clean reports whether every task completed.
func (r *Report) Clean() bool {
	return len(r.Failed) == 0 && len(r.Blocked) == 0
}

// ExitCode maps the run outcome to the process exit code: 0 when every
// task completed, 2 when some tasks failed or were blocked. Pre-flight
// and fatal errors never reach this; the CLI exits 1 for those.
func (r *Report) ExitCode() int {
	if r.Clean() {
		return 0
	}
	return 2
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Render formats the report for the terminal.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s", r.RunID)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d tasks in %s", r.Total, r.Duration.Round(time.Millisecond))))
	b.WriteString("\n\n")

	done := len(r.Completed) + len(r.Skipped)
	summary := fmt.Sprintf("%s  %s  %s",
		okStyle.Render(fmt.Sprintf("%d completed", done)),
		failStyle.Render(fmt.Sprintf("%d failed", len(r.Failed))),
		blockedStyle.Render(fmt.Sprintf("%d blocked", len(r.Blocked))),
	)
	b.WriteString(summary)
	b.WriteString("\n")

	if len(r.Skipped) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("(%d already completed by a prior run)", len(r.Skipped))))
		b.WriteString("\n")
	}

	if len(r.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(failStyle.Render("Failed:"))
		b.WriteString("\n")
		reasons := lastFailureReasons(r.Failures)
		for _, id := range r.Failed {
			if reason, ok := reasons[id]; ok {
				b.WriteString(fmt.Sprintf("  %s: %s\n", id, reason))
			} else {
				b.WriteString(fmt.Sprintf("  %s\n", id))
			}
		}
	}

	if len(r.Blocked) > 0 {
		b.WriteString("\n")
		b.WriteString(blockedStyle.Render("Blocked:"))
		b.WriteString("\n")
		for _, bt := range r.Blocked {
			b.WriteString(fmt.Sprintf("  %s: %s\n", bt.ID, bt.Reason))
		}
	}

	if len(r.Checkpoints) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Checkpoints:"))
		b.WriteString("\n")
		for _, cp := range r.Checkpoints {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  group %d  %.12s", cp.GroupIndex, cp.CommitRef)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// lastFailureReasons maps each task to its most recent ledger entry.
func lastFailureReasons(failures []tracker.FailureEntry) map[string]string {
	reasons := make(map[string]string, len(failures))
	for _, f := range failures {
		reasons[f.TaskID] = f.Reason
	}
	return reasons
}
