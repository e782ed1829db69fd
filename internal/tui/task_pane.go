package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/batchflow/internal/events"
)

// TaskState tracks one task's display row.
type TaskState struct {
	TaskID    string
	Phase     string
	Domain    string
	Status    string // "running", "completed", "failed", "blocked"
	Detail    string // failure or block reason, or evidence snippet
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel lists tasks as the run touches them.
type TaskPaneModel struct {
	tasks     map[string]*TaskState // taskID -> state
	taskOrder []string              // dispatch order for display
	spinner   spinner.Model
	width     int
	height    int
	focused   bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusRunning
	return TaskPaneModel{
		tasks:   make(map[string]*TaskState),
		spinner: sp,
	}
}

// Init starts the spinner.
func (m TaskPaneModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				TaskID:    msg.ID,
				Phase:     msg.Phase,
				Domain:    msg.Domain,
				Status:    "running",
				StartTime: msg.Timestamp,
			}
			m.taskOrder = append(m.taskOrder, msg.ID)
		}

	case events.TaskCompletedEvent:
		if t, exists := m.tasks[msg.ID]; exists {
			t.Status = "completed"
			t.Duration = msg.Duration
			t.Detail = firstLine(msg.Evidence)
		}

	case events.TaskFailedEvent:
		if t, exists := m.tasks[msg.ID]; exists {
			t.Status = "failed"
			t.Duration = msg.Duration
			t.Detail = msg.Reason
		} else {
			m.tasks[msg.ID] = &TaskState{TaskID: msg.ID, Status: "failed", Detail: msg.Reason}
			m.taskOrder = append(m.taskOrder, msg.ID)
		}

	case events.TaskBlockedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{TaskID: msg.ID, Status: "blocked", Detail: msg.Reason}
			m.taskOrder = append(m.taskOrder, msg.ID)
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for _, taskID := range m.taskOrder {
			t := m.tasks[taskID]
			icon := m.statusIcon(t.Status)

			label := t.TaskID
			if t.Phase != "" && t.Phase != "none" {
				label = fmt.Sprintf("%s [%s]", t.TaskID, t.Phase)
			}

			line := fmt.Sprintf("%s %s", icon, label)
			if t.Detail != "" && t.Status != "completed" {
				detail := t.Detail
				if maxLen := m.width - lipgloss.Width(line) - 6; maxLen > 3 && len(detail) > maxLen {
					detail = detail[:maxLen-3] + "..."
				}
				line += StyleStatusPending.Render("  " + detail)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	content := b.String()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// statusIcon returns a styled status indicator. Running tasks animate.
func (m TaskPaneModel) statusIcon(status string) string {
	switch status {
	case "running":
		return m.spinner.View()
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "blocked":
		return StyleStatusBlocked.Render("■")
	default:
		return StyleStatusPending.Render("○")
	}
}

// firstLine truncates evidence to its first line for the list view.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
