package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/filmcrew/internal/events"
)

// Task states as shown in the list.
const (
	statusPending   = "pending"
	statusBlocked   = "blocked"
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

const listWidth = 28

// TaskState is what the dashboard knows about one task.
type TaskState struct {
	TaskID    string
	Name      string
	AgentID   string
	Status    string
	Output    []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list and the selected task's output.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // insertion order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Other keys scroll the output
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskAddedEvent:
		status := statusPending
		if msg.Blocked {
			status = statusBlocked
		}
		m.track(msg.ID, msg.Name, msg.AgentID, status)

	case events.TaskUnblockedEvent:
		if task, ok := m.tasks[msg.ID]; ok && task.Status == statusBlocked {
			task.Status = statusPending
		}

	case events.TaskStartedEvent:
		task := m.track(msg.ID, msg.Name, msg.AgentID, statusRunning)
		task.Status = statusRunning
		task.StartTime = msg.Timestamp
		task.Output = append(task.Output, fmt.Sprintf("[%s → %s]", msg.Action, msg.AgentID))
		m.refreshIfSelected(msg.ID)

	case events.TaskOutputEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Output = append(task.Output, msg.Line)
			if m.selectedTaskID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.TaskCompletedEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = statusCompleted
			task.Duration = msg.Duration
			if msg.Result != "" {
				task.Output = append(task.Output, msg.Result)
			}
			task.Output = append(task.Output, fmt.Sprintf("\n[Completed in %v]", msg.Duration.Round(time.Millisecond)))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskFailedEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = statusFailed
			task.Duration = msg.Duration
			task.Output = append(task.Output, fmt.Sprintf("\n[Failed: %v]", msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskCancelledEvent:
		if task, ok := m.tasks[msg.ID]; ok {
			task.Status = statusCancelled
			task.Output = append(task.Output, "\n[Cancelled]")
			m.refreshIfSelected(msg.ID)
		}

	case events.QueueClearedEvent:
		m.tasks = make(map[string]*TaskState)
		m.taskOrder = nil
		m.selectedIdx = 0
		m.updateViewportContent()

	case tickMsg:
		// Only update if this tick matches the current tag (debouncing)
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// track returns the state for taskID, creating it if needed.
func (m *TaskPaneModel) track(taskID, name, agentID, status string) *TaskState {
	if task, ok := m.tasks[taskID]; ok {
		return task
	}
	task := &TaskState{
		TaskID:  taskID,
		Name:    name,
		AgentID: agentID,
		Status:  status,
	}
	m.tasks[taskID] = task
	m.taskOrder = append(m.taskOrder, taskID)
	// Auto-select first task
	if len(m.taskOrder) == 1 {
		m.selectedIdx = 0
		m.updateViewportContent()
	}
	return task
}

func (m *TaskPaneModel) refreshIfSelected(taskID string) {
	if m.selectedTaskID() == taskID {
		m.updateViewportContent()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4 // borders and padding

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return paneFrame(m.focused, m.width, m.height).Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(statusText(statusPending, "Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			task := m.tasks[taskID]
			line := fmt.Sprintf("%s %s", StatusIcon(task.Status), truncate(task.Name, width-3))
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// Selected returns the selected task, if any.
func (m TaskPaneModel) Selected() (*TaskState, bool) {
	task, ok := m.tasks[m.selectedTaskID()]
	return task, ok
}

// Len returns how many tasks the pane tracks.
func (m TaskPaneModel) Len() int {
	return len(m.taskOrder)
}

func (m *TaskPaneModel) updateViewportContent() {
	task, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s (%s, %s)", task.Name, task.AgentID, task.Status)
	m.viewport.SetContent(header + "\n\n" + strings.Join(task.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	viewportWidth := max(m.width-listWidth-4, 10)
	viewportHeight := max(m.height-4, 5)

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
