package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/filmcrew/internal/events"
)

// ProgressPaneModel shows queue-wide counts and a progress bar.
type ProgressPaneModel struct {
	progress events.QueueProgressEvent
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a new progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.QueueProgressEvent:
		m.progress = msg
	case events.QueueClearedEvent:
		m.progress = events.QueueProgressEvent{}
	}
	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	p := m.progress
	var b strings.Builder

	title := StyleTitle.Render("Queue")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", p.Total))
	for _, row := range []struct {
		label  string
		status string
		n      int
	}{
		{"Completed", statusCompleted, p.Completed},
		{"Running", statusRunning, p.Running},
		{"Failed", statusFailed, p.Failed},
		{"Pending", statusPending, p.Pending},
		{"Blocked", statusBlocked, p.Blocked},
		{"Cancelled", statusCancelled, p.Cancelled},
	} {
		fmt.Fprintf(&b, "%-10s %s\n", row.label+":", statusText(row.status, fmt.Sprint(row.n)))
	}
	b.WriteString("\n")

	if p.Total > 0 {
		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", m.bar(min(m.width-4, 40)), p.Done(), p.Total))
	}

	return paneFrame(m.focused, m.width, m.height).Render(b.String())
}

// bar draws finished, failed and running segments over a dotted track.
func (m ProgressPaneModel) bar(width int) string {
	p := m.progress
	if p.Total == 0 || width <= 0 {
		return ""
	}
	completedWidth := (p.Completed + p.Cancelled) * width / p.Total
	failedWidth := p.Failed * width / p.Total
	runningWidth := p.Running * width / p.Total
	restWidth := width - completedWidth - failedWidth - runningWidth

	return statusText(statusCompleted, strings.Repeat("=", max(0, completedWidth))) +
		statusText(statusFailed, strings.Repeat("!", max(0, failedWidth))) +
		statusText(statusRunning, strings.Repeat("-", max(0, runningWidth))) +
		statusText(statusPending, strings.Repeat(".", max(0, restWidth)))
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
