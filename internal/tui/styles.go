package tui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent = lipgloss.Color("62")
	colorMuted  = lipgloss.Color("240")
	colorHelp   = lipgloss.Color("241")
	colorOK     = lipgloss.Color("2")
	colorWarn   = lipgloss.Color("3")
	colorFail   = lipgloss.Color("1")
	colorNotice = lipgloss.Color("10")
)

var (
	StyleTitle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	StyleHelp     = lipgloss.NewStyle().Foreground(colorHelp)
	StyleNotice   = lipgloss.NewStyle().Foreground(colorNotice)
	StyleError    = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	StyleSelected = lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("0"))
)

// statusLook is how a task status is drawn in lists and counters.
type statusLook struct {
	icon  string
	style lipgloss.Style
}

var statusLooks = map[string]statusLook{
	statusPending:   {"○", lipgloss.NewStyle().Foreground(colorMuted)},
	statusBlocked:   {"◌", lipgloss.NewStyle().Foreground(colorMuted)},
	statusRunning:   {"●", lipgloss.NewStyle().Foreground(colorWarn).Bold(true)},
	statusCompleted: {"✓", lipgloss.NewStyle().Foreground(colorOK).Bold(true)},
	statusFailed:    {"✗", lipgloss.NewStyle().Foreground(colorFail).Bold(true)},
	statusCancelled: {"⊘", lipgloss.NewStyle().Foreground(colorMuted)},
}

// lookFor falls back to pending for statuses the TUI does not know.
func lookFor(status string) statusLook {
	if l, ok := statusLooks[status]; ok {
		return l
	}
	return statusLooks[statusPending]
}

// StatusIcon returns the styled icon for a task status.
func StatusIcon(status string) string {
	l := lookFor(status)
	return l.style.Render(l.icon)
}

// statusText renders s in the colour of status.
func statusText(status, s string) string {
	return lookFor(status).style.Render(s)
}

// paneFrame is the rounded border around a pane of w x h cells.
func paneFrame(focused bool, w, h int) lipgloss.Style {
	border := colorMuted
	if focused {
		border = colorAccent
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(w - 2).
		Height(h - 2)
}
