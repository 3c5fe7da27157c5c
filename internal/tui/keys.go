package tui

import "strings"

const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyEsc      = "esc"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeyDelegate = "d"
)

type keyHelp struct{ keys, action string }

var (
	dashboardHelp = []keyHelp{
		{"Tab", "cycle focus"},
		{"1/2", "jump to pane"},
		{"j/k", "select task"},
		{"d", "delegate"},
		{"q", "quit"},
	}
	delegateHelp = []keyHelp{
		{"Tab/Enter", "next field"},
		{"Shift+Tab", "previous field"},
		{"Esc", "cancel"},
	}
)

// HelpView returns the one-line key help for the dashboard, or for the
// delegation form while it is open.
func HelpView(delegating bool) string {
	bindings := dashboardHelp
	if delegating {
		bindings = delegateHelp
	}
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = b.keys + ": " + b.action
	}
	return StyleHelp.Render(strings.Join(parts, " | "))
}
