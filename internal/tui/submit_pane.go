package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/filmcrew/internal/agent"
	"github.com/aristath/filmcrew/internal/orchestrator"
)

// SubmitFunc hands a delegation to the orchestrator.
type SubmitFunc func(orchestrator.DelegationRequest) (orchestrator.Receipt, error)

// SubmitPaneModel manages the delegation form overlay.
type SubmitPaneModel struct {
	form    *huh.Form
	submit  SubmitFunc
	agents  []agent.Descriptor
	width   int
	height  int
	visible bool
	receipt *orchestrator.Receipt
	err     error

	// Form field bindings
	targetAgent string
	priority    string
	description string
}

// NewSubmitPaneModel creates a delegation form listing the given agents.
func NewSubmitPaneModel(agents []agent.Descriptor, submit SubmitFunc) SubmitPaneModel {
	m := SubmitPaneModel{
		submit: submit,
		agents: agents,
	}
	m.reset()
	return m
}

func (m *SubmitPaneModel) reset() {
	m.targetAgent = ""
	m.priority = string(orchestrator.PriorityMedium)
	m.description = ""
	m.buildForm()
}

// buildForm constructs the Huh form.
func (m *SubmitPaneModel) buildForm() {
	options := []huh.Option[string]{huh.NewOption("Let the planner decide", "")}
	for _, a := range m.agents {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", a.Name, a.ID), a.ID))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Key("description").
				Title("What needs doing?").
				Value(&m.description).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("description is required")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Key("targetAgent").
				Title("Target Agent").
				Options(options...).
				Value(&m.targetAgent),

			huh.NewSelect[string]().
				Key("priority").
				Title("Priority").
				Options(
					huh.NewOption("High", string(orchestrator.PriorityHigh)),
					huh.NewOption("Medium", string(orchestrator.PriorityMedium)),
					huh.NewOption("Low", string(orchestrator.PriorityLow)),
				).
				Value(&m.priority),
		).Title("Delegate Task"),
	)
	if m.width > 0 && m.height > 0 {
		m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
	}
}

// Init initializes the form.
func (m SubmitPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the submit pane.
func (m SubmitPaneModel) Update(msg tea.Msg) (SubmitPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		receipt, err := m.submit(m.Request())
		if err != nil {
			m.err = err
			m.receipt = nil
		} else {
			m.receipt = &receipt
			m.err = nil
			m.visible = false
		}
	case huh.StateAborted:
		m.visible = false
	}

	return m, cmd
}

// Request builds the delegation from the current form values.
func (m SubmitPaneModel) Request() orchestrator.DelegationRequest {
	return orchestrator.DelegationRequest{
		Description: strings.TrimSpace(m.description),
		TargetAgent: m.targetAgent,
		Priority:    orchestrator.Priority(m.priority),
	}
}

// View renders the submit pane.
func (m SubmitPaneModel) View() string {
	if !m.visible {
		return ""
	}

	content := m.form.View()
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Submit failed: %v", m.err))
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(max(m.width-4, 20)).
		Height(max(m.height-4, 5))

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		Render("➜ Delegate")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the submit pane.
func (m *SubmitPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the form. Showing it starts from a blank form.
func (m *SubmitPaneModel) SetVisible(v bool) {
	m.visible = v
	if v {
		m.err = nil
		m.reset()
	}
}

// IsVisible returns whether the form is currently shown.
func (m SubmitPaneModel) IsVisible() bool {
	return m.visible
}

// LastReceipt returns the receipt of the most recent successful submission.
func (m SubmitPaneModel) LastReceipt() (orchestrator.Receipt, bool) {
	if m.receipt == nil {
		return orchestrator.Receipt{}, false
	}
	return *m.receipt, true
}
