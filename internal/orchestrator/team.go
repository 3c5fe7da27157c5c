package orchestrator

import (
	"fmt"
	"strings"
)

// GetTeamDescription lists the registered agents, highest priority first.
func (o *Orchestrator) GetTeamDescription() string {
	agents := o.registry.All()
	if len(agents) == 0 {
		return "No agents registered."
	}

	var b strings.Builder
	for _, a := range agents {
		fmt.Fprintf(&b, "- %s (%s, priority %d)", a.Name, a.ID, a.Priority)
		if a.Description != "" {
			fmt.Fprintf(&b, ": %s", a.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// GetTeamPrompt renders the team as instructions for an LLM that may
// delegate work to other agents.
func (o *Orchestrator) GetTeamPrompt() string {
	var b strings.Builder
	b.WriteString("You are part of a film production crew. ")
	b.WriteString("Delegate work you cannot do yourself to one of these agents, ")
	b.WriteString("giving a description, the target agent ID and a priority of high, medium or low.\n\n")
	b.WriteString("Agents:\n")
	for _, a := range o.registry.All() {
		fmt.Fprintf(&b, "- %s: %s", a.ID, a.Name)
		if a.Description != "" {
			fmt.Fprintf(&b, ". %s", a.Description)
		}
		if len(a.Capabilities) > 0 {
			fmt.Fprintf(&b, " Actions: %s.", strings.Join(a.Capabilities, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nSend anything that spans several agents to %s.\n", o.opts.PlannerAgent)
	return b.String()
}
