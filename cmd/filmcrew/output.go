package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/orchestrator"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// printProgress writes one line per task transition until ch closes.
func printProgress(w io.Writer, ch <-chan events.Event) {
	for ev := range ch {
		switch e := ev.(type) {
		case events.TaskStartedEvent:
			fmt.Fprintf(w, "▶ %s (%s)\n", e.Name, e.AgentID)
		case events.TaskCompletedEvent:
			fmt.Fprintf(w, "✓ %s in %v\n", e.ID, e.Duration.Round(time.Millisecond))
		case events.TaskFailedEvent:
			fmt.Fprintf(w, "✗ %s: %v\n", e.ID, e.Err)
		case events.TaskCancelledEvent:
			fmt.Fprintf(w, "⊘ %s cancelled\n", e.ID)
		}
	}
}

// printReport summarises a drained queue.
func printReport(w io.Writer, report orchestrator.Report) {
	fmt.Fprintln(w)
	for _, out := range report.Results {
		if out.Success {
			fmt.Fprintf(w, "✓ %s [%s]\n", out.Task.Name, out.Task.AgentID)
			if s := resultText(out.Result); s != "" {
				fmt.Fprintln(w, indent(s, "    "))
			}
		} else {
			fmt.Fprintf(w, "✗ %s [%s]: %v\n", out.Task.Name, out.Task.AgentID, out.Err)
		}
	}
	fmt.Fprintf(w, "\n%s\n", report.Stats)
}

// printBlocked lists tasks that could not run, usually because a dependency failed.
func printBlocked(w io.Writer, queue *scheduler.Queue) {
	for _, task := range queue.All() {
		if task.Status != scheduler.TaskBlocked {
			continue
		}
		unmet, _ := queue.UnmetDependencies(task.ID)
		fmt.Fprintf(w, "still blocked: %s (waiting on %s)\n", task.ID, strings.Join(unmet, ", "))
	}
}

// printPlan lists a plan's phases and tasks.
func printPlan(w io.Writer, plan *orchestrator.Plan) {
	fmt.Fprintf(w, "%s (%s, template %s)\n", plan.Title, plan.ID, plan.Template)
	for i, phase := range plan.Phases {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, phase.Name)
		for _, task := range phase.Tasks {
			fmt.Fprintf(w, "   - %s [%s/%s] priority %d", task.ID, task.AgentID, task.Action, task.Priority)
			if len(task.Dependencies) > 0 {
				fmt.Fprintf(w, " after %s", strings.Join(task.Dependencies, ", "))
			}
			fmt.Fprintln(w)
		}
	}
}

func resultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
