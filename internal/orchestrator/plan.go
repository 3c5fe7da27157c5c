package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// Plan template names.
const (
	TemplateFilm  = "film"
	TemplateShort = "short"
)

// Phase is a named group of tasks. Grouping alone does not order execution;
// only task dependencies do.
type Phase struct {
	Name  string
	Tasks []*scheduler.Task
}

// Plan is a phase-grouped set of tasks built from a template.
type Plan struct {
	ID          string
	Title       string
	Description string
	Template    string
	Phases      []Phase
	CreatedAt   time.Time
}

// Tasks flattens the phases in order.
func (p *Plan) Tasks() []*scheduler.Task {
	var out []*scheduler.Task
	for _, phase := range p.Phases {
		out = append(out, phase.Tasks...)
	}
	return out
}

// PlanOptions controls CreatePlan.
type PlanOptions struct {
	Template         string         // TemplateFilm (default) or TemplateShort
	Title            string         // Display title; derived from the description when empty
	SequentialPhases bool           // Make each task depend on every task of the previous phase
	Enqueue          bool           // Add the tasks to the queue
	Context          map[string]any // Merged into every task's params
}

type planStep struct {
	agent  string
	action string
	name   string
}

type planPhase struct {
	name  string
	steps []planStep
}

var planTemplates = map[string][]planPhase{
	TemplateFilm: {
		{name: "Story", steps: []planStep{
			{"screenwriter", "outline_story", "Outline the story"},
			{"screenwriter", "write_script", "Write the script"},
		}},
		{name: "Characters & Scenes", steps: []planStep{
			{"character-designer", "design_characters", "Design the characters"},
			{"scene-designer", "design_scenes", "Design the scenes"},
		}},
		{name: "Shot Breakdown", steps: []planStep{
			{"shot-designer", "break_down_shots", "Break scenes into shots"},
		}},
		{name: "Visual Production", steps: []planStep{
			{"image-artist", "generate_keyframes", "Generate keyframes"},
			{"video-producer", "generate_video", "Generate video clips"},
		}},
		{name: "Assembly", steps: []planStep{
			{"video-producer", "assemble_cut", "Assemble the final cut"},
		}},
	},
	TemplateShort: {
		{name: "Script", steps: []planStep{
			{"screenwriter", "write_script", "Write the script"},
		}},
		{name: "Visuals", steps: []planStep{
			{"shot-designer", "break_down_shots", "Break scenes into shots"},
			{"image-artist", "generate_keyframes", "Generate keyframes"},
		}},
		{name: "Video", steps: []planStep{
			{"video-producer", "generate_video", "Generate video clips"},
		}},
	},
}

// Templates returns the known plan template names, sorted.
func Templates() []string {
	names := make([]string, 0, len(planTemplates))
	for name := range planTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreatePlan expands a template into a plan for description. Task priority
// comes from the target agent's registry entry.
func (o *Orchestrator) CreatePlan(description string, opts PlanOptions) (*Plan, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("create plan: empty description")
	}
	if opts.Template == "" {
		opts.Template = TemplateFilm
	}
	phases, ok := planTemplates[opts.Template]
	if !ok {
		return nil, fmt.Errorf("create plan: unknown template %q (known: %s)", opts.Template, strings.Join(Templates(), ", "))
	}

	title := opts.Title
	if title == "" {
		title = shorten(description, 40)
	}
	plan := &Plan{
		ID:          "plan-" + uuid.NewString(),
		Title:       title,
		Description: description,
		Template:    opts.Template,
		CreatedAt:   time.Now(),
	}

	var previous []string
	for i, ph := range phases {
		phase := Phase{Name: ph.name}
		var current []string
		for _, step := range ph.steps {
			params, err := encodeParams(opts.Context, map[string]any{
				"description": description,
				"plan_id":     plan.ID,
				"phase":       ph.name,
				"phase_index": i + 1,
			})
			if err != nil {
				return nil, fmt.Errorf("create plan: %w", err)
			}

			spec := scheduler.TaskSpec{
				Name:        fmt.Sprintf("%s: %s", title, step.name),
				Description: step.name,
				AgentID:     step.agent,
				Action:      step.action,
				Params:      params,
				Priority:    o.agentPriority(step.agent),
			}
			if opts.SequentialPhases {
				spec.Dependencies = previous
			}
			task := scheduler.NewTask(spec)
			phase.Tasks = append(phase.Tasks, task)
			current = append(current, task.ID)
		}
		plan.Phases = append(plan.Phases, phase)
		previous = current
	}

	if opts.Enqueue {
		if err := o.EnqueuePlan(plan); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

// EnqueuePlan adds every task of the plan to the queue in phase order and
// replaces each added task in plan.Phases with the queue's snapshot of it.
// The plan keeps those enqueue-time snapshots; use GetTask for live status.
func (o *Orchestrator) EnqueuePlan(plan *Plan) error {
	added, err := o.queue.AddAll(plan.Tasks())
	plan.replaceTasks(added)
	if err != nil {
		return fmt.Errorf("enqueue plan %s: %w", plan.ID, err)
	}
	return nil
}

// replaceTasks overwrites the plan's tasks, in flattened phase order, with
// snaps. Tasks past len(snaps) are left alone.
func (p *Plan) replaceTasks(snaps []*scheduler.Task) {
	i := 0
	for _, phase := range p.Phases {
		for j := range phase.Tasks {
			if i == len(snaps) {
				return
			}
			phase.Tasks[j] = snaps[i]
			i++
		}
	}
}

// encodeParams merges extra over base context and serialises the result.
func encodeParams(ctx map[string]any, extra map[string]any) (json.RawMessage, error) {
	merged := make(map[string]any, len(ctx)+len(extra))
	for k, v := range ctx {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding task params: %w", err)
	}
	return data, nil
}

func shorten(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
