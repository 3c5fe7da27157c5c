package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// Priority is the three-level label used when delegating work.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Level maps the label to the queue's integer scale. An empty label is medium.
func (p Priority) Level() (int, error) {
	switch p {
	case PriorityHigh:
		return 2, nil
	case PriorityMedium, "":
		return 1, nil
	case PriorityLow:
		return 0, nil
	}
	return 0, fmt.Errorf("unknown priority %q (want high, medium or low)", string(p))
}

// DelegationRequest is one agent handing work to another.
type DelegationRequest struct {
	Description string
	TargetAgent string         // Planner when empty
	Context     map[string]any // Serialised into the task params
	Priority    Priority       // Medium when empty
	UserMessage string         // Original user message, if any
}

// Receipt acknowledges a delegated task.
type Receipt struct {
	ID          string
	TargetAgent string
	Status      scheduler.TaskStatus
	Description string
	CreatedAt   time.Time
}

// SubmitTask enqueues a single delegated task and returns its receipt.
func (o *Orchestrator) SubmitTask(req DelegationRequest) (Receipt, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return Receipt{}, fmt.Errorf("submit task: empty description")
	}
	level, err := req.Priority.Level()
	if err != nil {
		return Receipt{}, fmt.Errorf("submit task: %w", err)
	}
	target := req.TargetAgent
	if target == "" {
		target = o.opts.PlannerAgent
	}

	extra := map[string]any{"description": description}
	if req.UserMessage != "" {
		extra["user_message"] = req.UserMessage
	}
	params, err := encodeParams(req.Context, extra)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit task: %w", err)
	}

	task := scheduler.NewTask(scheduler.TaskSpec{
		Name:        shorten(description, 60),
		Description: description,
		AgentID:     target,
		Action:      "delegated_task",
		Params:      params,
		Priority:    level,
	})
	added, err := o.queue.Add(task)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit task: %w", err)
	}

	return Receipt{
		ID:          added.ID,
		TargetAgent: added.AgentID,
		Status:      added.Status,
		Description: added.Description,
		CreatedAt:   added.CreatedAt,
	}, nil
}
