package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // All dependencies completed, waiting to be picked
	TaskBlocked                     // At least one dependency not completed
	TaskRunning                     // Handed to an executor
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Executor reported an error
	TaskCancelled                   // Cancelled before it ran
)

var statusNames = [...]string{
	TaskPending:   "pending",
	TaskBlocked:   "blocked",
	TaskRunning:   "running",
	TaskCompleted: "completed",
	TaskFailed:    "failed",
	TaskCancelled: "cancelled",
}

// AllStatuses lists every status in declaration order.
var AllStatuses = []TaskStatus{TaskPending, TaskBlocked, TaskRunning, TaskCompleted, TaskFailed, TaskCancelled}

func (s TaskStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseTaskStatus converts a status name back into a TaskStatus.
func ParseTaskStatus(name string) (TaskStatus, error) {
	for i, n := range statusNames {
		if n == name {
			return TaskStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task status %q", name)
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Sentinel errors returned by task and queue operations.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrDuplicateTask     = errors.New("task already exists")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrNotRunnable       = errors.New("task is not runnable")
)

// Task represents a unit of work in the queue.
// Params and Result are opaque to the scheduler; only executors interpret them.
type Task struct {
	ID           string
	Name         string
	Description  string
	AgentID      string          // Target agent, opaque to the queue
	Action       string          // Operation the executor should perform
	Params       json.RawMessage // Passed verbatim to the executor
	Status       TaskStatus
	Priority     int      // Higher runs first
	Dependencies []string // Task IDs that must complete first; fixed at creation
	Result       any
	Error        error
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// TaskSpec describes a task before it is created.
type TaskSpec struct {
	ID           string // Optional; generated when empty
	Name         string
	Description  string
	AgentID      string
	Action       string
	Params       json.RawMessage
	Priority     int
	Dependencies []string
}

// NewTask builds a task from a spec, generating an ID when none is given.
func NewTask(spec TaskSpec) *Task {
	id := spec.ID
	if id == "" {
		id = NewTaskID()
	}
	name := spec.Name
	if name == "" {
		name = spec.Action
	}

	return &Task{
		ID:           id,
		Name:         name,
		Description:  spec.Description,
		AgentID:      spec.AgentID,
		Action:       spec.Action,
		Params:       append(json.RawMessage(nil), spec.Params...),
		Status:       TaskPending,
		Priority:     spec.Priority,
		Dependencies: dedupe(spec.Dependencies),
		CreatedAt:    time.Now(),
	}
}

// NewTaskID returns a unique task identifier: millisecond timestamp plus random suffix.
func NewTaskID() string {
	return fmt.Sprintf("task-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// IsTerminal reports whether the task reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// DependsOn reports whether id is one of the task's dependencies.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Duration returns how long the task ran, or zero if it never finished.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

func (t *Task) start(now time.Time) error {
	if t.Status != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskRunning)
	}
	t.Status = TaskRunning
	t.StartedAt = now
	return nil
}

func (t *Task) complete(result any, now time.Time) error {
	if t.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskCompleted)
	}
	t.Status = TaskCompleted
	t.Result = result
	t.Error = nil
	t.CompletedAt = now
	return nil
}

func (t *Task) fail(err error, now time.Time) error {
	if t.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskFailed)
	}
	if err == nil {
		err = errors.New("task failed")
	}
	t.Status = TaskFailed
	t.Error = err
	t.Result = nil
	t.CompletedAt = now
	return nil
}

func (t *Task) cancel(now time.Time) error {
	if t.Status != TaskPending && t.Status != TaskBlocked {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskCancelled)
	}
	t.Status = TaskCancelled
	t.CompletedAt = now
	return nil
}

// unblock flips a blocked task to pending. Returns true if the status changed.
func (t *Task) unblock() bool {
	if t.Status != TaskBlocked {
		return false
	}
	t.Status = TaskPending
	return true
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Dependencies != nil {
		cp.Dependencies = append([]string(nil), task.Dependencies...)
	}
	if task.Params != nil {
		cp.Params = append(json.RawMessage(nil), task.Params...)
	}
	return &cp
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
