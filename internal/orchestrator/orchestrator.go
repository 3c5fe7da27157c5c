// Package orchestrator turns requests into tasks and drives them through a
// scheduler.Queue with an external Executor.
package orchestrator

import (
	"github.com/aristath/filmcrew/internal/agent"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// DefaultPlannerAgent receives requests nothing else claims.
const DefaultPlannerAgent = "planner"

// Options configures an Orchestrator.
type Options struct {
	PlannerAgent    string // Fallback agent for unrecognised requests (default "planner")
	DefaultPriority int    // Priority used when the registry does not know an agent
}

// Orchestrator builds tasks from requests and drains the queue.
type Orchestrator struct {
	queue    *scheduler.Queue
	registry agent.Registry
	opts     Options
}

// New creates an orchestrator over queue. A nil registry behaves as empty.
func New(queue *scheduler.Queue, registry agent.Registry, opts Options) *Orchestrator {
	if queue == nil {
		queue = scheduler.NewQueue()
	}
	if registry == nil {
		registry = agent.NewStaticRegistry()
	}
	if opts.PlannerAgent == "" {
		opts.PlannerAgent = DefaultPlannerAgent
	}
	return &Orchestrator{queue: queue, registry: registry, opts: opts}
}

// Queue returns the underlying queue.
func (o *Orchestrator) Queue() *scheduler.Queue { return o.queue }

// Registry returns the agent registry.
func (o *Orchestrator) Registry() agent.Registry { return o.registry }

// GetTask returns a snapshot of one task.
func (o *Orchestrator) GetTask(id string) (*scheduler.Task, bool) {
	return o.queue.Get(id)
}

// GetAllTasks returns snapshots of every task in insertion order.
func (o *Orchestrator) GetAllTasks() []*scheduler.Task {
	return o.queue.All()
}

// Stats returns the queue's per-status counts.
func (o *Orchestrator) Stats() scheduler.Stats {
	return o.queue.Stats()
}

// agentPriority returns the registry's default priority for agentID.
func (o *Orchestrator) agentPriority(agentID string) int {
	if d, ok := o.registry.Get(agentID); ok {
		return d.Priority
	}
	return o.opts.DefaultPriority
}
