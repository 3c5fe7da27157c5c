package orchestrator

import (
	"context"
	"sync"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// AgentLocks gives each agent its own lock so that an agent works on one
// task at a time while different agents run concurrently.
type AgentLocks struct {
	mu    sync.Mutex               // Guards the locks map itself
	locks map[string]chan struct{} // Per-agent semaphores of size 1
}

// NewAgentLocks creates an empty lock set.
func NewAgentLocks() *AgentLocks {
	return &AgentLocks{
		locks: make(map[string]chan struct{}),
	}
}

func (l *AgentLocks) slot(agentID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.locks[agentID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[agentID] = sem
	}
	return sem
}

// Lock waits for the agent's lock or for ctx to end.
func (l *AgentLocks) Lock(ctx context.Context, agentID string) error {
	select {
	case l.slot(agentID) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the agent's lock. Unlocking an agent that is not locked is a no-op.
func (l *AgentLocks) Unlock(agentID string) {
	select {
	case <-l.slot(agentID):
	default:
	}
}

// SerializeByAgent wraps exec so it holds the task's agent lock while running.
// Time spent waiting for the lock does not count against per-attempt timeouts
// applied inside exec.
func SerializeByAgent(exec Executor, locks *AgentLocks) Executor {
	return ExecutorFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		if err := locks.Lock(ctx, task.AgentID); err != nil {
			return nil, err
		}
		defer locks.Unlock(task.AgentID)
		return exec.Execute(ctx, task)
	})
}
