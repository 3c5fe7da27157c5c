package orchestrator

import (
	"context"
	"fmt"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// Executor carries out one task's action. The returned result is stored
// verbatim on the task; a non-nil error fails it.
type Executor interface {
	Execute(ctx context.Context, task *scheduler.Task) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *scheduler.Task) (any, error)

// Execute calls f(ctx, task).
func (f ExecutorFunc) Execute(ctx context.Context, task *scheduler.Task) (any, error) {
	return f(ctx, task)
}

// safeExecute turns an executor panic into an ordinary task failure.
func safeExecute(ctx context.Context, exec Executor, task *scheduler.Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("executor panicked on task %q: %v", task.ID, r)
		}
	}()
	return exec.Execute(ctx, task)
}
