package orchestrator

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// Outcome records how one task finished.
type Outcome struct {
	Task    *scheduler.Task // Snapshot after the terminal transition
	Success bool
	Result  any
	Err     error
}

// Report is the result of draining the queue.
type Report struct {
	Results []Outcome
	Stats   scheduler.Stats
}

// Failed returns the outcomes that did not succeed.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Results {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// Execute runs runnable tasks one at a time, highest priority first, until
// none remain. A failed task does not stop the loop. The returned error is
// non-nil only when ctx ends before the queue is drained.
func (o *Orchestrator) Execute(ctx context.Context, exec Executor) (Report, error) {
	var report Report
	for {
		if err := ctx.Err(); err != nil {
			report.Stats = o.queue.Stats()
			return report, err
		}

		next, ok := o.queue.NextRunnable()
		if !ok {
			break
		}
		if outcome, ran := o.runTask(ctx, exec, next.ID); ran {
			report.Results = append(report.Results, outcome)
		}
	}

	report.Stats = o.queue.Stats()
	return report, nil
}

// ExecuteParallel runs runnable tasks concurrently, at most limit at once,
// until none remain. A slot is refilled as soon as its task finishes, so a
// task unblocked by a fast dependency starts without waiting for slower
// siblings. limit <= 0 means no bound. Once ctx ends no new task starts; the
// tasks already running are collected before the context error is returned.
func (o *Orchestrator) ExecuteParallel(ctx context.Context, exec Executor, limit int) (Report, error) {
	var (
		report   Report
		g        errgroup.Group
		inFlight int
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	done := make(chan Outcome)

	for {
		if ctx.Err() == nil {
			for _, task := range o.queue.AllRunnable() {
				if limit > 0 && inFlight >= limit {
					break
				}
				running, ok := o.startTask(task.ID)
				if !ok {
					continue
				}
				inFlight++
				g.Go(func() error {
					done <- o.finishTask(ctx, exec, running)
					return nil
				})
			}
		}
		if inFlight == 0 {
			break
		}
		report.Results = append(report.Results, <-done)
		inFlight--
	}
	// Task errors are tracked in the queue, not returned here
	_ = g.Wait()

	report.Stats = o.queue.Stats()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runTask marks a task running, executes it and records the outcome.
// ran is false when the task could not be started.
func (o *Orchestrator) runTask(ctx context.Context, exec Executor, id string) (Outcome, bool) {
	running, ok := o.startTask(id)
	if !ok {
		return Outcome{}, false
	}
	return o.finishTask(ctx, exec, running), true
}

// startTask moves a task to running and returns its snapshot.
func (o *Orchestrator) startTask(id string) (*scheduler.Task, bool) {
	running, err := o.queue.MarkRunning(id)
	if err != nil {
		if !errors.Is(err, scheduler.ErrNotRunnable) && !errors.Is(err, scheduler.ErrInvalidTransition) {
			log.Printf("WARNING: failed to start task %q: %v", id, err)
		}
		return nil, false
	}
	return running, true
}

// finishTask executes a running task and records the terminal transition.
func (o *Orchestrator) finishTask(ctx context.Context, exec Executor, running *scheduler.Task) Outcome {
	id := running.ID
	result, execErr := safeExecute(ctx, exec, running)
	if execErr != nil {
		if err := o.queue.MarkFailed(id, execErr); err != nil {
			log.Printf("ERROR: failed to mark task %q as failed: %v", id, err)
		}
	} else if err := o.queue.MarkCompleted(id, result); err != nil {
		log.Printf("ERROR: failed to mark task %q as completed: %v", id, err)
	}

	outcome := Outcome{Success: execErr == nil, Result: result, Err: execErr}
	if execErr != nil {
		outcome.Result = nil
	}
	if snap, ok := o.queue.Get(id); ok {
		outcome.Task = snap
	} else {
		// Queue was cleared while the task ran
		outcome.Task = running
	}
	return outcome
}
