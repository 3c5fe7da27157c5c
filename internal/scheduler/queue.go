package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// Stats holds task counts per status.
type Stats struct {
	Total     int
	Pending   int
	Blocked   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Count returns the number of tasks with the given status.
func (s Stats) Count(status TaskStatus) int {
	switch status {
	case TaskPending:
		return s.Pending
	case TaskBlocked:
		return s.Blocked
	case TaskRunning:
		return s.Running
	case TaskCompleted:
		return s.Completed
	case TaskFailed:
		return s.Failed
	case TaskCancelled:
		return s.Cancelled
	}
	return 0
}

// Idle reports whether nothing is pending or running. Blocked tasks may remain.
func (s Stats) Idle() bool {
	return s.Pending == 0 && s.Running == 0
}

func (s Stats) String() string {
	return fmt.Sprintf("total=%d pending=%d blocked=%d running=%d completed=%d failed=%d cancelled=%d",
		s.Total, s.Pending, s.Blocked, s.Running, s.Completed, s.Failed, s.Cancelled)
}

// Queue is an in-memory registry of tasks that derives runnability from the
// dependency graph. Every mutation happens under one lock; listeners are
// called after the lock is released, on the goroutine that caused the change.
type Queue struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	order      []string            // Insertion order, used to break priority ties
	completed  map[string]struct{} // IDs that reached TaskCompleted
	dependents map[string][]string // Maps taskID -> tasks that depend on it
	listeners  *listenerSet
	now        func() time.Time
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:      make(map[string]*Task),
		completed:  make(map[string]struct{}),
		dependents: make(map[string][]string),
		listeners:  newListenerSet(),
		now:        time.Now,
	}
}

// On registers a listener for one event name or EventAll.
// The returned function removes the listener; calling it twice is harmless.
func (q *Queue) On(event string, fn Listener) func() {
	return q.listeners.add(event, fn)
}

// Add registers a task and sets its initial status: TaskBlocked when any
// dependency has not completed yet, TaskPending otherwise. The queue keeps
// its own copy; the returned task is a snapshot.
func (q *Queue) Add(task *Task) (*Task, error) {
	if task == nil {
		return nil, fmt.Errorf("add task: nil task")
	}

	q.mu.Lock()
	if _, exists := q.tasks[task.ID]; exists {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	stored := cloneTask(task)
	stored.Dependencies = dedupe(stored.Dependencies)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = q.now()
	}
	stored.Result = nil
	stored.Error = nil
	stored.StartedAt = time.Time{}
	stored.CompletedAt = time.Time{}
	if q.canRunLocked(stored) {
		stored.Status = TaskPending
	} else {
		stored.Status = TaskBlocked
	}

	q.tasks[stored.ID] = stored
	q.order = append(q.order, stored.ID)
	for _, depID := range stored.Dependencies {
		q.dependents[depID] = append(q.dependents[depID], stored.ID)
	}

	snap := cloneTask(stored)
	ev := q.eventLocked(EventTaskAdded, stored)
	q.mu.Unlock()

	q.listeners.dispatch([]Event{ev})
	return snap, nil
}

// AddAll registers tasks in order. It stops at the first error and returns
// the snapshots of the tasks added so far.
func (q *Queue) AddAll(tasks []*Task) ([]*Task, error) {
	added := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		snap, err := q.Add(task)
		if err != nil {
			return added, err
		}
		added = append(added, snap)
	}
	return added, nil
}

// Get returns a snapshot of the task, or false if it is unknown.
func (q *Queue) Get(taskID string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// All returns snapshots of every task in insertion order.
func (q *Queue) All() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tasks := make([]*Task, 0, len(q.order))
	for _, id := range q.order {
		tasks = append(tasks, cloneTask(q.tasks[id]))
	}
	return tasks
}

// Len returns the number of registered tasks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// NextRunnable returns the highest-priority runnable task, breaking ties by
// insertion order. It does not change the task's status.
func (q *Queue) NextRunnable() (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	runnable := q.runnableLocked()
	if len(runnable) == 0 {
		return nil, false
	}
	return cloneTask(runnable[0]), true
}

// AllRunnable returns every runnable task ordered by priority, highest first.
func (q *Queue) AllRunnable() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	runnable := q.runnableLocked()
	out := make([]*Task, 0, len(runnable))
	for _, task := range runnable {
		out = append(out, cloneTask(task))
	}
	return out
}

// runnableLocked applies canRun to every task and sorts by priority,
// keeping insertion order among equal priorities.
func (q *Queue) runnableLocked() []*Task {
	var runnable []*Task
	for _, id := range q.order {
		task := q.tasks[id]
		if (task.Status == TaskPending || task.Status == TaskBlocked) && q.canRunLocked(task) {
			runnable = append(runnable, task)
		}
	}
	sort.SliceStable(runnable, func(i, j int) bool {
		return runnable[i].Priority > runnable[j].Priority
	})
	return runnable
}

// canRunLocked is the single runnability test: every dependency completed.
// It is evaluated against the live completed set, never cached.
func (q *Queue) canRunLocked(task *Task) bool {
	for _, depID := range task.Dependencies {
		if _, done := q.completed[depID]; !done {
			return false
		}
	}
	return true
}

// UnmetDependencies returns the dependency IDs of a task that have not completed.
func (q *Queue) UnmetDependencies(taskID string) ([]string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return nil, false
	}
	unmet := []string{}
	for _, depID := range task.Dependencies {
		if _, done := q.completed[depID]; !done {
			unmet = append(unmet, depID)
		}
	}
	return unmet, true
}

// MarkRunning moves a runnable task to TaskRunning and records StartedAt.
// Tasks with unmet dependencies are rejected with ErrNotRunnable, so a task
// can only be started once even when several dispatchers race for it.
func (q *Queue) MarkRunning(taskID string) (*Task, error) {
	q.mu.Lock()
	task, exists := q.tasks[taskID]
	if !exists {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if (task.Status == TaskPending || task.Status == TaskBlocked) && !q.canRunLocked(task) {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %q has unmet dependencies", ErrNotRunnable, taskID)
	}
	task.unblock()
	if err := task.start(q.now()); err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("start %q: %w", taskID, err)
	}

	snap := cloneTask(task)
	ev := q.eventLocked(EventTaskStarted, task)
	q.mu.Unlock()

	q.listeners.dispatch([]Event{ev})
	return snap, nil
}

// MarkCompleted moves a running task to TaskCompleted, stores its result and
// unblocks every dependent whose dependencies are now all completed.
func (q *Queue) MarkCompleted(taskID string, result any) error {
	q.mu.Lock()
	task, exists := q.tasks[taskID]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if err := task.complete(result, q.now()); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("complete %q: %w", taskID, err)
	}
	q.completed[taskID] = struct{}{}

	evs := []Event{q.eventLocked(EventTaskCompleted, task)}
	for _, depID := range q.dependents[taskID] {
		dependent := q.tasks[depID]
		if dependent.Status == TaskBlocked && q.canRunLocked(dependent) && dependent.unblock() {
			evs = append(evs, q.eventLocked(EventTaskUnblocked, dependent))
		}
	}
	q.mu.Unlock()

	q.listeners.dispatch(evs)
	return nil
}

// MarkFailed moves a running task to TaskFailed and stores the error.
// Dependents are left blocked; nothing cascades.
func (q *Queue) MarkFailed(taskID string, taskErr error) error {
	q.mu.Lock()
	task, exists := q.tasks[taskID]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if err := task.fail(taskErr, q.now()); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("fail %q: %w", taskID, err)
	}

	ev := q.eventLocked(EventTaskFailed, task)
	q.mu.Unlock()

	q.listeners.dispatch([]Event{ev})
	return nil
}

// Cancel moves a pending or blocked task to TaskCancelled. Dependents are
// left blocked.
func (q *Queue) Cancel(taskID string) error {
	q.mu.Lock()
	task, exists := q.tasks[taskID]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if err := task.cancel(q.now()); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("cancel %q: %w", taskID, err)
	}

	ev := q.eventLocked(EventTaskCancelled, task)
	q.mu.Unlock()

	q.listeners.dispatch([]Event{ev})
	return nil
}

// Stats returns task counts per status.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var s Stats
	for _, task := range q.tasks {
		s.Total++
		switch task.Status {
		case TaskPending:
			s.Pending++
		case TaskBlocked:
			s.Blocked++
		case TaskRunning:
			s.Running++
		case TaskCompleted:
			s.Completed++
		case TaskFailed:
			s.Failed++
		case TaskCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Clear removes every task and forgets completed IDs.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.tasks = make(map[string]*Task)
	q.order = nil
	q.completed = make(map[string]struct{})
	q.dependents = make(map[string][]string)
	ev := Event{Name: EventQueueCleared, Timestamp: q.now()}
	q.mu.Unlock()

	q.listeners.dispatch([]Event{ev})
}

// Validate checks the dependency graph with a topological sort.
// Returns ordered task IDs, or an error naming unknown dependencies or a cycle.
// It is diagnostic only: scheduling does not depend on it.
func (q *Queue) Validate() ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var missing []string
	for _, id := range q.order {
		for _, depID := range q.tasks[id].Dependencies {
			if _, exists := q.tasks[depID]; !exists {
				missing = append(missing, fmt.Sprintf("%s -> %s", id, depID))
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown dependencies: %s", strings.Join(missing, ", "))
	}

	var edges []toposort.Edge
	for _, id := range q.order {
		task := q.tasks[id]
		if len(task.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range task.Dependencies {
			// Edge (depID, id) means depID must come before id
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(q.tasks) {
		return nil, fmt.Errorf("topological sort returned %d of %d tasks", len(order), len(q.tasks))
	}
	return order, nil
}

func (q *Queue) eventLocked(name string, task *Task) Event {
	return Event{Name: name, Task: cloneTask(task), Timestamp: q.now()}
}
