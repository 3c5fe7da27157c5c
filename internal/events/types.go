package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask  = "task"
	TopicQueue = "queue"
)

// Event type constants
const (
	EventTypeTaskAdded     = "task.added"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskUnblocked = "task.unblocked"
	EventTypeTaskOutput    = "task.output"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskCancelled = "task.cancelled"
	EventTypeQueueProgress = "queue.progress"
	EventTypeQueueCleared  = "queue.cleared"
)

// TaskAddedEvent is published when a task enters the queue.
type TaskAddedEvent struct {
	ID        string
	Name      string
	AgentID   string
	Priority  int
	Blocked   bool
	Timestamp time.Time
}

func (e TaskAddedEvent) EventType() string { return EventTypeTaskAdded }
func (e TaskAddedEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a task is handed to an executor.
type TaskStartedEvent struct {
	ID        string
	Name      string
	AgentID   string
	Action    string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskUnblockedEvent is published when a task's last dependency completes.
type TaskUnblockedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskUnblockedEvent) EventType() string { return EventTypeTaskUnblocked }
func (e TaskUnblockedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent carries one line of agent output.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Result    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskCancelledEvent is published when a task is cancelled before running.
type TaskCancelledEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskID() string    { return e.ID }

// QueueProgressEvent is published after every task state change.
type QueueProgressEvent struct {
	Total     int
	Pending   int
	Blocked   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
	Timestamp time.Time
}

func (e QueueProgressEvent) EventType() string { return EventTypeQueueProgress }
func (e QueueProgressEvent) TaskID() string    { return "" }

// Done reports how many tasks reached a terminal status.
func (e QueueProgressEvent) Done() int { return e.Completed + e.Failed + e.Cancelled }

// QueueClearedEvent is published when the queue is emptied.
type QueueClearedEvent struct {
	Timestamp time.Time
}

func (e QueueClearedEvent) EventType() string { return EventTypeQueueCleared }
func (e QueueClearedEvent) TaskID() string    { return "" }
