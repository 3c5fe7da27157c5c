package orchestrator

import (
	"fmt"

	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// BridgeEvents republishes queue events on bus, followed by a progress
// event carrying the queue's stats. Publishing never blocks the queue.
// The returned function detaches the bridge.
func BridgeEvents(queue *scheduler.Queue, bus *events.EventBus) func() {
	return queue.On(scheduler.EventAll, func(ev scheduler.Event) {
		if translated, ok := translateEvent(ev); ok {
			bus.Publish(topicFor(translated), translated)
		}
		s := queue.Stats()
		bus.Publish(events.TopicQueue, events.QueueProgressEvent{
			Total:     s.Total,
			Pending:   s.Pending,
			Blocked:   s.Blocked,
			Running:   s.Running,
			Completed: s.Completed,
			Failed:    s.Failed,
			Cancelled: s.Cancelled,
			Timestamp: ev.Timestamp,
		})
	})
}

func topicFor(ev events.Event) string {
	if ev.TaskID() == "" {
		return events.TopicQueue
	}
	return events.TopicTask
}

func translateEvent(ev scheduler.Event) (events.Event, bool) {
	if ev.Name == scheduler.EventQueueCleared {
		return events.QueueClearedEvent{Timestamp: ev.Timestamp}, true
	}
	t := ev.Task
	if t == nil {
		return nil, false
	}

	switch ev.Name {
	case scheduler.EventTaskAdded:
		return events.TaskAddedEvent{
			ID:        t.ID,
			Name:      t.Name,
			AgentID:   t.AgentID,
			Priority:  t.Priority,
			Blocked:   t.Status == scheduler.TaskBlocked,
			Timestamp: ev.Timestamp,
		}, true
	case scheduler.EventTaskStarted:
		return events.TaskStartedEvent{ID: t.ID, Name: t.Name, AgentID: t.AgentID, Action: t.Action, Timestamp: ev.Timestamp}, true
	case scheduler.EventTaskUnblocked:
		return events.TaskUnblockedEvent{ID: t.ID, Timestamp: ev.Timestamp}, true
	case scheduler.EventTaskCompleted:
		return events.TaskCompletedEvent{ID: t.ID, Result: resultString(t.Result), Duration: t.Duration(), Timestamp: ev.Timestamp}, true
	case scheduler.EventTaskFailed:
		return events.TaskFailedEvent{ID: t.ID, Err: t.Error, Duration: t.Duration(), Timestamp: ev.Timestamp}, true
	case scheduler.EventTaskCancelled:
		return events.TaskCancelledEvent{ID: t.ID, Timestamp: ev.Timestamp}, true
	}
	return nil, false
}

func resultString(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
