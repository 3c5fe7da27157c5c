package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Queue event names.
const (
	EventTaskAdded     = "task:added"
	EventTaskStarted   = "task:started"
	EventTaskUnblocked = "task:unblocked"
	EventTaskCompleted = "task:completed"
	EventTaskFailed    = "task:failed"
	EventTaskCancelled = "task:cancelled"
	EventQueueCleared  = "queue:cleared"

	// EventAll subscribes a listener to every event.
	EventAll = "*"
)

// Event describes a queue state change. Task is a snapshot taken at the
// moment of the change and is nil for queue-level events.
type Event struct {
	Name      string
	Task      *Task
	Timestamp time.Time
}

// Listener observes queue events. Listeners must not assume they can
// change queue state through the snapshot they receive.
type Listener func(Event)

// listenerSet holds subscriptions keyed by event name.
type listenerSet struct {
	mu     sync.RWMutex
	byName map[string]map[int]Listener
	nextID int
}

func newListenerSet() *listenerSet {
	return &listenerSet{byName: make(map[string]map[int]Listener)}
}

func (s *listenerSet) add(name string, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.byName[name] == nil {
		s.byName[name] = make(map[int]Listener)
	}
	s.byName[name][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.byName[name], id)
			if len(s.byName[name]) == 0 {
				delete(s.byName, name)
			}
		})
	}
}

// snapshot returns the listeners for name followed by wildcard listeners,
// each group ordered by subscription.
func (s *listenerSet) snapshot(name string) []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Listener
	for _, key := range []string{name, EventAll} {
		group := s.byName[key]
		ids := make([]int, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			out = append(out, group[id])
		}
	}
	return out
}

func (s *listenerSet) dispatch(events []Event) {
	for _, ev := range events {
		for _, fn := range s.snapshot(ev.Name) {
			fn(ev)
		}
	}
}
