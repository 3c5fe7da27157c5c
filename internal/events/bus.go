package events

import (
	"sync"
	"sync/atomic"
)

const defaultBufSize = 256

// subscriber is one delivery channel. An empty topic receives every topic.
type subscriber struct {
	topic string
	ch    chan Event
}

// EventBus fans queue and task events out to observers. Publishing never
// blocks: a subscriber whose buffer is full misses the event and the miss is
// counted against the event's topic.
type EventBus struct {
	mu      sync.RWMutex
	subs    []subscriber
	closed  bool
	dropped map[string]*atomic.Uint64 // fixed at construction; topic -> misses
}

// NewEventBus creates a bus that tracks drops for the known topics.
func NewEventBus() *EventBus {
	return &EventBus{
		dropped: map[string]*atomic.Uint64{
			TopicTask:  new(atomic.Uint64),
			TopicQueue: new(atomic.Uint64),
		},
	}
}

// Subscribe returns a channel receiving events published to topic.
// bufSize <= 0 selects the default of 256. After Close the channel is
// returned already closed.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.add(topic, bufSize)
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.add("", bufSize)
}

func (b *EventBus) add(topic string, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, subscriber{topic: topic, ch: ch})
	return ch
}

// Publish delivers event to the subscribers of topic and to every
// SubscribeAll subscriber. It is a no-op after Close.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, s := range b.subs {
		if s.topic != "" && s.topic != topic {
			continue
		}
		select {
		case s.ch <- event:
		default:
			if c, ok := b.dropped[topic]; ok {
				c.Add(1)
			}
		}
	}
}

// Dropped returns the number of missed deliveries across all topics.
func (b *EventBus) Dropped() uint64 {
	var n uint64
	for _, c := range b.dropped {
		n += c.Load()
	}
	return n
}

// DroppedOn returns the number of missed deliveries of events published to
// topic. Unknown topics report zero.
func (b *EventBus) DroppedOn(topic string) uint64 {
	if c, ok := b.dropped[topic]; ok {
		return c.Load()
	}
	return 0
}

// Close closes every subscriber channel. Safe to call more than once.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
