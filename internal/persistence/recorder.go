package persistence

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/scheduler"
)

const (
	defaultRecorderBuffer = 256
	saveTimeout           = 5 * time.Second
)

type record struct {
	task   *scheduler.Task
	output *events.TaskOutputEvent
}

// Recorder mirrors queue changes into a Store without slowing the queue down.
// Listeners only enqueue snapshots; a single goroutine writes them in order.
// When the buffer is full the snapshot is dropped and counted.
type Recorder struct {
	store Store
	ch    chan record
	unsub func()

	mu     sync.RWMutex
	closed bool

	dropped   atomic.Uint64
	wg        sync.WaitGroup
	followers sync.WaitGroup
}

// NewRecorder subscribes to every event of queue and starts the writer.
// bufSize defaults to 256 if <= 0.
func NewRecorder(store Store, queue *scheduler.Queue, bufSize int) *Recorder {
	if bufSize <= 0 {
		bufSize = defaultRecorderBuffer
	}
	r := &Recorder{
		store: store,
		ch:    make(chan record, bufSize),
	}

	r.wg.Add(1)
	go r.run()

	r.unsub = queue.On(scheduler.EventAll, func(ev scheduler.Event) {
		if ev.Task != nil {
			r.enqueue(record{task: ev.Task})
		}
	})
	return r
}

// FollowOutput stores every TaskOutputEvent read from ch until ch is closed.
// Typically ch is an EventBus subscription to the task topic.
func (r *Recorder) FollowOutput(ch <-chan events.Event) {
	r.followers.Add(1)
	go func() {
		defer r.followers.Done()
		for ev := range ch {
			if out, ok := ev.(events.TaskOutputEvent); ok {
				r.enqueue(record{output: &out})
			}
		}
	}()
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
		log.Printf("WARNING: recorder buffer full, dropping snapshot")
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.ch {
		r.write(rec)
	}
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	switch {
	case rec.task != nil:
		if err := r.store.SaveTask(ctx, rec.task); err != nil {
			log.Printf("ERROR: failed to record task %s: %v", rec.task.ID, err)
		}
	case rec.output != nil:
		at := rec.output.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		if err := r.store.SaveOutput(ctx, rec.output.ID, rec.output.Line, at); err != nil {
			log.Printf("ERROR: failed to record output of task %s: %v", rec.output.ID, err)
		}
	}
}

// Dropped returns how many snapshots were skipped because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close unsubscribes from the queue and waits for buffered snapshots to be
// written. Output followers must have their channel closed first (for example
// by closing the EventBus), otherwise Close blocks until they finish.
// Safe to call multiple times.
func (r *Recorder) Close() {
	r.followers.Wait()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.unsub()
	close(r.ch)
	r.mu.Unlock()

	r.wg.Wait()
}
