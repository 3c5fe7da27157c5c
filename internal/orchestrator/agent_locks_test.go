package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/filmcrew/internal/scheduler"
)

func TestAgentLocks_SameAgentBlocks(t *testing.T) {
	locks := NewAgentLocks()
	ctx := context.Background()
	orderChan := make(chan int, 2)

	if err := locks.Lock(ctx, "image-artist"); err != nil {
		t.Fatal(err)
	}

	go func() {
		if err := locks.Lock(ctx, "image-artist"); err != nil {
			return
		}
		orderChan <- 2
		locks.Unlock("image-artist")
	}()

	// Give the second locker time to block
	time.Sleep(20 * time.Millisecond)
	orderChan <- 1
	locks.Unlock("image-artist")

	first := <-orderChan
	second := <-orderChan
	if first != 1 || second != 2 {
		t.Errorf("Expected order [1, 2], got [%d, %d]", first, second)
	}
}

func TestAgentLocks_DifferentAgentsConcurrent(t *testing.T) {
	locks := NewAgentLocks()
	ctx := context.Background()

	if err := locks.Lock(ctx, "screenwriter"); err != nil {
		t.Fatal(err)
	}
	defer locks.Unlock("screenwriter")

	done := make(chan error, 1)
	go func() { done <- locks.Lock(ctx, "video-producer") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Lock: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("locking a different agent blocked")
	}
}

func TestAgentLocks_ContextCancelled(t *testing.T) {
	locks := NewAgentLocks()
	if err := locks.Lock(context.Background(), "planner"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := locks.Lock(ctx, "planner"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestAgentLocks_UnlockWithoutLock(t *testing.T) {
	locks := NewAgentLocks()
	locks.Unlock("nobody") // must not block or panic

	if err := locks.Lock(context.Background(), "nobody"); err != nil {
		t.Fatal(err)
	}
}

func TestSerializeByAgent_WithParallelRunner(t *testing.T) {
	o := newTestOrchestrator()
	agents := []string{"image-artist", "image-artist", "image-artist", "video-producer", "video-producer"}
	for i, agentID := range agents {
		if _, err := o.Queue().Add(scheduler.NewTask(scheduler.TaskSpec{
			ID:      agentID + "-" + string(rune('a'+i)),
			AgentID: agentID,
			Action:  "render",
		})); err != nil {
			t.Fatal(err)
		}
	}

	var (
		mu      sync.Mutex
		running = map[string]int{}
		peak    = map[string]int{}
		total   atomic.Int32
		maxAll  atomic.Int32
	)
	inner := ExecutorFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		mu.Lock()
		running[task.AgentID]++
		if running[task.AgentID] > peak[task.AgentID] {
			peak[task.AgentID] = running[task.AgentID]
		}
		mu.Unlock()

		n := total.Add(1)
		for {
			p := maxAll.Load()
			if n <= p || maxAll.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		total.Add(-1)

		mu.Lock()
		running[task.AgentID]--
		mu.Unlock()
		return nil, nil
	})

	report, err := o.ExecuteParallel(context.Background(), SerializeByAgent(inner, NewAgentLocks()), 5)
	if err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}
	if report.Stats.Completed != len(agents) {
		t.Errorf("stats = %s", report.Stats)
	}

	mu.Lock()
	defer mu.Unlock()
	for agentID, p := range peak {
		if p != 1 {
			t.Errorf("agent %s peaked at %d concurrent tasks, want 1", agentID, p)
		}
	}
	if maxAll.Load() < 2 {
		t.Errorf("different agents never overlapped (peak %d)", maxAll.Load())
	}
}
