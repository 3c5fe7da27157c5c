package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aristath/filmcrew/internal/scheduler"
)

func TestMetrics_Attach(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	o := newTestOrchestrator()
	detach := m.Attach(o.Queue())
	defer detach()

	for _, spec := range []scheduler.TaskSpec{
		{ID: "ok", AgentID: "screenwriter", Action: "write_script"},
		{ID: "bad", AgentID: "image-artist", Action: "generate_image"},
		{ID: "later", AgentID: "image-artist", Action: "generate_image", Dependencies: []string{"bad"}},
	} {
		if _, err := o.Queue().Add(scheduler.NewTask(spec)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if _, err := o.Execute(context.Background(), ExecutorFunc(func(_ context.Context, task *scheduler.Task) (any, error) {
		if task.ID == "bad" {
			return nil, errors.New("render farm down")
		}
		return "ok", nil
	})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := o.Queue().Cancel("later"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if got := testutil.ToFloat64(m.TasksAdded.WithLabelValues("image-artist")); got != 2 {
		t.Errorf("tasks_added_total{image-artist} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("screenwriter", "completed")); got != 1 {
		t.Errorf("completed screenwriter tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("image-artist", "failed")); got != 1 {
		t.Errorf("failed image-artist tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("image-artist", "cancelled")); got != 1 {
		t.Errorf("cancelled image-artist tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Tasks.WithLabelValues("blocked")); got != 0 {
		t.Errorf("blocked gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.Tasks.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("cancelled gauge = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.Tasks); n != len(scheduler.AllStatuses) {
		t.Errorf("status gauge series = %d, want %d", n, len(scheduler.AllStatuses))
	}
}

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering the same metrics twice should panic")
		}
	}()
	NewMetrics(reg)
}
