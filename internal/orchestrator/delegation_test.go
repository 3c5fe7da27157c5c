package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/aristath/filmcrew/internal/scheduler"
)

func TestPriorityLevel(t *testing.T) {
	tests := []struct {
		p       Priority
		want    int
		wantErr bool
	}{
		{PriorityHigh, 2, false},
		{PriorityMedium, 1, false},
		{"", 1, false},
		{PriorityLow, 0, false},
		{"urgent", 0, true},
	}
	for _, tt := range tests {
		got, err := tt.p.Level()
		if (err != nil) != tt.wantErr {
			t.Errorf("Priority(%q).Level() error = %v, wantErr %v", tt.p, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Priority(%q).Level() = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestSubmitTask_PriorityMapping(t *testing.T) {
	o := newTestOrchestrator()

	high, err := o.SubmitTask(DelegationRequest{Description: "Fix continuity", TargetAgent: "screenwriter", Priority: PriorityHigh})
	if err != nil {
		t.Fatalf("SubmitTask(high): %v", err)
	}
	low, err := o.SubmitTask(DelegationRequest{Description: "Polish dialogue", TargetAgent: "screenwriter", Priority: PriorityLow})
	if err != nil {
		t.Fatalf("SubmitTask(low): %v", err)
	}

	h, _ := o.GetTask(high.ID)
	l, _ := o.GetTask(low.ID)
	if h.Priority <= l.Priority {
		t.Errorf("high priority %d should exceed low priority %d", h.Priority, l.Priority)
	}

	next, ok := o.Queue().NextRunnable()
	if !ok || next.ID != high.ID {
		t.Errorf("NextRunnable() = %v, want the high priority task", next)
	}
}

func TestSubmitTask_Receipt(t *testing.T) {
	o := newTestOrchestrator()

	receipt, err := o.SubmitTask(DelegationRequest{
		Description: "Draw the lighthouse at dusk",
		TargetAgent: "image-artist",
		Context:     map[string]any{"shot_id": "sh-3"},
		UserMessage: "can we see the lighthouse?",
	})
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	if receipt.ID == "" || receipt.TargetAgent != "image-artist" || receipt.Status != scheduler.TaskPending {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if receipt.Description != "Draw the lighthouse at dusk" || receipt.CreatedAt.IsZero() {
		t.Errorf("unexpected receipt %+v", receipt)
	}

	task, ok := o.GetTask(receipt.ID)
	if !ok {
		t.Fatal("delegated task not in queue")
	}
	if task.Action != ActionDelegated || task.Priority != 1 {
		t.Errorf("task = %s priority %d, want delegated medium", task.Action, task.Priority)
	}
	var params map[string]any
	if err := json.Unmarshal(task.Params, &params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if params["shot_id"] != "sh-3" || params["user_message"] != "can we see the lighthouse?" {
		t.Errorf("params = %v", params)
	}
}

func TestSubmitTask_DefaultsAndErrors(t *testing.T) {
	o := newTestOrchestrator()

	receipt, err := o.SubmitTask(DelegationRequest{Description: "Figure out the third act"})
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if receipt.TargetAgent != "planner" {
		t.Errorf("TargetAgent = %q, want planner", receipt.TargetAgent)
	}

	if _, err := o.SubmitTask(DelegationRequest{Description: ""}); err == nil {
		t.Error("expected error for empty description")
	}
	if _, err := o.SubmitTask(DelegationRequest{Description: "x", Priority: "asap"}); err == nil {
		t.Error("expected error for unknown priority")
	}
	if o.Stats().Total != 1 {
		t.Errorf("rejected submissions must not enqueue, total = %d", o.Stats().Total)
	}
}
