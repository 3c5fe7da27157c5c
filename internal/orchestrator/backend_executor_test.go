package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aristath/filmcrew/internal/backend"
	"github.com/aristath/filmcrew/internal/config"
	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// fakeBackend echoes the prompt and reports each line through the config hook.
type fakeBackend struct {
	cfg    backend.Config
	err    error
	closed bool
	taskID string
}

func (b *fakeBackend) Send(ctx context.Context, req backend.Request) (backend.Reply, error) {
	b.taskID = req.TaskID
	if b.err != nil {
		return backend.Reply{Stderr: b.err.Error()}, b.err
	}
	if b.cfg.OnLine != nil {
		for _, line := range strings.Split(strings.TrimSpace(req.Prompt), "\n") {
			b.cfg.OnLine(line)
		}
	}
	return backend.Reply{Text: "reply to: " + req.Prompt}, nil
}

func (b *fakeBackend) Close() error      { b.closed = true; return nil }
func (b *fakeBackend) SessionID() string { return "fake" }

func newTestBackendExecutor(bus *events.EventBus, sendErr error) (*BackendExecutor, *[]*fakeBackend) {
	cfg := config.DefaultConfig()
	exec := NewBackendExecutor(cfg, backend.NewProcessManager(), bus, "")
	created := &[]*fakeBackend{}
	exec.factory = func(bcfg backend.Config, _ *backend.ProcessManager) (backend.Backend, error) {
		fb := &fakeBackend{cfg: bcfg, err: sendErr}
		*created = append(*created, fb)
		return fb, nil
	}
	return exec, created
}

func TestBackendExecutor_RendersAndSends(t *testing.T) {
	exec, created := newTestBackendExecutor(nil, nil)
	task := scheduler.NewTask(scheduler.TaskSpec{
		Name:        "Opening",
		Description: "Write the opening scene",
		AgentID:     "screenwriter",
		Action:      "write_script",
		Params:      []byte(`{"tone":"eerie"}`),
	})

	result, err := exec.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	text, _ := result.(string)
	for _, want := range []string{"Action: write_script", "Task: Opening", "Write the opening scene", `{"tone":"eerie"}`} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q:\n%s", want, text)
		}
	}

	if len(*created) != 1 {
		t.Fatalf("backends created = %d, want 1", len(*created))
	}
	fb := (*created)[0]
	if fb.cfg.Command != "claude" || fb.cfg.ModelFlag != "--model" || fb.cfg.SystemPrompt == "" {
		t.Errorf("unexpected backend config %+v", fb.cfg)
	}
	if !fb.closed {
		t.Error("backend not closed after use")
	}
	if fb.taskID != task.ID {
		t.Errorf("request task ID = %q, want %q", fb.taskID, task.ID)
	}
}

func TestBackendExecutor_PassesProviderEnv(t *testing.T) {
	exec, created := newTestBackendExecutor(nil, nil)
	p := exec.cfg.Providers["claude"]
	p.Env = map[string]string{"CREW_STYLE": "noir"}
	exec.cfg.Providers["claude"] = p

	task := scheduler.NewTask(scheduler.TaskSpec{AgentID: "screenwriter", Action: "write_script"})
	if _, err := exec.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := (*created)[0].cfg.Env["CREW_STYLE"]; got != "noir" {
		t.Errorf("Env[CREW_STYLE] = %q, want noir", got)
	}
}

func TestBackendExecutor_RejectsUnservableTasks(t *testing.T) {
	exec, created := newTestBackendExecutor(nil, nil)
	exec.cfg.Agents["ghost"] = config.AgentConfig{Provider: "nowhere"}

	tests := []struct {
		name    string
		agentID string
		action  string
		wantErr error
	}{
		{"unknown agent", "stuntman", "jump", ErrUnknownAgent},
		{"unsupported action", "screenwriter", "generate_video", ErrUnknownAction},
		{"unknown provider", "ghost", "anything", ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := scheduler.NewTask(scheduler.TaskSpec{AgentID: tt.agentID, Action: tt.action})
			_, err := exec.Execute(context.Background(), task)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(*created) != 0 {
		t.Errorf("no backend should be created for rejected tasks, got %d", len(*created))
	}
}

func TestBackendExecutor_DelegatedActionAlwaysAccepted(t *testing.T) {
	exec, _ := newTestBackendExecutor(nil, nil)
	task := scheduler.NewTask(scheduler.TaskSpec{AgentID: "image-artist", Action: ActionDelegated, Description: "help"})
	if _, err := exec.Execute(context.Background(), task); err != nil {
		t.Errorf("delegated task rejected: %v", err)
	}
}

func TestBackendExecutor_PublishesOutput(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()
	ch := bus.Subscribe(events.TopicTask, 16)

	exec, _ := newTestBackendExecutor(bus, nil)
	task := scheduler.NewTask(scheduler.TaskSpec{ID: "t-out", AgentID: "screenwriter", Action: "write_script"})
	if _, err := exec.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case ev := <-ch:
		out, ok := ev.(events.TaskOutputEvent)
		if !ok || out.ID != "t-out" || out.Line != "Action: write_script" {
			t.Errorf("unexpected output event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no output event published")
	}
}

func TestBackendExecutor_FailuresFlowThroughQueue(t *testing.T) {
	exec, _ := newTestBackendExecutor(nil, errors.New("cli crashed"))
	o := newTestOrchestrator()
	receipt, err := o.SubmitTask(DelegationRequest{Description: "outline", TargetAgent: "screenwriter"})
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	report, err := o.Execute(context.Background(), exec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Success {
		t.Fatalf("expected one failure, got %+v", report.Results)
	}
	task, _ := o.GetTask(receipt.ID)
	if task.Status != scheduler.TaskFailed || task.Error == nil || task.Error.Error() != "cli crashed" {
		t.Errorf("task = %s / %v", task.Status, task.Error)
	}
}

func TestDryRunExecutor(t *testing.T) {
	o := newTestOrchestrator()
	if _, err := o.CreatePlan("Dry run film", PlanOptions{Template: TemplateShort, Enqueue: true}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	report, err := o.Execute(context.Background(), DryRunExecutor())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Stats.Completed != 4 {
		t.Errorf("stats = %s", report.Stats)
	}
	if r, _ := report.Results[0].Result.(string); !strings.HasPrefix(r, "[dry-run] ") {
		t.Errorf("unexpected dry-run result %q", r)
	}
}

func TestBackendExecutor_UnservableTasksKeepAgentAvailable(t *testing.T) {
	inner, created := newTestBackendExecutor(nil, nil)
	breakers := NewCircuitBreakerRegistry(BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: time.Minute})
	exec := NewResilientExecutor(inner, fastRetry(), breakers, 0)

	for i := range 6 {
		task := scheduler.NewTask(scheduler.TaskSpec{AgentID: "screenwriter", Action: "bogus_action"})
		if _, err := exec.Execute(context.Background(), task); !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("call %d: err = %v, want ErrUnknownAction", i+1, err)
		}
	}

	valid := scheduler.NewTask(scheduler.TaskSpec{AgentID: "screenwriter", Action: "write_script"})
	if _, err := exec.Execute(context.Background(), valid); err != nil {
		t.Fatalf("valid task after unservable ones: %v", err)
	}
	if len(*created) != 1 {
		t.Errorf("backends created = %d, want 1 for the valid task", len(*created))
	}
}
