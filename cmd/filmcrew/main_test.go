package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/filmcrew/internal/config"
	"github.com/aristath/filmcrew/internal/persistence"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// runCLI executes the root command with an isolated config and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRunCommand_DryRun(t *testing.T) {
	out, err := runCLI(t, "--dry-run", "run", "write", "the", "screenplay", "for", "a", "heist")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	for _, want := range []string{"script request: 1 task(s) queued", "[dry-run] screenwriter write_script", "completed=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCommand_FullProductionInParallel(t *testing.T) {
	out, err := runCLI(t, "--dry-run", "--concurrency", "3", "run", "make a film about a lighthouse keeper")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "full_production request: 8 task(s) queued") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "completed=8") {
		t.Errorf("expected all 8 tasks to complete:\n%s", out)
	}
}

func TestRunCommand_RequiresRequest(t *testing.T) {
	if _, err := runCLI(t, "--dry-run", "run"); err == nil {
		t.Fatal("expected an error without a request")
	}
}

func TestRunCommand_UnknownAgentFails(t *testing.T) {
	// Without --dry-run the backend executor is used; an agent with a
	// provider nobody configured fails permanently without spawning anything.
	cfg := config.DefaultConfig()
	a := cfg.Agents["screenwriter"]
	a.Provider = "missing-provider"
	cfg.Agents["screenwriter"] = a

	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "run", "rewrite the dialogue"})

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "1 task(s) failed") {
		t.Fatalf("expected one failed task, got %v\n%s", err, stdout.String())
	}
	if !strings.Contains(stdout.String(), "missing-provider") {
		t.Errorf("expected the provider error in the report:\n%s", stdout.String())
	}
}

func TestPlanCommand(t *testing.T) {
	out, err := runCLI(t, "plan", "--template", "short", "--sequential", "--title", "Night Train", "a ghost story on a train")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	for _, want := range []string{"Night Train", "template short", "1. Script", "2. Visuals", "3. Video", "screenwriter/write_script", " after "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Printing a plan does not run it
	if strings.Contains(out, "completed=") {
		t.Errorf("plan without --run should not execute:\n%s", out)
	}
}

func TestPlanCommand_Run(t *testing.T) {
	out, err := runCLI(t, "--dry-run", "plan", "--template", "short", "--sequential", "--run", "a ghost story on a train")
	if err != nil {
		t.Fatalf("plan --run failed: %v", err)
	}
	if !strings.Contains(out, "completed=4") {
		t.Errorf("expected 4 completed tasks:\n%s", out)
	}
}

func TestPlanCommand_UnknownTemplate(t *testing.T) {
	if _, err := runCLI(t, "plan", "--template", "opera", "anything"); err == nil {
		t.Fatal("expected unknown template error")
	}
}

func TestTeamCommand(t *testing.T) {
	out, err := runCLI(t, "team")
	if err != nil {
		t.Fatalf("team failed: %v", err)
	}
	if !strings.Contains(out, "screenwriter") || !strings.Contains(out, "priority 10") {
		t.Errorf("unexpected team description:\n%s", out)
	}

	out, err = runCLI(t, "team", "--prompt")
	if err != nil {
		t.Fatalf("team --prompt failed: %v", err)
	}
	if !strings.Contains(out, "planner") || !strings.Contains(out, "write_script") {
		t.Errorf("unexpected team prompt:\n%s", out)
	}
}

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	if _, err := runCLI(t, "--dry-run", "--db", dbPath, "run", "storyboard the chase"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// The recorder flushed on exit; the store holds the finished task
	store, err := persistence.NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	tasks, err := store.ListTasks(context.Background())
	store.Close()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != scheduler.TaskCompleted || tasks[0].AgentID != "shot-designer" {
		t.Fatalf("recorded tasks = %+v", tasks)
	}

	out, err := runCLI(t, "--db", dbPath, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, tasks[0].ID) || !strings.Contains(out, "completed") {
		t.Errorf("history missing task:\n%s", out)
	}

	out, err = runCLI(t, "--db", dbPath, "history", tasks[0].ID)
	if err != nil {
		t.Fatalf("history <id> failed: %v", err)
	}
	if !strings.Contains(out, "break_down_shots") || !strings.Contains(out, "[dry-run]") {
		t.Errorf("task detail missing fields:\n%s", out)
	}
	out, err = runCLI(t, "--db", dbPath, "history", "--prune", "1h")
	if err != nil || !strings.Contains(out, "Pruned 0 task(s)") {
		t.Errorf("prune 1h = %q, %v; want nothing pruned", out, err)
	}
	out, err = runCLI(t, "--db", dbPath, "history", "--prune", "1ns")
	if err != nil || !strings.Contains(out, "Pruned 1 task(s)") {
		t.Errorf("prune 1ns = %q, %v; want the task pruned", out, err)
	}
	out, _ = runCLI(t, "--db", dbPath, "history")
	if !strings.Contains(out, "No recorded tasks.") {
		t.Errorf("history after prune:\n%s", out)
	}
}

func TestHistoryCommand_NoDatabase(t *testing.T) {
	if _, err := runCLI(t, "history"); err == nil {
		t.Fatal("expected error without a database")
	}
}

func TestNewApp_ConcurrencyOverride(t *testing.T) {
	opts := &globalOptions{
		configPath:  filepath.Join(t.TempDir(), "missing.json"),
		concurrency: 4,
		dryRun:      true,
	}
	a, err := newApp(context.Background(), opts)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", a.concurrency)
	}
	if a.recorder != nil {
		t.Error("recorder should be disabled without a database")
	}

	a.Close()
	a.Close() // idempotent
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew", "config.json")

	run := func(args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", path, "init"}, args...))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := run()
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Wrote") || !strings.Contains(out, path) {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := config.Load("", path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	if _, err := run(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init err = %v, want already exists", err)
	}
	if _, err := run("--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestNewApp_RegistersBusMetric(t *testing.T) {
	a, err := newApp(context.Background(), &globalOptions{
		configPath: filepath.Join(t.TempDir(), "missing.json"),
		dryRun:     true,
	})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	families, err := a.metrics.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "filmcrew_bus_events_dropped_total" {
			return
		}
	}
	t.Error("filmcrew_bus_events_dropped_total not registered")
}

func TestRunCommand_SerializedAgents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Execution.SerializeAgents = true
	cfg.Execution.Concurrency = 4
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "--dry-run", "plan", "--run", "a heist in the rain"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("plan --run failed: %v\n%s", err, stdout.String())
	}
	if !strings.Contains(stdout.String(), "completed=8") {
		t.Errorf("expected all 8 film tasks to complete:\n%s", stdout.String())
	}
}
