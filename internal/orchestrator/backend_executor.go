package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/filmcrew/internal/backend"
	"github.com/aristath/filmcrew/internal/config"
	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// ActionDelegated is the action given to tasks created by SubmitTask.
// Every agent accepts it.
const ActionDelegated = "delegated_task"

// Errors returned for tasks no agent can serve. They are never retried.
var (
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownAction   = errors.New("action not supported by agent")
	ErrUnknownProvider = errors.New("unknown provider")
)

// isUnservable reports whether err means the task names an agent, action or
// provider the configuration cannot serve.
func isUnservable(err error) bool {
	return errors.Is(err, ErrUnknownAgent) || errors.Is(err, ErrUnknownAction) || errors.Is(err, ErrUnknownProvider)
}

// BackendExecutor runs each task through its agent's provider CLI.
type BackendExecutor struct {
	cfg     *config.Config
	procMgr *backend.ProcessManager
	bus     *events.EventBus // Optional; receives agent output lines
	workDir string
	factory backend.Factory
}

// NewBackendExecutor creates an executor for the agents and providers in cfg.
// bus may be nil.
func NewBackendExecutor(cfg *config.Config, pm *backend.ProcessManager, bus *events.EventBus, workDir string) *BackendExecutor {
	return &BackendExecutor{cfg: cfg, procMgr: pm, bus: bus, workDir: workDir, factory: backend.New}
}

// Execute renders the task into a prompt and sends it to the agent's CLI.
// The result is the CLI's response text.
func (e *BackendExecutor) Execute(ctx context.Context, task *scheduler.Task) (any, error) {
	bcfg, err := e.backendConfig(task)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	b, err := e.factory(bcfg, e.procMgr)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating backend for %q: %w", task.AgentID, err))
	}
	defer b.Close()

	reply, err := b.Send(ctx, backend.Request{TaskID: task.ID, Prompt: renderTaskPrompt(task)})
	if err != nil {
		return nil, err
	}
	return reply.Text, nil
}

func (e *BackendExecutor) backendConfig(task *scheduler.Task) (backend.Config, error) {
	agentCfg, ok := e.cfg.Agents[task.AgentID]
	if !ok {
		return backend.Config{}, fmt.Errorf("%w: %q", ErrUnknownAgent, task.AgentID)
	}
	if !supportsAction(agentCfg, task.Action) {
		return backend.Config{}, fmt.Errorf("%w: %q cannot %q", ErrUnknownAction, task.AgentID, task.Action)
	}
	provider, ok := e.cfg.Providers[agentCfg.Provider]
	if !ok {
		return backend.Config{}, fmt.Errorf("%w: %q (agent %q)", ErrUnknownProvider, agentCfg.Provider, task.AgentID)
	}

	bcfg := backend.Config{
		Command:      provider.Command,
		Args:         provider.Args,
		ModelFlag:    provider.ModelFlag,
		Model:        agentCfg.Model,
		SystemPrompt: agentCfg.SystemPrompt,
		WorkDir:      e.workDir,
		Env:          provider.Env,
	}
	if e.bus != nil {
		taskID := task.ID
		bcfg.OnLine = func(line string) {
			e.bus.Publish(events.TopicTask, events.TaskOutputEvent{ID: taskID, Line: line, Timestamp: time.Now()})
		}
	}
	return bcfg, nil
}

func supportsAction(a config.AgentConfig, action string) bool {
	if action == ActionDelegated || len(a.Capabilities) == 0 {
		return true
	}
	for _, c := range a.Capabilities {
		if c == action {
			return true
		}
	}
	return false
}

// renderTaskPrompt formats a task as instructions for an agent CLI.
func renderTaskPrompt(task *scheduler.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\n", task.Action)
	if task.Name != "" && task.Name != task.Action {
		fmt.Fprintf(&b, "Task: %s\n", task.Name)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}
	if len(task.Params) > 0 && string(task.Params) != "null" {
		fmt.Fprintf(&b, "\nParameters:\n%s\n", task.Params)
	}
	return b.String()
}

// DryRunExecutor completes every task without side effects, returning a
// summary of what would have run.
func DryRunExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fmt.Sprintf("[dry-run] %s %s: %s", task.AgentID, task.Action, task.Name), nil
	})
}
