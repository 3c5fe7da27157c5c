package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandAdapter runs one CLI invocation per request. The rendered prompt is
// passed as the final argument.
type CommandAdapter struct {
	cfg       Config
	sessionID string
	procMgr   *ProcessManager // Optional
}

// NewCommandAdapter creates an adapter for cfg.Command. WorkDir defaults to
// the current directory.
func NewCommandAdapter(cfg Config, procMgr *ProcessManager) (*CommandAdapter, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("backend config: empty command")
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if cfg.WorkDir == "" {
		workDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.WorkDir = workDir
	}

	return &CommandAdapter{cfg: cfg, sessionID: sessionID, procMgr: procMgr}, nil
}

// Send runs the command with the request's prompt. On failure the Reply
// still carries stderr and the elapsed time.
func (a *CommandAdapter) Send(ctx context.Context, req Request) (Reply, error) {
	start := time.Now()
	cmd := groupCommand(ctx, a.cfg.Command, a.buildArgs(req.Prompt)...)
	cmd.Dir = a.cfg.WorkDir
	cmd.Env = a.environ(req.TaskID)

	out, err := runCommand(ctx, cmd, a.procMgr, a.cfg.OnLine)
	reply := Reply{
		SessionID: a.sessionID,
		Stderr:    strings.TrimSpace(out.stderr.String()),
		Elapsed:   time.Since(start),
	}
	if err != nil {
		return reply, fmt.Errorf("%s: %w", a.cfg.Command, err)
	}

	text, session := parseOutput(out.stdout.Bytes())
	reply.Text = text
	if session != "" {
		reply.SessionID = session
	}
	return reply, nil
}

// Close is a no-op; every request gets its own process.
func (a *CommandAdapter) Close() error {
	return nil
}

// SessionID returns the session identifier replies fall back to.
func (a *CommandAdapter) SessionID() string {
	return a.sessionID
}

func (a *CommandAdapter) buildArgs(prompt string) []string {
	args := append([]string(nil), a.cfg.Args...)
	if a.cfg.Model != "" && a.cfg.ModelFlag != "" {
		args = append(args, a.cfg.ModelFlag, a.cfg.Model)
	}
	return append(args, a.renderPrompt(prompt))
}

func (a *CommandAdapter) renderPrompt(prompt string) string {
	if a.cfg.SystemPrompt == "" {
		return prompt
	}
	return a.cfg.SystemPrompt + "\n\n" + prompt
}

// environ returns nil (inherit) when there is nothing to add.
func (a *CommandAdapter) environ(taskID string) []string {
	if taskID == "" && len(a.cfg.Env) == 0 {
		return nil
	}
	env := os.Environ()
	keys := make([]string, 0, len(a.cfg.Env))
	for k := range a.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+a.cfg.Env[k])
	}
	if taskID != "" {
		env = append(env, TaskIDEnv+"="+taskID)
	}
	return env
}

// cliResult covers the JSON shapes agent CLIs print with their JSON output flags.
type cliResult struct {
	SessionID string          `json:"session_id"`
	Result    json.RawMessage `json:"result"`
}

// parseOutput extracts the reply text and any session ID. JSON output with a
// "result" field (a string or a content array) is unwrapped; anything else is
// returned as trimmed plain text.
func parseOutput(data []byte) (text, sessionID string) {
	text = strings.TrimSpace(string(data))

	var cr cliResult
	if err := json.Unmarshal([]byte(text), &cr); err != nil || len(cr.Result) == 0 {
		return text, ""
	}

	var s string
	if err := json.Unmarshal(cr.Result, &s); err == nil {
		return s, cr.SessionID
	}

	var structured struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(cr.Result, &structured); err == nil {
		var b strings.Builder
		for _, item := range structured.Content {
			if item.Type == "text" {
				b.WriteString(item.Text)
			}
		}
		return b.String(), cr.SessionID
	}

	return text, cr.SessionID
}
