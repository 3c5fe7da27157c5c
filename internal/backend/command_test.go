package backend

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestNewCommandAdapter_RequiresCommand(t *testing.T) {
	if _, err := NewCommandAdapter(Config{}, nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestNewCommandAdapter_SessionID(t *testing.T) {
	generated, err := NewCommandAdapter(Config{Command: "echo"}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}
	if len(generated.SessionID()) != 36 {
		t.Errorf("expected generated UUID session ID, got %q", generated.SessionID())
	}

	provided, err := NewCommandAdapter(Config{Command: "echo", SessionID: "fixed"}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}
	if provided.SessionID() != "fixed" {
		t.Errorf("SessionID() = %q, want fixed", provided.SessionID())
	}
}

func TestCommandAdapter_BuildArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		msg  string
		want []string
	}{
		{
			name: "prompt appended last",
			cfg:  Config{Command: "claude", Args: []string{"-p"}},
			msg:  "write a scene",
			want: []string{"-p", "write a scene"},
		},
		{
			name: "model flag before prompt",
			cfg:  Config{Command: "codex", Args: []string{"exec"}, ModelFlag: "--model", Model: "m1"},
			msg:  "go",
			want: []string{"exec", "--model", "m1", "go"},
		},
		{
			name: "model without flag is ignored",
			cfg:  Config{Command: "goose", Model: "m1"},
			msg:  "go",
			want: []string{"go"},
		},
		{
			name: "system prompt prepended",
			cfg:  Config{Command: "claude", SystemPrompt: "You write scripts."},
			msg:  "act one",
			want: []string{"You write scripts.\n\nact one"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewCommandAdapter(tt.cfg, nil)
			if err != nil {
				t.Fatalf("NewCommandAdapter: %v", err)
			}
			got := a.buildArgs(tt.msg)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("buildArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandAdapter_BuildArgsDoesNotAliasConfig(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "-p"
	a, err := NewCommandAdapter(Config{Command: "claude", Args: base}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}
	first := a.buildArgs("one")
	a.buildArgs("two")
	if first[1] != "one" {
		t.Errorf("earlier args overwritten: %v", first)
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantContent string
		wantSession string
	}{
		{"plain text", "  hello world\n", "hello world", ""},
		{"string result", `{"result":"done","session_id":"s1"}`, "done", "s1"},
		{"content array", `{"session_id":"s2","result":{"content":[{"type":"text","text":"a"},{"type":"tool","text":"x"},{"type":"text","text":"b"}]}}`, "ab", "s2"},
		{"json without result", `{"other":1}`, `{"other":1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, session := parseOutput([]byte(tt.input))
			if text != tt.wantContent {
				t.Errorf("text = %q, want %q", text, tt.wantContent)
			}
			if session != tt.wantSession {
				t.Errorf("session = %q, want %q", session, tt.wantSession)
			}
		})
	}
}

func TestCommandAdapter_Send(t *testing.T) {
	var mu sync.Mutex
	var streamed []string
	cfg := Config{
		Command:   "bash",
		Args:      []string{mockCLIPath(t), "--echo-last"},
		SessionID: "crew-session",
		OnLine: func(line string) {
			mu.Lock()
			streamed = append(streamed, line)
			mu.Unlock()
		},
	}
	pm := NewProcessManager()
	a, err := New(cfg, pm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	resp, err := a.Send(context.Background(), Request{Prompt: "shot list please"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text != "shot list please" {
		t.Errorf("Text = %q, want the echoed prompt", resp.Text)
	}
	if resp.SessionID != "crew-session" {
		t.Errorf("SessionID = %q, want crew-session", resp.SessionID)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(streamed) != 1 || streamed[0] != "shot list please" {
		t.Errorf("streamed lines = %v", streamed)
	}
	if pm.Count() != 0 {
		t.Errorf("process still tracked after Send: %d", pm.Count())
	}
}

func TestCommandAdapter_SendJSON(t *testing.T) {
	a, err := NewCommandAdapter(Config{
		Command: "bash",
		Args:    []string{mockCLIPath(t), "--json", "storyboard ready"},
	}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}

	resp, err := a.Send(context.Background(), Request{Prompt: "ignored"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text != "storyboard ready" || resp.SessionID != "mock-session" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCommandAdapter_SendFailure(t *testing.T) {
	a, err := NewCommandAdapter(Config{
		Command: "bash",
		Args:    []string{mockCLIPath(t), "--stderr", "quota exceeded", "--exit-code", "2"},
	}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}

	resp, err := a.Send(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error should carry stderr, got %v", err)
	}
	if resp.Stderr != "quota exceeded" {
		t.Errorf("Stderr = %q, want quota exceeded", resp.Stderr)
	}
}

func TestCommandAdapter_Environment(t *testing.T) {
	a, err := NewCommandAdapter(Config{
		Command: "bash",
		Args:    []string{"-c", `echo "$` + TaskIDEnv + ` $CREW_STYLE"`},
		Env:     map[string]string{"CREW_STYLE": "noir"},
	}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}

	// The prompt lands in $0 of the inline script and is not printed.
	resp, err := a.Send(context.Background(), Request{TaskID: "task-42", Prompt: "prompt"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text != "task-42 noir" {
		t.Errorf("Text = %q, want %q", resp.Text, "task-42 noir")
	}
	if resp.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", resp.Elapsed)
	}
}

func TestCommandAdapter_InheritsEnvironmentByDefault(t *testing.T) {
	a, err := NewCommandAdapter(Config{Command: "echo"}, nil)
	if err != nil {
		t.Fatalf("NewCommandAdapter: %v", err)
	}
	if env := a.environ(""); env != nil {
		t.Errorf("environ() = %d entries, want nil", len(env))
	}
	env := a.environ("t1")
	if last := env[len(env)-1]; last != TaskIDEnv+"=t1" {
		t.Errorf("last entry = %q", last)
	}
}
