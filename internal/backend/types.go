package backend

import "time"

// TaskIDEnv names the environment variable that carries the task ID into the
// agent CLI.
const TaskIDEnv = "FILMCREW_TASK_ID"

// Request is one piece of work handed to an agent CLI.
type Request struct {
	TaskID string // Exported to the subprocess as TaskIDEnv when set
	Prompt string
}

// Reply is what the agent CLI produced for a Request.
type Reply struct {
	Text      string
	SessionID string
	Stderr    string // Trimmed; set on success and failure
	Elapsed   time.Duration
}

// Config defines how to invoke one agent's CLI.
type Config struct {
	Command      string   // Binary to run (e.g., "claude", "codex", "goose")
	Args         []string // Arguments placed before the prompt
	ModelFlag    string   // Ignored when Model is empty
	Model        string
	SystemPrompt string // Prepended to every prompt
	WorkDir      string
	Env          map[string]string // Added to the inherited environment
	SessionID    string            // Generated when empty

	// OnLine, if set, receives each stdout line as it is produced.
	OnLine func(line string)
}
