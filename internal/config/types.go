package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProviderConfig defines a CLI backend that agents run through.
// The rendered prompt is appended as the final argument.
type ProviderConfig struct {
	Command   string   `json:"command"`              // CLI binary name (e.g., "claude", "codex", "goose")
	Args      []string `json:"args,omitempty"`       // Args placed before the prompt
	ModelFlag string   `json:"model_flag,omitempty"` // Flag that selects the agent's model

	Env map[string]string `json:"env,omitempty"` // Extra environment for the CLI
}

// AgentConfig defines one agent of the crew.
type AgentConfig struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Priority     int      `json:"priority"`               // Default priority of tasks targeting this agent
	Capabilities []string `json:"capabilities,omitempty"` // Actions the agent accepts
	Provider     string   `json:"provider"`               // Key into Providers map
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

// RetryConfig configures exponential backoff around task execution.
type RetryConfig struct {
	InitialInterval     Duration `json:"initial_interval,omitempty"`
	MaxInterval         Duration `json:"max_interval,omitempty"`
	MaxElapsedTime      Duration `json:"max_elapsed_time,omitempty"`
	Multiplier          float64  `json:"multiplier,omitempty"`
	RandomizationFactor float64  `json:"randomization_factor,omitempty"`
}

// BreakerConfig configures the per-agent circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures int      `json:"consecutive_failures,omitempty"` // Failures that trip the breaker
	OpenTimeout         Duration `json:"open_timeout,omitempty"`         // Time spent open before probing
}

// ExecutionConfig controls how the queue is drained.
type ExecutionConfig struct {
	Concurrency int           `json:"concurrency,omitempty"`  // 1 runs tasks one at a time
	TaskTimeout Duration      `json:"task_timeout,omitempty"` // Zero disables the per-task timeout
	Retry       RetryConfig   `json:"retry"`
	Breaker     BreakerConfig `json:"breaker"`

	// SerializeAgents keeps each agent to one task at a time when running in parallel.
	SerializeAgents bool `json:"serialize_agents,omitempty"`
}

// StorageConfig locates the task audit database. An empty path disables it.
type StorageConfig struct {
	Path string `json:"path,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Execution ExecutionConfig           `json:"execution"`
	Storage   StorageConfig             `json:"storage"`
	Metrics   MetricsConfig             `json:"metrics"`
}

// Duration is a time.Duration that reads and writes as a string like "30s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are nanoseconds
		var n int64
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("duration must be a string or integer: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
