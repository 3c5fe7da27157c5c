package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional global and project config paths.
// Global: ~/.filmcrew/config.json
// Project: .filmcrew/config.json (relative to cwd)
func DefaultPaths() (globalPath, projectPath string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".filmcrew", "config.json"), filepath.Join(".filmcrew", "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	globalPath, projectPath, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}
	mergeExecution(&base.Execution, loaded.Execution)
	if loaded.Storage.Path != "" {
		base.Storage.Path = loaded.Storage.Path
	}
	if loaded.Metrics.Addr != "" {
		base.Metrics.Addr = loaded.Metrics.Addr
	}

	return nil
}

// mergeExecution overrides only the fields the loaded file sets.
func mergeExecution(base *ExecutionConfig, loaded ExecutionConfig) {
	if loaded.Concurrency > 0 {
		base.Concurrency = loaded.Concurrency
	}
	if loaded.TaskTimeout > 0 {
		base.TaskTimeout = loaded.TaskTimeout
	}
	if loaded.SerializeAgents {
		base.SerializeAgents = true
	}

	r := loaded.Retry
	if r.InitialInterval > 0 {
		base.Retry.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		base.Retry.MaxInterval = r.MaxInterval
	}
	if r.MaxElapsedTime > 0 {
		base.Retry.MaxElapsedTime = r.MaxElapsedTime
	}
	if r.Multiplier > 0 {
		base.Retry.Multiplier = r.Multiplier
	}
	if r.RandomizationFactor > 0 {
		base.Retry.RandomizationFactor = r.RandomizationFactor
	}

	if loaded.Breaker.ConsecutiveFailures > 0 {
		base.Breaker.ConsecutiveFailures = loaded.Breaker.ConsecutiveFailures
	}
	if loaded.Breaker.OpenTimeout > 0 {
		base.Breaker.OpenTimeout = loaded.Breaker.OpenTimeout
	}
}
