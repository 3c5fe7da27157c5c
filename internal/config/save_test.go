package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	cfg := &Config{
		Providers: map[string]ProviderConfig{"test": {Command: "test-cmd"}},
		Agents:    map[string]AgentConfig{},
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}
	if loaded.Providers["test"].Command != "test-cmd" {
		t.Errorf("Expected provider command 'test-cmd', got '%s'", loaded.Providers["test"].Command)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"goose": {Command: "goose", Args: []string{"run", "--verbose"}},
		},
		Agents: map[string]AgentConfig{
			"colorist": {
				Name:         "Colorist",
				Provider:     "goose",
				Model:        "model-z",
				Priority:     2,
				Capabilities: []string{"grade_color"},
			},
		},
		Execution: ExecutionConfig{
			Concurrency: 3,
			TaskTimeout: Duration(45 * time.Second),
		},
		Storage: StorageConfig{Path: "/tmp/crew.db"},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if args := loaded.Providers["goose"].Args; len(args) != 2 || args[1] != "--verbose" {
		t.Errorf("goose provider args mismatch: got %v", args)
	}
	colorist := loaded.Agents["colorist"]
	if colorist.Model != "model-z" || colorist.Priority != 2 || len(colorist.Capabilities) != 1 {
		t.Errorf("colorist mismatch: %+v", colorist)
	}
	if loaded.Execution.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", loaded.Execution.Concurrency)
	}
	if loaded.Execution.TaskTimeout.Std() != 45*time.Second {
		t.Errorf("task timeout = %v, want 45s", loaded.Execution.TaskTimeout.Std())
	}
	if loaded.Storage.Path != "/tmp/crew.db" {
		t.Errorf("storage path = %q", loaded.Storage.Path)
	}
	// Defaults survive alongside the saved additions
	if _, ok := loaded.Agents["planner"]; !ok {
		t.Error("default planner agent missing after merge")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	for _, value := range []string{"first-value", "second-value"} {
		cfg := &Config{Providers: map[string]ProviderConfig{"test": {Command: value}}}
		if err := Save(cfg, path); err != nil {
			t.Fatalf("Save(%s) failed: %v", value, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if loaded.Providers["test"].Command != "second-value" {
		t.Errorf("Expected 'second-value', got '%s'", loaded.Providers["test"].Command)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.json" {
		t.Errorf("directory holds %v, want only config.json", entries)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("permissions = %o, want 644", perm)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".filmcrew", "config.json")

	cfg, err := Init(path, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Agents) != len(cfg.Agents) || len(loaded.Agents) == 0 {
		t.Errorf("loaded %d agents, wrote %d", len(loaded.Agents), len(cfg.Agents))
	}

	if _, err := Init(path, false); !errors.Is(err, ErrExists) {
		t.Errorf("second Init err = %v, want ErrExists", err)
	}
	if _, err := Init(path, true); err != nil {
		t.Errorf("forced Init: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agents["unnamed"] = AgentConfig{Provider: "claude", Priority: 1}

	reg := cfg.Registry()

	planner, ok := reg.Get("planner")
	if !ok {
		t.Fatal("planner not registered")
	}
	if planner.Priority != 10 || planner.Name != "Planner" {
		t.Errorf("planner descriptor = %+v", planner)
	}

	unnamed, ok := reg.Get("unnamed")
	if !ok || unnamed.Name != "unnamed" {
		t.Errorf("agent without a name should fall back to its ID, got %+v", unnamed)
	}

	all := reg.All()
	if len(all) != len(cfg.Agents) {
		t.Fatalf("All() returned %d agents, want %d", len(all), len(cfg.Agents))
	}
	if all[0].ID != "planner" {
		t.Errorf("highest priority agent = %q, want planner", all[0].ID)
	}
}
