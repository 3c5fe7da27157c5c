package config

import "time"

// DefaultConfig returns the default configuration with the built-in film crew.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"claude": {
				Command:   "claude",
				Args:      []string{"-p"},
				ModelFlag: "--model",
			},
			"codex": {
				Command:   "codex",
				Args:      []string{"exec"},
				ModelFlag: "--model",
			},
			"goose": {
				Command: "goose",
				Args:    []string{"run", "-t"},
			},
		},
		Agents: map[string]AgentConfig{
			"planner": {
				Name:         "Planner",
				Description:  "Breaks open-ended requests into concrete production tasks.",
				Priority:     10,
				Capabilities: []string{"decompose", "plan"},
				Provider:     "claude",
				SystemPrompt: "You coordinate the crew and split requests into delegable tasks.",
			},
			"screenwriter": {
				Name:         "Screenwriter",
				Description:  "Writes story outlines, scripts and dialogue.",
				Priority:     8,
				Capabilities: []string{"outline_story", "write_script", "revise_script"},
				Provider:     "claude",
				SystemPrompt: "You write screenplays with clear scene headings and dialogue.",
			},
			"character-designer": {
				Name:         "Character Designer",
				Description:  "Creates and maintains character profiles and looks.",
				Priority:     6,
				Capabilities: []string{"design_characters", "update_character"},
				Provider:     "claude",
				SystemPrompt: "You design consistent, visually distinct characters.",
			},
			"scene-designer": {
				Name:         "Scene Designer",
				Description:  "Designs locations, sets and scene moods.",
				Priority:     6,
				Capabilities: []string{"design_scenes", "update_scene"},
				Provider:     "claude",
				SystemPrompt: "You design scenes: location, lighting, mood and props.",
			},
			"shot-designer": {
				Name:         "Shot Designer",
				Description:  "Breaks scenes into shots with framing and camera movement.",
				Priority:     5,
				Capabilities: []string{"break_down_shots", "update_shot"},
				Provider:     "claude",
				SystemPrompt: "You break scenes into shots with framing, lens and movement.",
			},
			"image-artist": {
				Name:         "Image Artist",
				Description:  "Writes image prompts and generates keyframes.",
				Priority:     4,
				Capabilities: []string{"generate_image", "generate_keyframes"},
				Provider:     "claude",
				SystemPrompt: "You turn shot descriptions into precise image-generation prompts.",
			},
			"video-producer": {
				Name:         "Video Producer",
				Description:  "Generates video clips from keyframes and assembles the cut.",
				Priority:     3,
				Capabilities: []string{"generate_video", "assemble_cut"},
				Provider:     "claude",
				SystemPrompt: "You turn keyframes into video generation requests and assemble the edit.",
			},
		},
		Execution: ExecutionConfig{
			Concurrency: 1,
			TaskTimeout: Duration(10 * time.Minute),
			Retry: RetryConfig{
				InitialInterval:     Duration(100 * time.Millisecond),
				MaxInterval:         Duration(10 * time.Second),
				MaxElapsedTime:      Duration(2 * time.Minute),
				Multiplier:          2.0,
				RandomizationFactor: 0.5,
			},
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         Duration(30 * time.Second),
			},
		},
	}
}
