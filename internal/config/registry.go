package config

import "github.com/aristath/filmcrew/internal/agent"

// Registry builds an agent registry from the configured agents.
func (c *Config) Registry() *agent.StaticRegistry {
	r := agent.NewStaticRegistry()
	for id, a := range c.Agents {
		name := a.Name
		if name == "" {
			name = id
		}
		r.Register(agent.Descriptor{
			ID:           id,
			Name:         name,
			Description:  a.Description,
			Priority:     a.Priority,
			Capabilities: a.Capabilities,
		})
	}
	return r
}
