// Package agent describes the agents tasks can be delegated to.
package agent

import (
	"sort"
	"sync"
)

// Descriptor is the static metadata of one agent.
type Descriptor struct {
	ID           string
	Name         string
	Description  string
	Priority     int      // Default priority of tasks targeting this agent
	Capabilities []string // Actions or skills the agent advertises
}

// Registry resolves agent IDs to descriptors.
type Registry interface {
	Get(agentID string) (Descriptor, bool)
	All() []Descriptor
}

// StaticRegistry is an in-memory Registry.
type StaticRegistry struct {
	mu     sync.RWMutex
	agents map[string]Descriptor
}

// NewStaticRegistry creates a registry holding the given descriptors.
// Later descriptors with the same ID replace earlier ones.
func NewStaticRegistry(descriptors ...Descriptor) *StaticRegistry {
	r := &StaticRegistry{agents: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// Register adds or replaces an agent.
func (r *StaticRegistry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Capabilities = append([]string(nil), d.Capabilities...)
	r.agents[d.ID] = d
}

// Get returns the descriptor for agentID.
func (r *StaticRegistry) Get(agentID string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[agentID]
	return d, ok
}

// All returns every agent, highest priority first, then by ID.
func (r *StaticRegistry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
