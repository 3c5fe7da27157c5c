// Package backend runs agent CLIs as subprocesses, one process per request.
package backend

import (
	"context"
)

// Backend sends requests to one agent's CLI.
type Backend interface {
	Send(ctx context.Context, req Request) (Reply, error)
	Close() error
	SessionID() string
}

// Factory creates the Backend for an agent. New is the default.
type Factory func(cfg Config, pm *ProcessManager) (Backend, error)

// New creates a backend for the configured command.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	return NewCommandAdapter(cfg, pm)
}
