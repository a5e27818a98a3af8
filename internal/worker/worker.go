// Package worker persists combat telemetry off the behavior hot path. The
// recording decorators hand events to the dispatcher; the handlers registered
// here write them to the storage backend and Influx.
package worker

import (
	"log/slog"
	"time"

	"github.com/dynencounters/npc-engine/internal/influx"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/internal/storage"
)

// Dispatcher commands.
const (
	CmdShot        = ":SHOT:"
	CmdDestroyed   = ":DESTROYED:"
	CmdRadar       = ":RADAR:"
	CmdPerformance = ":PERFORMANCE:"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session *session.Context
	// Influx is optional.
	Influx *influx.Manager
	Logger *slog.Logger
}

// Manager manages worker goroutines
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// LastWriteDuration returns the duration of the last backend write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.Stats); ok {
		return p.LastWriteDuration()
	}
	return 0
}

// PendingWrites returns how many records the backend has not written yet.
func (m *Manager) PendingWrites() int {
	if p, ok := m.backend.(storage.Stats); ok {
		return p.PendingWrites()
	}
	return 0
}
