// Package storage defines the persistence boundary for engine telemetry:
// prefabs, shots, destructions, radar scans and performance samples.
package storage

import (
	"time"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s session.Session) error
	EndSession() error

	// Prefab catalog
	SavePrefab(d *prefab.Definition) error
	Prefabs() ([]prefab.Definition, error)

	// Event recording
	RecordShot(s *core.Shot) error
	RecordDestruction(e *core.DestructionEvent) error
	RecordRadarScan(s *core.RadarScan) error
	RecordPerformance(p *core.EnginePerformance) error
}

// Stats is implemented by backends that write asynchronously.
type Stats interface {
	PendingWrites() int
	LastWriteDuration() time.Duration
}

// Exporter is implemented by backends that produce a file when a session ends.
type Exporter interface {
	GetExportedFilePath() string
}
