// Package memory keeps session telemetry in memory and exports it as JSON
// when the session ends.
package memory

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
)

var ErrNoSession = errors.New("no session to end")

// ConstructRecord groups everything recorded about one controlled construct
type ConstructRecord struct {
	ConstructID core.ConstructID
	Shots       []core.Shot
	RadarScans  []core.RadarScan
	Destruction *core.DestructionEvent
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *session.Session

	prefabs     map[string]prefab.Definition // keyed by name, survives sessions
	constructs  map[core.ConstructID]*ConstructRecord
	performance []core.EnginePerformance

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		prefabs:    make(map[string]prefab.Definition),
		constructs: make(map[core.ConstructID]*ConstructRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session. The prefab catalog is kept.
func (b *Backend) StartSession(s session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = &s
	b.constructs = make(map[core.ConstructID]*ConstructRecord)
	b.performance = nil
	b.lastExportPath = ""
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	return b.exportJSON()
}

// SavePrefab inserts or replaces a definition by name.
func (b *Backend) SavePrefab(d *prefab.Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefabs[d.Name] = *d
	return nil
}

// Prefabs returns every saved definition ordered by name.
func (b *Backend) Prefabs() ([]prefab.Definition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]prefab.Definition, 0, len(b.prefabs))
	for _, d := range b.prefabs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b prefab.Definition) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// construct returns the record for id, creating it. Callers hold the write lock.
func (b *Backend) construct(id core.ConstructID) *ConstructRecord {
	r, ok := b.constructs[id]
	if !ok {
		r = &ConstructRecord{ConstructID: id}
		b.constructs[id] = r
	}
	return r
}

func (b *Backend) RecordShot(s *core.Shot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.construct(s.OriginID)
	r.Shots = append(r.Shots, *s)
	return nil
}

// RecordDestruction keeps the first destruction of a construct; later ones are ignored.
func (b *Backend) RecordDestruction(e *core.DestructionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.construct(e.ConstructID)
	if r.Destruction == nil {
		ev := *e
		r.Destruction = &ev
	}
	return nil
}

func (b *Backend) RecordRadarScan(s *core.RadarScan) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.construct(s.ConstructID)
	r.RadarScans = append(r.RadarScans, *s)
	return nil
}

func (b *Backend) RecordPerformance(p *core.EnginePerformance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performance = append(b.performance, *p)
	return nil
}

// GetConstructRecord returns a copy of the record for id.
func (b *Backend) GetConstructRecord(id core.ConstructID) (ConstructRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.constructs[id]
	if !ok {
		return ConstructRecord{}, false
	}
	return *r, true
}

// GetExportedFilePath returns the file written by the last EndSession.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
