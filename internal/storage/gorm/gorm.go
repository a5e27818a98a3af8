// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dynencounters/npc-engine/internal/database"
	"github.com/dynencounters/npc-engine/internal/model"
	"github.com/dynencounters/npc-engine/internal/model/convert"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/queue"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
)

var (
	ErrNoSession  = errors.New("no active session")
	ErrNoDatabase = errors.New("database not connected")
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	Manager *database.Manager
	// Connect opens Manager's connection during Init. Nil means Manager is
	// already connected; a Manager without a DB runs queue-only.
	Connect       func() error
	FlushInterval time.Duration
	// QueueLimit bounds every write queue. 0 is unbounded.
	QueueLimit int
	Logger     zerolog.Logger
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Shots        *queue.Queue[model.ShotEvent]
	Destructions *queue.Queue[model.DestructionEvent]
	RadarScans   *queue.Queue[model.RadarScanEvent]
	Performance  *queue.Queue[model.EnginePerformance]
}

func newQueues(limit int) *queues {
	return &queues{
		Shots:        queue.NewBounded[model.ShotEvent](limit),
		Destructions: queue.NewBounded[model.DestructionEvent](limit),
		RadarScans:   queue.NewBounded[model.RadarScanEvent](limit),
		Performance:  queue.NewBounded[model.EnginePerformance](limit),
	}
}

func (q *queues) Len() int {
	return q.Shots.Len() + q.Destructions.Len() + q.RadarScans.Len() + q.Performance.Len()
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       zerolog.Logger
	queues    *queues
	sessionID atomic.Pointer[uuid.UUID]

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex

	lastDBWriteDuration atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps: deps,
		log:  deps.Logger.With().Str("component", "storage").Logger(),
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues(b.deps.QueueLimit)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.Connect != nil {
		if err := b.deps.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}

	if b.db() == nil {
		b.log.Warn().Msg("No database connection, records stay queued")
		close(b.done)
		return nil
	}

	if err := b.deps.Manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	go b.writeLoop()
	return nil
}

func (b *Backend) db() *gorm.DB {
	if b.deps.Manager == nil {
		return nil
	}
	return b.deps.Manager.DB
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	return nil
}

// StartSession records the session row and stamps every following record with it.
func (b *Backend) StartSession(s session.Session) error {
	if b.db() != nil {
		if err := b.deps.Manager.RecordSession(s); err != nil {
			return err
		}
	}
	id := s.ID
	b.sessionID.Store(&id)
	return nil
}

// EndSession writes everything still queued.
func (b *Backend) EndSession() error {
	if b.db() == nil {
		return nil
	}
	b.Flush()
	return nil
}

func (b *Backend) currentSession() (uuid.UUID, error) {
	id := b.sessionID.Load()
	if id == nil {
		return uuid.Nil, ErrNoSession
	}
	return *id, nil
}

// SavePrefab upserts a definition by name.
func (b *Backend) SavePrefab(d *prefab.Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	db := b.db()
	if db == nil {
		return ErrNoDatabase
	}
	row, err := convert.PrefabToModel(*d)
	if err != nil {
		return err
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"definition", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save prefab %q: %w", d.Name, err)
	}
	return nil
}

// Prefabs returns every stored definition ordered by name.
func (b *Backend) Prefabs() ([]prefab.Definition, error) {
	db := b.db()
	if db == nil {
		return nil, ErrNoDatabase
	}
	var rows []model.Prefab
	if err := db.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load prefabs: %w", err)
	}
	out := make([]prefab.Definition, 0, len(rows))
	for _, r := range rows {
		d, err := convert.ModelToPrefab(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RecordShot converts a shot to GORM and pushes to the write queue.
func (b *Backend) RecordShot(s *core.Shot) error {
	sid, err := b.currentSession()
	if err != nil {
		return err
	}
	b.warnDropped("shots", b.queues.Shots.Push(convert.CoreToShotEvent(sid, *s)))
	return nil
}

func (b *Backend) RecordDestruction(e *core.DestructionEvent) error {
	sid, err := b.currentSession()
	if err != nil {
		return err
	}
	b.warnDropped("destructions", b.queues.Destructions.Push(convert.CoreToDestructionEvent(sid, *e)))
	return nil
}

func (b *Backend) RecordRadarScan(s *core.RadarScan) error {
	sid, err := b.currentSession()
	if err != nil {
		return err
	}
	b.warnDropped("radar scans", b.queues.RadarScans.Push(convert.CoreToRadarScanEvent(sid, *s)))
	return nil
}

func (b *Backend) RecordPerformance(p *core.EnginePerformance) error {
	sid, err := b.currentSession()
	if err != nil {
		return err
	}
	b.warnDropped("performance", b.queues.Performance.Push(convert.CoreToEnginePerformance(sid, *p)))
	return nil
}

func (b *Backend) warnDropped(name string, n int) {
	if n > 0 {
		b.log.Warn().Str("queue", name).Int("dropped", n).Msg("Write queue full, oldest records dropped")
	}
}

// PendingWrites returns the number of records waiting for the next flush.
func (b *Backend) PendingWrites() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.Len()
}

// LastWriteDuration returns how long the last flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastDBWriteDuration.Load())
}

// Flush writes every queue to the database. Failed batches are requeued.
func (b *Backend) Flush() {
	db := b.db()
	if db == nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	writeQueue(db, b.queues.Shots, "shots", b.log)
	writeQueue(db, b.queues.Destructions, "destructions", b.log)
	writeQueue(db, b.queues.RadarScans, "radar scans", b.log)
	writeQueue(db, b.queues.Performance, "performance", b.log)
	b.lastDBWriteDuration.Store(int64(time.Since(start)))
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error().Err(err).Str("queue", name).Int("count", len(items)).Msg("Error writing records, requeued")
		q.Push(items...)
	}
}

// writeLoop periodically drains the queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
