// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic dump.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dynencounters/npc-engine/internal/database"
	gormstorage "github.com/dynencounters/npc-engine/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval  time.Duration
	DumpPath      string // Path for periodic VACUUM INTO dumps
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	mgr       *database.Manager
	cfg       Config
	log       zerolog.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a new SQLite storage backend. The database is opened by Init.
func New(cfg Config, log zerolog.Logger) *Backend {
	mgr := database.NewManager(log)
	mgr.SqliteFilePath = cfg.DumpPath

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Manager:       mgr,
			Connect:       func() error { return mgr.ConnectSqlite("") },
			FlushInterval: cfg.FlushInterval,
			Logger:        log,
		}),
		mgr:      mgr,
		cfg:      cfg,
		log:      log.With().Str("component", "sqlite").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, flushes the GORM backend and writes a final dump.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if err = b.Backend.Close(); err != nil {
			return
		}
		if b.mgr.DB != nil && b.cfg.DumpPath != "" {
			if derr := b.Dump(); derr != nil {
				err = derr
			}
		}
		if cerr := b.mgr.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// Dump flushes queued records and snapshots the database to DumpPath.
func (b *Backend) Dump() error {
	b.Flush()
	if err := b.mgr.DumpMemoryToDisk(); err != nil {
		return fmt.Errorf("error dumping to disk: %w", err)
	}
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Periodic dump failed")
			} else {
				b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
