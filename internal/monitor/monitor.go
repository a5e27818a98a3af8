// Package monitor samples engine health: it keeps a JSON status file current
// and records an EnginePerformance sample on every interval.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/internal/channel"
	"github.com/dynencounters/npc-engine/internal/dispatcher"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
)

const StatusFileName = "status.json"

// Entities is the part of the scheduler the monitor reads.
type Entities interface {
	Snapshot() []behavior.Status
}

// WriteStats reports the storage write backlog.
type WriteStats interface {
	PendingWrites() int
	LastWriteDuration() time.Duration
}

// Events is the part of the dispatcher the monitor uses.
type Events interface {
	Dispatch(e dispatcher.Event) (any, error)
	QueueStats() map[string]channel.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger    *slog.Logger
	Session   *session.Context
	Entities  Entities
	Writes    WriteStats
	Events    Events
	StatusDir string
	Interval  time.Duration
	// PerformanceCommand is the dispatcher command samples are sent with.
	PerformanceCommand string
}

// Status is the content of the status file.
type Status struct {
	Session           session.Session          `json:"session"`
	Time              time.Time                `json:"time"`
	Constructs        int                      `json:"constructs"`
	Alive             int                      `json:"alive"`
	Engaging          int                      `json:"engaging"`
	PendingWrites     int                      `json:"pendingWrites"`
	LastWriteDuration float32                  `json:"lastWriteDurationMs"`
	EventQueues       map[string]channel.Stats `json:"eventQueues"`
	Entities          []behavior.Status        `json:"entities"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status and the matching performance sample.
func (s *Service) GetProgramStatus(now time.Time) (Status, core.EnginePerformance) {
	entities := s.deps.Entities.Snapshot()
	st := Status{
		Session:    s.deps.Session.Get(),
		Time:       now,
		Constructs: len(entities),
		Entities:   entities,
	}
	for _, e := range entities {
		if e.IsAlive {
			st.Alive++
		}
		if e.TargetID != nil {
			st.Engaging++
		}
	}

	var lastWrite time.Duration
	if s.deps.Writes != nil {
		st.PendingWrites = s.deps.Writes.PendingWrites()
		lastWrite = s.deps.Writes.LastWriteDuration()
		st.LastWriteDuration = float32(lastWrite.Microseconds()) / 1000
	}
	if s.deps.Events != nil {
		st.EventQueues = s.deps.Events.QueueStats()
	}

	perf := core.EnginePerformance{
		Time:              now,
		Constructs:        st.Constructs,
		PendingWrites:     st.PendingWrites,
		LastWriteDuration: lastWrite,
	}
	return st, perf
}

// WriteStatus replaces the status file with st.
func (s *Service) WriteStatus(st Status) error {
	if s.deps.StatusDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	path := filepath.Join(s.deps.StatusDir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Sample writes the status file and records one performance sample.
func (s *Service) Sample(now time.Time) {
	st, perf := s.GetProgramStatus(now)

	if err := s.WriteStatus(st); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}

	if s.deps.Events != nil && s.deps.PerformanceCommand != "" {
		_, err := s.deps.Events.Dispatch(dispatcher.Event{
			Command:   s.deps.PerformanceCommand,
			Payload:   perf,
			Timestamp: now,
		})
		if err != nil {
			s.deps.Logger.Warn("Error recording performance sample", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.StatusDir != "" {
		if err := os.MkdirAll(s.deps.StatusDir, 0o755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("creating status dir: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.Sample(now)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
