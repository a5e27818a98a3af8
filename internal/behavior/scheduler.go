package behavior

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dynencounters/npc-engine/pkg/core"
)

var (
	ErrAlreadyRegistered = errors.New("construct already registered")
	ErrSchedulerClosed   = errors.New("scheduler closed")
)

// SchedulerConfig tunes a Scheduler. Zero values pick sane defaults.
type SchedulerConfig struct {
	TickInterval time.Duration
	// HeartbeatTimeout evicts constructs without a heartbeat for that long. 0 disables eviction.
	HeartbeatTimeout time.Duration
	// Workers bounds how many constructs tick at once. Defaults to GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
	Now     func() time.Time
}

type entity struct {
	id        core.ConstructID
	bc        *Context
	behaviors []Behavior

	// ownHeartbeat is set when a behavior records the heartbeat itself.
	ownHeartbeat bool

	running   atomic.Bool
	removed   atomic.Bool
	heartbeat atomic.Int64

	// owned by the running tick
	lastTick time.Time
}

// Scheduler owns every controlled construct and ticks their behaviors.
// Constructs tick concurrently on a bounded worker pool; the behaviors of one
// construct run sequentially in category order.
type Scheduler struct {
	cfg    SchedulerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	entities map[core.ConstructID]*entity
	statuses map[core.ConstructID]Status

	// Worker pool
	workers    int
	workerPool chan func()
	workerWG   sync.WaitGroup
	poolMu     sync.RWMutex
	inflight   sync.WaitGroup
	closed     atomic.Bool
	closeOnce  sync.Once

	// OTEL metrics
	entityGauge  metric.Int64ObservableGauge
	ticks        metric.Int64Counter
	failures     metric.Int64Counter
	evictions    metric.Int64Counter
	deferred     metric.Int64Counter
	tickDuration metric.Float64Histogram
}

// NewScheduler starts the worker pool. Call Close to stop it.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &Scheduler{
		cfg:        cfg,
		logger:     cfg.Logger,
		now:        cfg.Now,
		entities:   make(map[core.ConstructID]*entity),
		statuses:   make(map[core.ConstructID]Status),
		workers:    workers,
		workerPool: make(chan func(), workers*4),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	for i := 0; i < s.workers; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
	return s, nil
}

func (s *Scheduler) initMetrics() error {
	m := meter()
	var err error

	s.entityGauge, err = m.Int64ObservableGauge(
		"behavior.constructs",
		metric.WithDescription("Constructs currently registered"),
	)
	if err != nil {
		return fmt.Errorf("creating constructs gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(s.entityGauge, int64(s.Len()))
			return nil
		},
		s.entityGauge,
	)
	if err != nil {
		return fmt.Errorf("registering constructs callback: %w", err)
	}

	s.ticks, err = m.Int64Counter(
		"behavior.ticks",
		metric.WithDescription("Construct ticks completed"),
	)
	if err != nil {
		return fmt.Errorf("creating ticks counter: %w", err)
	}

	s.failures, err = m.Int64Counter(
		"behavior.failures",
		metric.WithDescription("Behavior ticks that returned an error or panicked"),
	)
	if err != nil {
		return fmt.Errorf("creating failures counter: %w", err)
	}

	s.evictions, err = m.Int64Counter(
		"behavior.evictions",
		metric.WithDescription("Constructs evicted for a stale heartbeat"),
	)
	if err != nil {
		return fmt.Errorf("creating evictions counter: %w", err)
	}

	s.deferred, err = m.Int64Counter(
		"behavior.ticks.deferred",
		metric.WithDescription("Construct ticks pushed to the next round by a saturated worker pool"),
	)
	if err != nil {
		return fmt.Errorf("creating deferred ticks counter: %w", err)
	}

	s.tickDuration, err = m.Float64Histogram(
		"behavior.tick.duration",
		metric.WithDescription("Duration of one construct tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration histogram: %w", err)
	}
	return nil
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()
	for fn := range s.workerPool {
		fn()
	}
}

// Register adds a construct. Behaviors are ordered by category, keeping the
// given order within a category, and initialized before the first tick.
func (s *Scheduler) Register(ctx context.Context, id core.ConstructID, bc *Context, behaviors []Behavior) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	if s.Contains(id) {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	bc.ConstructID = id

	sorted := slices.Clone(behaviors)
	slices.SortStableFunc(sorted, func(a, b Behavior) int {
		return cmp.Compare(a.Category(), b.Category())
	})
	for _, b := range sorted {
		if err := b.Initialize(ctx, bc); err != nil {
			return fmt.Errorf("initializing %s for construct %d: %w", b.Name(), id, err)
		}
	}

	e := &entity{id: id, bc: bc, behaviors: sorted, ownHeartbeat: ownsHeartbeat(sorted)}
	now := s.now()
	e.heartbeat.Store(now.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	s.entities[id] = e
	st := bc.status()
	st.LastHeartbeat = now
	s.statuses[id] = st

	s.logger.Info("construct registered", "construct", id, "prefab", bc.Prefab.Name, "behaviors", len(sorted))
	return nil
}

// Remove forgets a construct. It is safe to call repeatedly and from inside a
// tick; a tick already running completes but no new one is scheduled.
func (s *Scheduler) Remove(id core.ConstructID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.removed.Store(true)
	delete(s.entities, id)
	delete(s.statuses, id)
	s.logger.Info("construct removed", "construct", id)
	return true
}

// RecordHeartbeat marks a construct as healthy now.
func (s *Scheduler) RecordHeartbeat(id core.ConstructID) bool {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.heartbeat.Store(s.now().UnixNano())
	return true
}

func (s *Scheduler) Contains(id core.ConstructID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Snapshot returns the status of every construct as of its last completed tick, ordered by id.
func (s *Scheduler) Snapshot() []Status {
	s.mu.RLock()
	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Status) int { return cmp.Compare(a.ConstructID, b.ConstructID) })
	return out
}

// Tick evicts stale constructs and schedules one tick for every construct
// whose previous tick has finished. It does not wait for the ticks. When the
// worker pool is saturated the remaining constructs are left for the next Tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	if s.closed.Load() {
		return ErrSchedulerClosed
	}

	s.evictStale(s.now())

	s.mu.RLock()
	due := make([]*entity, 0, len(s.entities))
	for _, e := range s.entities {
		due = append(due, e)
	}
	s.mu.RUnlock()

	skipped := 0
	for _, e := range due {
		if e.removed.Load() {
			continue
		}
		if !e.running.CompareAndSwap(false, true) {
			continue // previous tick still in flight
		}
		s.inflight.Add(1)
		e := e
		job := func() {
			defer s.inflight.Done()
			defer e.running.Store(false)
			s.tickEntity(ctx, e)
		}

		select {
		case s.workerPool <- job:
		default:
			// Worker pool full; the construct waits for the next round.
			e.running.Store(false)
			s.inflight.Done()
			skipped++
		}
	}
	if skipped > 0 {
		s.deferred.Add(ctx, int64(skipped))
		s.logger.Debug("worker pool saturated, ticks deferred", "deferred", skipped)
	}
	return nil
}

// Wait blocks until every scheduled tick has completed.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Run ticks at the configured interval until ctx is cancelled, then waits
// for in-flight ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	defer s.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Close waits for in-flight ticks and stops the worker pool.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.poolMu.Lock()
		s.closed.Store(true)
		s.inflight.Wait()
		close(s.workerPool)
		s.poolMu.Unlock()
		s.workerWG.Wait()
	})
}

func (s *Scheduler) evictStale(now time.Time) {
	if s.cfg.HeartbeatTimeout <= 0 {
		return
	}
	cutoff := now.Add(-s.cfg.HeartbeatTimeout).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entities {
		if e.heartbeat.Load() >= cutoff {
			continue
		}
		e.removed.Store(true)
		delete(s.entities, id)
		delete(s.statuses, id)
		s.evictions.Add(context.Background(), 1)
		s.logger.Warn("construct evicted, heartbeat expired",
			"construct", id, "lastHeartbeat", time.Unix(0, e.heartbeat.Load()))
	}
}

func (s *Scheduler) tickEntity(ctx context.Context, e *entity) {
	start := s.now()
	if e.lastTick.IsZero() {
		e.bc.DeltaTime = s.cfg.TickInterval.Seconds()
	} else {
		e.bc.DeltaTime = start.Sub(e.lastTick).Seconds()
	}
	e.lastTick = start

	for _, b := range e.behaviors {
		if e.removed.Load() {
			break
		}
		if !b.IsActive() {
			continue
		}
		s.runBehavior(ctx, e, b)
	}

	if !e.ownHeartbeat && e.bc.IsAlive && !e.removed.Load() {
		e.heartbeat.Store(s.now().UnixNano())
	}

	st := e.bc.status()
	st.LastHeartbeat = time.Unix(0, e.heartbeat.Load())
	s.mu.Lock()
	if cur, ok := s.entities[e.id]; ok && cur == e {
		s.statuses[e.id] = st
	}
	s.mu.Unlock()

	s.ticks.Add(ctx, 1)
	s.tickDuration.Record(ctx, float64(s.now().Sub(start).Microseconds())/1000)
}

func (s *Scheduler) runBehavior(ctx context.Context, e *entity, b Behavior) {
	attrs := metric.WithAttributes(attribute.String("behavior", b.Name()))
	defer func() {
		if r := recover(); r != nil {
			s.failures.Add(ctx, 1, attrs)
			s.logger.Error("behavior panicked",
				"construct", e.id, "behavior", b.Name(), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := b.Tick(ctx, e.bc); err != nil {
		s.failures.Add(ctx, 1, attrs)
		s.logger.Warn("behavior tick failed", "construct", e.id, "behavior", b.Name(), "error", err)
	}
}
