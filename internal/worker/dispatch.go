package worker

import (
	"fmt"

	"github.com/dynencounters/npc-engine/internal/dispatcher"
	"github.com/dynencounters/npc-engine/internal/influx"
	"github.com/dynencounters/npc-engine/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Combat events - buffered
	d.Register(CmdShot, m.handleShot, dispatcher.Buffered(5000), dispatcher.Logged())
	d.Register(CmdRadar, m.handleRadarScan, dispatcher.Buffered(5000), dispatcher.Logged())

	// Destructions are rare and must not be dropped
	d.Register(CmdDestroyed, m.handleDestruction, dispatcher.Buffered(500), dispatcher.Blocking(), dispatcher.Logged())

	d.Register(CmdPerformance, m.handlePerformance, dispatcher.Buffered(100), dispatcher.Logged())
}

func payload[T any](e dispatcher.Event) (T, error) {
	switch v := e.Payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s: unexpected payload %T", e.Command, e.Payload)
}

func (m *Manager) writeInflux(bucket string, point *influxdb2_write.Point) {
	if m.deps.Influx == nil {
		return
	}
	if err := m.deps.Influx.WritePoint(bucket, point); err != nil {
		m.deps.Logger.Warn("influx write failed", "bucket", bucket, "error", err)
	}
}

func (m *Manager) handleShot(e dispatcher.Event) (any, error) {
	shot, err := payload[core.Shot](e)
	if err != nil {
		return nil, err
	}
	if shot.FiredAt.IsZero() {
		shot.FiredAt = e.Timestamp
	}

	m.writeInflux(influx.BucketCombat, influx.ShotPoint(m.deps.Session.Get().ID, shot))
	if err := m.backend.RecordShot(&shot); err != nil {
		return nil, fmt.Errorf("failed to record shot: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleDestruction(e dispatcher.Event) (any, error) {
	ev, err := payload[core.DestructionEvent](e)
	if err != nil {
		return nil, err
	}
	if ev.DestroyedAt.IsZero() {
		ev.DestroyedAt = e.Timestamp
	}

	m.writeInflux(influx.BucketCombat, influx.DestructionPoint(m.deps.Session.Get().ID, ev))
	if err := m.backend.RecordDestruction(&ev); err != nil {
		return nil, fmt.Errorf("failed to record destruction: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRadarScan(e dispatcher.Event) (any, error) {
	scan, err := payload[core.RadarScan](e)
	if err != nil {
		return nil, err
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = e.Timestamp
	}

	m.writeInflux(influx.BucketCombat, influx.RadarScanPoint(m.deps.Session.Get().ID, scan))
	if err := m.backend.RecordRadarScan(&scan); err != nil {
		return nil, fmt.Errorf("failed to record radar scan: %w", err)
	}
	return nil, nil
}

func (m *Manager) handlePerformance(e dispatcher.Event) (any, error) {
	perf, err := payload[core.EnginePerformance](e)
	if err != nil {
		return nil, err
	}
	if perf.Time.IsZero() {
		perf.Time = e.Timestamp
	}

	m.writeInflux(influx.BucketPerformance, influx.PerformancePoint(m.deps.Session.Get().ID, perf))
	if err := m.backend.RecordPerformance(&perf); err != nil {
		return nil, fmt.Errorf("failed to record performance: %w", err)
	}
	return nil, nil
}
