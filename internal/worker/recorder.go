package worker

import (
	"context"
	"log/slog"

	"github.com/dynencounters/npc-engine/internal/dispatcher"
	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// EventDispatcher is the part of the dispatcher the recorders use.
type EventDispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

func dispatch(d EventDispatcher, logger *slog.Logger, cmd string, p any) {
	if _, err := d.Dispatch(dispatcher.Event{Command: cmd, Payload: p}); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("telemetry event not recorded", "command", cmd, "error", err)
	}
}

// RecordingShotChannel records every shot the host accepted.
type RecordingShotChannel struct {
	Next       services.ShotChannel
	Dispatcher EventDispatcher
	Logger     *slog.Logger
}

func (r *RecordingShotChannel) Fire(ctx context.Context, shot core.Shot) error {
	if err := r.Next.Fire(ctx, shot); err != nil {
		return err
	}
	dispatch(r.Dispatcher, r.Logger, CmdShot, shot)
	return nil
}

// RecordingDestructionSink records destructions before passing them on.
// Next may be nil when nothing else listens.
type RecordingDestructionSink struct {
	Next       services.DestructionSink
	Dispatcher EventDispatcher
	Logger     *slog.Logger
}

func (r *RecordingDestructionSink) ConstructDestroyed(ctx context.Context, e core.DestructionEvent) error {
	dispatch(r.Dispatcher, r.Logger, CmdDestroyed, e)
	if r.Next == nil {
		return nil
	}
	return r.Next.ConstructDestroyed(ctx, e)
}

// RadarRecorder forwards radar scan summaries to the dispatcher.
type RadarRecorder struct {
	Dispatcher EventDispatcher
	Logger     *slog.Logger
}

func (r *RadarRecorder) RecordRadarScan(_ context.Context, scan core.RadarScan) {
	dispatch(r.Dispatcher, r.Logger, CmdRadar, scan)
}
