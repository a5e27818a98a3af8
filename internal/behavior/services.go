package behavior

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dynencounters/npc-engine/internal/damage"
	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// DamageModel resolves damage profiles and weapon counts.
type DamageModel interface {
	ConstructDamage(ctx context.Context, id core.ConstructID) (*damage.ConstructDamageData, error)
	WeaponsEffectiveness(ctx context.Context, id core.ConstructID) (damage.Effectiveness, error)
}

// Registry is the part of the scheduler behaviors may act on.
type Registry interface {
	Remove(id core.ConstructID) bool
	RecordHeartbeat(id core.ConstructID) bool
}

// RadarRecorder receives the outcome of every full radar scan.
type RadarRecorder interface {
	RecordRadarScan(ctx context.Context, scan core.RadarScan)
}

// Services bundles the collaborators handed to behaviors at construction.
type Services struct {
	Constructs  services.ConstructService
	Elements    services.CachedElementService
	Scan        services.ScanService
	SafeZones   services.SafeZoneService
	Voxels      services.VoxelService
	Scene       services.SceneGraph
	Sectors     services.SectorPool
	Notifier    services.Notifier
	Shots       services.ShotChannel
	Destruction services.DestructionSink
	Damage      DamageModel
	Entities    Registry

	// Radar is optional.
	Radar  RadarRecorder
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// NewRand defaults to a PCG source seeded from the runtime.
	NewRand func() *rand.Rand
}

// Validate reports every missing required collaborator.
func (s *Services) Validate() error {
	var errs []error
	req := func(ok bool, name string) {
		if !ok {
			errs = append(errs, errors.New("missing "+name))
		}
	}
	req(s.Constructs != nil, "construct service")
	req(s.Elements != nil, "element service")
	req(s.Scan != nil, "scan service")
	req(s.SafeZones != nil, "safe zone service")
	req(s.Voxels != nil, "voxel service")
	req(s.Scene != nil, "scene graph")
	req(s.Sectors != nil, "sector pool")
	req(s.Notifier != nil, "notifier")
	req(s.Shots != nil, "shot channel")
	req(s.Destruction != nil, "destruction sink")
	req(s.Damage != nil, "damage model")
	req(s.Entities != nil, "entity registry")
	return errors.Join(errs...)
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) rand() *rand.Rand {
	if s.NewRand != nil {
		return s.NewRand()
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (s *Services) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Timings tunes the built-in behaviors.
type Timings struct {
	// AliveGrace is how long after spawn liveness checks are skipped.
	AliveGrace time.Duration
	// NoWeaponsWarnAfter delays the missing weapons warning after spawn.
	NoWeaponsWarnAfter time.Duration
	// AggressionGrace delays the empty damage profile warning after spawn.
	AggressionGrace time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	// ReselectInterval is the minimum time between two full target selections.
	ReselectInterval time.Duration
	ScanRadius       float64
	// CloseRange is the distance under which the target is notified.
	CloseRange float64
	// EngagementRange is the distance past which no shot is attempted.
	EngagementRange float64
	// PredictionFactor scales the tick delta into the movement prediction horizon.
	PredictionFactor float64
}

func DefaultTimings() Timings {
	return Timings{
		AliveGrace:         3 * time.Second,
		NoWeaponsWarnAfter: 5 * time.Second,
		AggressionGrace:    4 * time.Second,
		RetryAttempts:      3,
		RetryDelay:         500 * time.Millisecond,
		ReselectInterval:   time.Second,
		ScanRadius:         8 * core.OneSU,
		CloseRange:         2 * core.OneSU,
		EngagementRange:    2 * 8 * core.OneSU,
		PredictionFactor:   10,
	}
}

// TargetSelector picks one contact to attack. ok is false when none fits.
type TargetSelector interface {
	Name() string
	Select(ctx context.Context, contacts []core.ScanContact, decisionTime time.Duration, c *Context) (pick core.ScanContact, ok bool)
}

// MovementParams are the inputs of a movement strategy.
type MovementParams struct {
	Position           core.Vec3
	TargetPosition     core.Vec3
	TargetVelocity     core.Vec3
	TargetAcceleration core.Vec3
	// Distance is the preferred stand-off distance from the target.
	Distance          float64
	PredictionSeconds float64
	DeltaTime         float64
}

// MovementStrategy decides where to fly relative to the target.
type MovementStrategy interface {
	Name() string
	MovePosition(p MovementParams) core.Vec3
}
