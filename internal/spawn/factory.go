// Package spawn turns prefab definitions into registered, running NPCs.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/internal/behavior/strategy"
	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

var ErrUnknownPrefab = errors.New("unknown prefab")

// Registrar accepts spawned constructs. *behavior.Scheduler implements it.
type Registrar interface {
	Register(ctx context.Context, id core.ConstructID, bc *behavior.Context, behaviors []behavior.Behavior) error
}

// Factory builds the behaviors of an NPC from its prefab.
type Factory struct {
	svc     *behavior.Services
	timings behavior.Timings
	prefabs map[string]prefab.Definition
}

// NewFactory validates svc and indexes prefabs by name.
func NewFactory(svc *behavior.Services, t behavior.Timings, prefabs []prefab.Definition) (*Factory, error) {
	if err := svc.Validate(); err != nil {
		return nil, fmt.Errorf("behavior services: %w", err)
	}
	f := &Factory{svc: svc, timings: t, prefabs: make(map[string]prefab.Definition, len(prefabs))}
	for _, p := range prefabs {
		f.prefabs[p.Name] = p.WithDefaults()
	}
	return f, nil
}

// TimingsFromConfig overlays the configured timings on the defaults. Zero values keep the default.
func TimingsFromConfig(cfg config.TimingsConfig) behavior.Timings {
	t := behavior.DefaultTimings()
	setDuration := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	setDuration(&t.AliveGrace, cfg.AliveGrace)
	setDuration(&t.NoWeaponsWarnAfter, cfg.NoWeaponsWarnAfter)
	setDuration(&t.AggressionGrace, cfg.AggressionGrace)
	setDuration(&t.RetryDelay, cfg.RetryDelay)
	setDuration(&t.ReselectInterval, cfg.ReselectInterval)
	if cfg.RetryAttempts > 0 {
		t.RetryAttempts = cfg.RetryAttempts
	}
	return t
}

// Prefab returns the definition registered under name.
func (f *Factory) Prefab(name string) (prefab.Definition, bool) {
	p, ok := f.prefabs[name]
	return p, ok
}

// Behaviors builds the behavior list of def in definition order.
func (f *Factory) Behaviors(def prefab.Definition) ([]behavior.Behavior, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	out := make([]behavior.Behavior, 0, len(def.Behaviors))
	for _, name := range def.Behaviors {
		switch name {
		case prefab.BehaviorAlive:
			out = append(out, behavior.NewAliveCheck(f.svc, f.timings))
		case prefab.BehaviorSelectTarget:
			selector, err := strategy.TargetSelectorByName(def.TargetSelector, f.rand(), f.now)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", prefab.ErrInvalidPrefab, def.Name, err)
			}
			movement, err := strategy.MovementByName(def.Movement)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", prefab.ErrInvalidPrefab, def.Name, err)
			}
			out = append(out, behavior.NewSelectTarget(f.svc, f.timings, selector, movement))
		case prefab.BehaviorAggressive:
			out = append(out, behavior.NewAggressive(f.svc, f.timings))
		}
	}
	return out, nil
}

// Placement is where an NPC starts. Sector is the encounter sector it guards, if any.
type Placement struct {
	Position core.Vec3
	Sector   *core.Vec3
}

// Spawn registers construct id as an NPC of the named prefab.
func (f *Factory) Spawn(ctx context.Context, reg Registrar, id core.ConstructID, prefabName string, at Placement) error {
	def, ok := f.prefabs[prefabName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPrefab, prefabName)
	}
	behaviors, err := f.Behaviors(def)
	if err != nil {
		return err
	}

	bc := behavior.NewContext(id, def, f.now())
	bc.Position = behavior.Vec(at.Position)
	bc.StartPosition = behavior.Vec(at.Position)
	if at.Sector != nil {
		bc.Sector = behavior.Vec(*at.Sector)
	}
	return reg.Register(ctx, id, bc, behaviors)
}

func (f *Factory) now() time.Time {
	if f.svc.Now != nil {
		return f.svc.Now()
	}
	return time.Now()
}

func (f *Factory) rand() *rand.Rand {
	if f.svc.NewRand != nil {
		return f.svc.NewRand()
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
