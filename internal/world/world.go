// Package world is an in-memory game world implementing every collaborator
// the behavior engine consumes. It backs the demo command and the tests.
package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// ErrUnknownConstruct is returned for ids the world does not hold.
var ErrUnknownConstruct = errors.New("unknown construct")

// Operation names accepted by Fail and Calls.
const (
	OpInfo              = "info"
	OpVelocities        = "velocities"
	OpExists            = "exists"
	OpIsInSafeZone      = "is_in_safe_zone"
	OpIsBeingControlled = "is_being_controlled"
	OpTakeOverPiloting  = "take_over_piloting"
	OpActivateShields   = "activate_shields"
	OpCoreUnit          = "core_unit"
	OpElement           = "element"
	OpWeaponUnits       = "weapon_units"
	OpEnginePower       = "engine_power"
	OpScan              = "scan"
	OpSafeZones         = "safe_zones"
	OpQueryRandomPoint  = "query_random_point"
	OpTriggerCache      = "trigger_cache"
	OpResolveRelative   = "resolve_relative"
	OpExtendExpiration  = "extend_expiration"
	OpIdentification    = "identification"
	OpAttackWarning     = "attack_warning"
	OpFire              = "fire"
	OpDestroyed         = "destroyed"
)

// Construct is the world-side state of one construct.
type Construct struct {
	Info        core.ConstructInfo
	Velocities  core.Velocities
	CoreUnit    core.ElementID
	Elements    map[core.ElementID]core.ElementInfo
	WeaponUnits []core.ElementID
	EnginePower float64
	Controlled  bool
	Shields     bool
	// HasVoxels makes random point queries on this construct succeed.
	HasVoxels bool
}

// Notification is one message sent to a targeted construct.
type Notification struct {
	Kind   string
	Target core.ConstructID
	Data   core.TargetingData
}

// World holds constructs, safe zones and everything the engine sent to the host.
type World struct {
	mu         sync.RWMutex
	constructs map[core.ConstructID]*Construct
	zones      []core.SafeZone
	sectors    map[core.Vec3]time.Time

	shots         []core.Shot
	destructions  []core.DestructionEvent
	notifications []Notification
	cacheTriggers map[core.ConstructID]int

	faults map[string]error
	calls  map[string]int

	rng *rand.Rand
	now func() time.Time
}

func New(seed uint64) *World {
	return &World{
		constructs:    make(map[core.ConstructID]*Construct),
		sectors:       make(map[core.Vec3]time.Time),
		cacheTriggers: make(map[core.ConstructID]int),
		faults:        make(map[string]error),
		calls:         make(map[string]int),
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:           time.Now,
	}
}

var (
	_ services.ConstructService = (*World)(nil)
	_ services.ElementService   = (*World)(nil)
	_ services.ScanService      = (*World)(nil)
	_ services.SafeZoneService  = (*World)(nil)
	_ services.VoxelService     = (*World)(nil)
	_ services.SceneGraph       = (*World)(nil)
	_ services.SectorPool       = (*World)(nil)
	_ services.Notifier         = (*World)(nil)
	_ services.ShotChannel      = (*World)(nil)
	_ services.DestructionSink  = (*World)(nil)
)

// SetClock replaces the world clock.
func (w *World) SetClock(now func() time.Time) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
}

// Add stores c, replacing any construct with the same id.
func (w *World) Add(c Construct) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c.Elements == nil {
		c.Elements = make(map[core.ElementID]core.ElementInfo)
	}
	cp := c
	w.constructs[c.Info.ID] = &cp
}

// Delete removes a construct from the world, as if it despawned.
func (w *World) Delete(id core.ConstructID) {
	w.mu.Lock()
	delete(w.constructs, id)
	w.mu.Unlock()
}

// Update runs fn on a construct under the world lock.
func (w *World) Update(id core.ConstructID, fn func(*Construct)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.constructs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownConstruct, id)
	}
	fn(c)
	return nil
}

// Construct returns a copy of a construct's state.
func (w *World) Construct(id core.ConstructID) (Construct, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.constructs[id]
	if !ok {
		return Construct{}, false
	}
	return *c, true
}

func (w *World) AddSafeZone(z core.SafeZone) {
	w.mu.Lock()
	w.zones = append(w.zones, z)
	w.mu.Unlock()
}

// Fail makes every call of op return err. A nil err clears the fault.
func (w *World) Fail(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		delete(w.faults, op)
		return
	}
	w.faults[op] = err
}

// Calls returns how many times op was called.
func (w *World) Calls(op string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.calls[op]
}

// enter counts a call and returns the injected fault. Callers hold w.mu.
func (w *World) enter(op string) error {
	w.calls[op]++
	return w.faults[op]
}

func (w *World) Shots() []core.Shot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.shots)
}

func (w *World) Destructions() []core.DestructionEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.destructions)
}

func (w *World) Notifications() []Notification {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.notifications)
}

// SectorExpiration returns when a sector expires.
func (w *World) SectorExpiration(sector core.Vec3) (time.Time, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.sectors[sector]
	return t, ok
}

func (w *World) CacheTriggers(id core.ConstructID) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cacheTriggers[id]
}

// Step moves every construct along its linear velocity for dt seconds.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.constructs {
		c.Info.Position = c.Info.Position.Add(c.Velocities.Linear.Mul(dt))
		c.Info.LinearVelocity = c.Velocities.Linear
		c.Info.AngularVelocity = c.Velocities.Angular
	}
}

func (w *World) get(id core.ConstructID) (*Construct, error) {
	c, ok := w.constructs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownConstruct, id)
	}
	return c, nil
}

func (w *World) Info(_ context.Context, id core.ConstructID) (core.ConstructInfo, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpInfo); err != nil {
		return core.ConstructInfo{}, false, err
	}
	c, ok := w.constructs[id]
	if !ok {
		return core.ConstructInfo{}, false, nil
	}
	info := c.Info
	info.LinearVelocity = c.Velocities.Linear
	info.AngularVelocity = c.Velocities.Angular
	return info, true, nil
}

func (w *World) Velocities(_ context.Context, id core.ConstructID) (core.Velocities, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpVelocities); err != nil {
		return core.Velocities{}, err
	}
	c, err := w.get(id)
	if err != nil {
		return core.Velocities{}, err
	}
	return c.Velocities, nil
}

func (w *World) Exists(_ context.Context, id core.ConstructID) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpExists); err != nil {
		return false, err
	}
	_, ok := w.constructs[id]
	return ok, nil
}

func (w *World) IsInSafeZone(_ context.Context, id core.ConstructID) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpIsInSafeZone); err != nil {
		return false, err
	}
	c, err := w.get(id)
	if err != nil {
		return false, err
	}
	return core.InAnySafeZone(w.zones, c.Info.Position), nil
}

func (w *World) IsBeingControlled(_ context.Context, id core.ConstructID) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpIsBeingControlled); err != nil {
		return false, err
	}
	c, err := w.get(id)
	if err != nil {
		return false, err
	}
	return c.Controlled, nil
}

func (w *World) TakeOverPiloting(_ context.Context, id core.ConstructID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpTakeOverPiloting); err != nil {
		return err
	}
	c, err := w.get(id)
	if err != nil {
		return err
	}
	c.Controlled = true
	return nil
}

func (w *World) ActivateShields(_ context.Context, id core.ConstructID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpActivateShields); err != nil {
		return err
	}
	c, err := w.get(id)
	if err != nil {
		return err
	}
	c.Shields = true
	return nil
}
