package behavior

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/cache"
	"github.com/dynencounters/npc-engine/internal/damage"
	"github.com/dynencounters/npc-engine/internal/gamedata"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/world"
	"github.com/dynencounters/npc-engine/pkg/core"
)

const testBank = `
definitions:
  - id: 1
    name: Ammo
  - id: 2
    name: AmmoCannonSmallKineticAdvancedBlue
    parent: Ammo
    ammo: { weapon_type: cannon, scale: s, level: 2 }
  - id: 3
    name: AmmoCannonSmallKineticUncommonRed
    parent: Ammo
    ammo: { weapon_type: cannon, scale: s, level: 1 }
  - id: 100
    name: WeaponCannonSmallBlue
    display_name: Blue Cannon S
    weapon:
      weapon_type: cannon
      scale: s
      base_damage: 50
      base_accuracy: 0.8
      base_optimal_distance: 1000
      falloff_distance: 500
      base_cycle_time: 2
`

const (
	npcID    core.ConstructID = 1
	targetID core.ConstructID = 2
	npcCore  core.ElementID   = 10
	npcGun   core.ElementID   = 11
	tgtCore  core.ElementID   = 20
	pilotID  core.PlayerID    = 77
)

// targetPos lies inside the optimal range of the test weapon.
var targetPos = core.Vec3{0, 0, 800}

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeRegistry struct {
	mu         sync.Mutex
	removed    []core.ConstructID
	heartbeats int
}

func (r *fakeRegistry) Remove(id core.ConstructID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	return true
}

func (r *fakeRegistry) RecordHeartbeat(core.ConstructID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	return true
}

func (r *fakeRegistry) Heartbeats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeats
}

func (r *fakeRegistry) Removed() []core.ConstructID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ConstructID(nil), r.removed...)
}

type fakeRadar struct {
	mu    sync.Mutex
	scans []core.RadarScan
}

func (r *fakeRadar) RecordRadarScan(_ context.Context, s core.RadarScan) {
	r.mu.Lock()
	r.scans = append(r.scans, s)
	r.mu.Unlock()
}

type harness struct {
	world    *world.World
	clock    *testClock
	registry *fakeRegistry
	radar    *fakeRadar
	svc      *Services
	timings  Timings
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrefab() prefab.Definition {
	return prefab.Definition{
		Name:           "pirate",
		OwnerID:        4,
		AmmoTier:       2,
		AmmoVariant:    "blue",
		MaxWeaponCount: 4,
		TargetDistance: 5000,
		Behaviors:      []string{prefab.BehaviorAlive, prefab.BehaviorSelectTarget, prefab.BehaviorAggressive},
	}.WithDefaults()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bank, err := gamedata.ParseYAML([]byte(testBank))
	require.NoError(t, err)

	w := world.New(42)
	clock := &testClock{t: start}
	w.SetClock(clock.Now)

	w.Add(world.Construct{
		Info:     core.ConstructInfo{ID: npcID, Name: "Pirate", Size: 64},
		CoreUnit: npcCore,
		Elements: map[core.ElementID]core.ElementInfo{
			npcCore: {ID: npcCore, HitPoints: 1000, MaxHitPoints: 1000},
			npcGun:  {ID: npcGun, TypeID: 100, HitPoints: 100, MaxHitPoints: 100},
		},
		WeaponUnits: []core.ElementID{npcGun},
		EnginePower: 5,
	})
	pilot := pilotID
	w.Add(world.Construct{
		Info:       core.ConstructInfo{ID: targetID, Name: "Hauler", Position: targetPos, Size: 40, Pilot: &pilot},
		Velocities: core.Velocities{Linear: core.Vec3{10, 0, 0}},
		CoreUnit:   tgtCore,
		Elements: map[core.ElementID]core.ElementInfo{
			tgtCore: {ID: tgtCore, HitPoints: 500, MaxHitPoints: 500},
		},
	})

	elements := cache.NewCachedElements(w, 0, time.Minute)
	h := &harness{
		world:    w,
		clock:    clock,
		registry: &fakeRegistry{},
		radar:    &fakeRadar{},
		timings:  DefaultTimings(),
	}
	h.timings.RetryDelay = time.Millisecond
	h.svc = &Services{
		Constructs:  w,
		Elements:    elements,
		Scan:        w,
		SafeZones:   w,
		Voxels:      w,
		Scene:       w,
		Sectors:     w,
		Notifier:    w,
		Shots:       w,
		Destruction: w,
		Damage:      damage.NewService(elements, bank, damage.NewIndex(bank), discardLogger()),
		Entities:    h.registry,
		Radar:       h.radar,
		Logger:      discardLogger(),
		Now:         clock.Now,
		NewRand:     func() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) },
	}
	require.NoError(t, h.svc.Validate())
	return h
}

// newContext returns an initialized context for the NPC, past every grace period.
func (h *harness) newContext(t *testing.T, behaviors ...Behavior) *Context {
	t.Helper()
	c := NewContext(npcID, testPrefab(), start)
	c.Position = Vec(core.Vec3{})
	c.DeltaTime = 0.5
	for _, b := range behaviors {
		require.NoError(t, b.Initialize(context.Background(), c))
	}
	h.clock.Advance(10 * time.Second)
	return c
}

// armed fills the damage profile the way the liveness behavior would.
func (h *harness) armed(t *testing.T, c *Context) {
	t.Helper()
	data, err := h.svc.Damage.ConstructDamage(context.Background(), npcID)
	require.NoError(t, err)
	require.True(t, data.HasWeapons())
	c.DamageData = data
}

// stubSelector always returns the same pick.
type stubSelector struct {
	pick core.ScanContact
}

func (stubSelector) Name() string { return "stub" }

func (s stubSelector) Select(context.Context, []core.ScanContact, time.Duration, *Context) (core.ScanContact, bool) {
	return s.pick, true
}

type nearestSelector struct{}

func (nearestSelector) Name() string { return "nearest" }

func (nearestSelector) Select(_ context.Context, contacts []core.ScanContact, _ time.Duration, _ *Context) (core.ScanContact, bool) {
	if len(contacts) == 0 {
		return core.ScanContact{}, false
	}
	return contacts[0], true
}

type followMovement struct{}

func (followMovement) Name() string { return "follow" }

func (followMovement) MovePosition(p MovementParams) core.Vec3 {
	dir := p.Position.Sub(p.TargetPosition)
	if dir.Len() == 0 {
		return p.TargetPosition
	}
	return p.TargetPosition.Add(dir.Normalize().Mul(p.Distance))
}
