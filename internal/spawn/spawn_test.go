package spawn

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/internal/cache"
	"github.com/dynencounters/npc-engine/internal/config"
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
  - id: 100
    name: WeaponCannonSmallBlue
    weapon:
      weapon_type: cannon
      scale: s
      base_damage: 50
      base_accuracy: 0.8
      base_optimal_distance: 1000
      falloff_distance: 500
      base_cycle_time: 2
`

const testScenario = `
safe_zones:
  - name: station
    center: [0, 0, 1000000]
    radius: 50000
constructs:
  - id: 10
    name: Raider
    size: 64
    core_unit: 1
    core_hp: 2000
    weapons:
      - { element_id: 2, type_id: 100 }
    engine_power: 5
    prefab: raider
    sector: [0, 0, 0]
  - id: 20
    name: Hauler
    position: [0, 0, 800]
    velocity: [10, 0, 0]
    size: 40
    pilot: 77
    voxels: true
`

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raider() prefab.Definition {
	return prefab.Definition{
		Name:           "raider",
		AmmoTier:       2,
		AmmoVariant:    "blue",
		MaxWeaponCount: 2,
		Behaviors:      []string{prefab.BehaviorAggressive, prefab.BehaviorAlive, prefab.BehaviorSelectTarget},
		TargetSelector: "sticky",
		Movement:       "follow",
	}
}

type registry struct{}

func (registry) Remove(core.ConstructID) bool          { return true }
func (registry) RecordHeartbeat(core.ConstructID) bool { return true }

type fakeRegistrar struct {
	contexts  map[core.ConstructID]*behavior.Context
	behaviors map[core.ConstructID][]behavior.Behavior
}

func (r *fakeRegistrar) Register(_ context.Context, id core.ConstructID, bc *behavior.Context, bs []behavior.Behavior) error {
	if r.contexts == nil {
		r.contexts = make(map[core.ConstructID]*behavior.Context)
		r.behaviors = make(map[core.ConstructID][]behavior.Behavior)
	}
	r.contexts[id] = bc
	r.behaviors[id] = bs
	return nil
}

func newServices(t *testing.T, w *world.World) *behavior.Services {
	t.Helper()
	bank, err := gamedata.ParseYAML([]byte(testBank))
	require.NoError(t, err)
	elements := cache.NewCachedElements(w, 0, time.Minute)
	return &behavior.Services{
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
		Entities:    registry{},
		Logger:      discardLogger(),
		Now:         func() time.Time { return start },
		NewRand:     func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) },
	}
}

func newFactory(t *testing.T, w *world.World) *Factory {
	t.Helper()
	f, err := NewFactory(newServices(t, w), behavior.DefaultTimings(), []prefab.Definition{raider()})
	require.NoError(t, err)
	return f
}

func TestNewFactory_InvalidServices(t *testing.T) {
	_, err := NewFactory(&behavior.Services{}, behavior.DefaultTimings(), nil)
	assert.ErrorContains(t, err, "behavior services")
}

func TestNewFactory_AppliesDefaults(t *testing.T) {
	f := newFactory(t, world.New(1))
	def, ok := f.Prefab("raider")
	require.True(t, ok)
	assert.Equal(t, 1.0, def.Mods.Weapon.Damage)

	_, ok = f.Prefab("nope")
	assert.False(t, ok)
}

func TestTimingsFromConfig(t *testing.T) {
	tm := TimingsFromConfig(config.TimingsConfig{
		AliveGrace:    time.Second,
		RetryAttempts: 5,
	})
	def := behavior.DefaultTimings()
	assert.Equal(t, time.Second, tm.AliveGrace)
	assert.Equal(t, 5, tm.RetryAttempts)
	assert.Equal(t, def.RetryDelay, tm.RetryDelay)
	assert.Equal(t, def.ScanRadius, tm.ScanRadius)
	assert.Equal(t, def.EngagementRange, tm.EngagementRange)
}

func TestBehaviors_DefinitionOrderAndStrategies(t *testing.T) {
	f := newFactory(t, world.New(1))
	def, _ := f.Prefab("raider")

	bs, err := f.Behaviors(def)
	require.NoError(t, err)
	require.Len(t, bs, 3)
	assert.IsType(t, &behavior.Aggressive{}, bs[0])
	assert.IsType(t, &behavior.AliveCheck{}, bs[1])
	assert.IsType(t, &behavior.SelectTarget{}, bs[2])
}

func TestBehaviors_UnknownStrategy(t *testing.T) {
	f := newFactory(t, world.New(1))

	def := raider()
	def.TargetSelector = "psychic"
	_, err := f.Behaviors(def)
	assert.ErrorIs(t, err, prefab.ErrInvalidPrefab)

	def = raider()
	def.Movement = "teleport"
	_, err = f.Behaviors(def)
	assert.ErrorIs(t, err, prefab.ErrInvalidPrefab)
}

func TestBehaviors_InvalidPrefab(t *testing.T) {
	f := newFactory(t, world.New(1))
	def := raider()
	def.Behaviors = nil
	_, err := f.Behaviors(def)
	assert.ErrorIs(t, err, prefab.ErrInvalidPrefab)
}

func TestSpawn(t *testing.T) {
	f := newFactory(t, world.New(1))
	reg := &fakeRegistrar{}
	sector := core.Vec3{5, 5, 5}

	err := f.Spawn(context.Background(), reg, 10, "raider", Placement{Position: core.Vec3{1, 2, 3}, Sector: &sector})
	require.NoError(t, err)

	bc := reg.contexts[10]
	require.NotNil(t, bc)
	assert.Equal(t, "raider", bc.Prefab.Name)
	assert.True(t, bc.IsAlive)
	assert.Equal(t, start, bc.StartedAt)
	assert.Equal(t, core.Vec3{1, 2, 3}, *bc.Position)
	assert.Equal(t, core.Vec3{1, 2, 3}, *bc.StartPosition)
	assert.Equal(t, sector, *bc.Sector)
	assert.Len(t, reg.behaviors[10], 3)
}

func TestSpawn_UnknownPrefab(t *testing.T) {
	f := newFactory(t, world.New(1))
	err := f.Spawn(context.Background(), &fakeRegistrar{}, 10, "ghost", Placement{})
	assert.ErrorIs(t, err, ErrUnknownPrefab)
}

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(testScenario))
	require.NoError(t, err)
	require.Len(t, s.Constructs, 2)
	require.Len(t, s.SafeZones, 1)
	assert.Equal(t, "raider", s.Constructs[0].Prefab)
	require.NotNil(t, s.Constructs[1].Pilot)
	assert.Equal(t, uint64(77), *s.Constructs[1].Pilot)
}

func TestParseScenario_Errors(t *testing.T) {
	_, err := ParseScenario([]byte("constructs:\n  - name: nobody\n"))
	assert.ErrorContains(t, err, "missing id")

	_, err = ParseScenario([]byte("constructs:\n  - id: 1\n  - id: 1\n"))
	assert.ErrorContains(t, err, "listed twice")

	_, err = ParseScenario([]byte("constructs: {"))
	assert.Error(t, err)
}

func TestScenario_PopulateAndSpawn(t *testing.T) {
	s, err := ParseScenario([]byte(testScenario))
	require.NoError(t, err)

	w := world.New(1)
	s.Populate(w)

	raiderShip, ok := w.Construct(10)
	require.True(t, ok)
	assert.Equal(t, core.ElementID(1), raiderShip.CoreUnit)
	assert.Equal(t, 2000.0, raiderShip.Elements[1].MaxHitPoints)
	assert.Equal(t, []core.ElementID{2}, raiderShip.WeaponUnits)
	assert.Equal(t, uint64(100), raiderShip.Elements[2].TypeID)
	assert.Equal(t, 100.0, raiderShip.Elements[2].HitPoints)

	hauler, ok := w.Construct(20)
	require.True(t, ok)
	require.NotNil(t, hauler.Info.Pilot)
	assert.Equal(t, core.PlayerID(77), *hauler.Info.Pilot)
	assert.Equal(t, core.Vec3{10, 0, 0}, hauler.Velocities.Linear)
	assert.True(t, hauler.HasVoxels)

	inZone, err := w.IsInSafeZone(context.Background(), 20)
	require.NoError(t, err)
	assert.False(t, inZone)

	f := newFactory(t, w)
	reg := &fakeRegistrar{}
	n, err := s.SpawnNPCs(context.Background(), f, reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Contains(t, reg.contexts, core.ConstructID(10))
	assert.Equal(t, core.Vec3{0, 0, 0}, *reg.contexts[10].Sector)
}

func TestScenario_SpawnErrorsJoined(t *testing.T) {
	s := &Scenario{Constructs: []ConstructSpec{
		{ID: 1, Prefab: "ghost"},
		{ID: 2, Prefab: "raider"},
		{ID: 3, Prefab: "phantom"},
	}}
	f := newFactory(t, world.New(1))

	n, err := s.SpawnNPCs(context.Background(), f, &fakeRegistrar{})
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ErrUnknownPrefab)
	assert.ErrorContains(t, err, "construct 1")
	assert.ErrorContains(t, err, "construct 3")
}

func TestSpawn_WithScheduler(t *testing.T) {
	w := world.New(1)
	s, err := ParseScenario([]byte(testScenario))
	require.NoError(t, err)
	s.Populate(w)

	sched, err := behavior.NewScheduler(behavior.SchedulerConfig{Logger: discardLogger(), Workers: 1})
	require.NoError(t, err)
	defer sched.Close()

	f := newFactory(t, w)
	_, err = s.SpawnNPCs(context.Background(), f, sched)
	require.NoError(t, err)
	assert.True(t, sched.Contains(10))

	_, err = s.SpawnNPCs(context.Background(), f, sched)
	assert.ErrorIs(t, err, behavior.ErrAlreadyRegistered)
}
