package convert

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/model"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

func TestVec3ToPoint(t *testing.T) {
	pt := vec3ToPoint(core.Vec3{100.5, 200.5, 50})

	coord, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 100.5, coord.XY.X)
	assert.Equal(t, 200.5, coord.XY.Y)
	assert.Equal(t, 50.0, coord.Z)
	assert.Equal(t, core.Vec3{100.5, 200.5, 50}, pointToVec3(pt))
}

func TestPointToVec3_Empty(t *testing.T) {
	var empty model.ShotEvent
	assert.Equal(t, core.Vec3{}, pointToVec3(empty.Origin))
}

func TestShotRoundTrip(t *testing.T) {
	session := uuid.New()
	now := time.Now().Truncate(time.Millisecond)
	shot := core.Shot{
		WeaponName:   "Laser Cannon",
		Origin:       core.Vec3{1, 2, 3},
		OriginID:     7,
		TargetID:     9,
		CrossSection: 12.5,
		HitPosition:  core.Vec3{4, 5, 6},
		HitChance:    0.75,
		FiredAt:      now,
		Weapon: core.WeaponParams{
			WeaponItem: "WeaponLaserLarge",
			AmmoItem:   "AmmoLaserLargeThermic",
			Damage:     1200,
			Range:      40000,
		},
	}

	m := CoreToShotEvent(session, shot)
	assert.Equal(t, session, m.SessionID)
	assert.Equal(t, uint64(7), m.ConstructID)
	assert.Equal(t, now, m.Time)

	back := ShotEventToCore(m)
	assert.Equal(t, shot.WeaponName, back.WeaponName)
	assert.Equal(t, shot.Origin, back.Origin)
	assert.Equal(t, shot.HitPosition, back.HitPosition)
	assert.Equal(t, shot.HitChance, back.HitChance)
	assert.Equal(t, shot.Weapon.Damage, back.Weapon.Damage)
	assert.Equal(t, shot.Weapon.AmmoItem, back.Weapon.AmmoItem)
}

func TestDestructionRoundTrip(t *testing.T) {
	target := core.ConstructID(42)
	e := core.DestructionEvent{
		ConstructID: 5,
		PrefabName:  "pirate",
		Position:    core.Vec3{10, 20, 30},
		DestroyedAt: time.Now().Truncate(time.Millisecond),
		TargetID:    &target,
		PlayerIDs:   []core.PlayerID{1001, 1002},
	}

	m := CoreToDestructionEvent(uuid.New(), e)
	require.NotNil(t, m.TargetID)
	assert.Equal(t, uint64(42), *m.TargetID)
	assert.JSONEq(t, `[1001,1002]`, string(m.PlayerIDs))

	assert.Equal(t, e, DestructionEventToCore(m))
}

func TestDestruction_NoTargetNoPlayers(t *testing.T) {
	m := CoreToDestructionEvent(uuid.New(), core.DestructionEvent{ConstructID: 5})
	assert.Nil(t, m.TargetID)
	assert.Equal(t, "[]", string(m.PlayerIDs))

	back := DestructionEventToCore(m)
	assert.Nil(t, back.TargetID)
	assert.Empty(t, back.PlayerIDs)
}

func TestRadarScanRoundTrip(t *testing.T) {
	s := core.RadarScan{
		ConstructID: 3,
		Contacts:    4,
		Filtered:    2,
		Duration:    1500 * time.Microsecond,
		ScannedAt:   time.Now().Truncate(time.Millisecond),
	}
	m := CoreToRadarScanEvent(uuid.New(), s)
	assert.InDelta(t, 1.5, m.DurationMs, 0.0001)
	assert.Equal(t, s, RadarScanEventToCore(m))
}

func TestEnginePerformance(t *testing.T) {
	session := uuid.New()
	p := CoreToEnginePerformance(session, core.EnginePerformance{
		Time:              time.Now(),
		Constructs:        12,
		PendingWrites:     3,
		LastWriteDuration: 20 * time.Millisecond,
	})
	assert.Equal(t, session, p.SessionID)
	assert.Equal(t, 12, p.Constructs)
	assert.InDelta(t, 20.0, p.LastWriteDurationMs, 0.0001)
}

func TestPrefabRoundTrip(t *testing.T) {
	d := prefab.Definition{
		Name:           "pirate",
		AmmoTier:       3,
		AmmoVariant:    "Kinetic",
		MaxWeaponCount: 2,
		Behaviors:      []string{prefab.BehaviorAlive, prefab.BehaviorAggressive},
	}
	d.Mods.Weapon.Damage = 1.5

	m, err := PrefabToModel(d)
	require.NoError(t, err)
	assert.Equal(t, "pirate", m.Name)

	back, err := ModelToPrefab(m)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestModelToPrefab_InvalidJSON(t *testing.T) {
	_, err := ModelToPrefab(model.Prefab{Name: "broken", Definition: []byte("{")})
	assert.ErrorContains(t, err, `decoding prefab "broken"`)
}
