package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/world"
	"github.com/dynencounters/npc-engine/pkg/core"
)

func TestAliveCheck_GracePeriod(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := NewContext(npcID, testPrefab(), h.clock.Now())
	require.NoError(t, b.Initialize(context.Background(), c))

	h.clock.Advance(time.Second)
	require.NoError(t, b.Tick(context.Background(), c))

	assert.Zero(t, h.world.Calls(world.OpCoreUnit))
	assert.Nil(t, c.DamageData)
}

func TestAliveCheck_Alive(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	c.Position = nil
	require.NoError(t, h.world.Update(npcID, func(k *world.Construct) {
		k.Info.Position = core.Vec3{1, 2, 3}
	}))

	require.NoError(t, b.Tick(context.Background(), c))

	assert.True(t, c.IsAlive)
	require.NotNil(t, c.DamageData)
	assert.Len(t, c.DamageData.Weapons, 1)
	require.NotNil(t, c.Position)
	assert.Equal(t, core.Vec3{1, 2, 3}, *c.Position)

	npc, _ := h.world.Construct(npcID)
	assert.True(t, npc.Shields)
	assert.Equal(t, 1, h.world.Calls(world.OpEnginePower), "engine power prewarmed")
	assert.Empty(t, h.registry.Removed())
	assert.Empty(t, h.world.Destructions())
	assert.Equal(t, 1, h.registry.Heartbeats())
}

func TestAliveCheck_PrewarmFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	h.world.Fail(world.OpEnginePower, errors.New("engine service down"))

	require.NoError(t, b.Tick(context.Background(), c))
	assert.True(t, c.IsAlive)
}

func TestAliveCheck_CoreDestroyed(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	c.AddPlayerID(pilotID)
	require.NoError(t, h.world.DamageElement(npcID, npcCore, 5000))

	require.NoError(t, b.Tick(context.Background(), c))

	assert.False(t, c.IsAlive)
	assert.False(t, c.IsBehaviorActive(b.Name()))
	assert.Equal(t, []core.ConstructID{npcID}, h.registry.Removed())

	events := h.world.Destructions()
	require.Len(t, events, 1)
	assert.Equal(t, npcID, events[0].ConstructID)
	assert.Equal(t, "pirate", events[0].PrefabName)
	assert.Equal(t, []core.PlayerID{pilotID}, events[0].PlayerIDs)
}

func TestAliveCheck_RetriesCoreUnitThreeTimes(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	h.world.Fail(world.OpCoreUnit, errors.New("timeout"))

	err := b.Tick(context.Background(), c)

	require.Error(t, err)
	assert.Equal(t, 3, h.world.Calls(world.OpCoreUnit))
	assert.True(t, c.IsAlive, "failure is not death")
	assert.Empty(t, h.registry.Removed())
	assert.Zero(t, h.registry.Heartbeats())
}

func TestAliveCheck_ConstructGone(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	h.world.Delete(npcID)

	require.NoError(t, b.Tick(context.Background(), c))

	assert.False(t, c.IsAlive)
	assert.False(t, c.IsBehaviorActive(b.Name()))
	assert.Equal(t, []core.ConstructID{npcID}, h.registry.Removed())
	assert.Empty(t, h.world.Destructions(), "a vanished construct is not a kill")
	assert.Zero(t, h.world.Calls(world.OpCoreUnit))
	assert.Zero(t, h.registry.Heartbeats())
}

func TestAliveCheck_WithScheduler(t *testing.T) {
	register := func(t *testing.T) (*harness, *Scheduler) {
		h := newHarness(t)
		s := newTestScheduler(t, SchedulerConfig{HeartbeatTimeout: 30 * time.Second, Now: h.clock.Now})
		h.svc.Entities = s
		c := NewContext(npcID, testPrefab(), h.clock.Now())
		require.NoError(t, s.Register(context.Background(), npcID, c, []Behavior{NewAliveCheck(h.svc, h.timings)}))
		return h, s
	}
	run := func(t *testing.T, h *harness, s *Scheduler, d time.Duration) {
		for elapsed := time.Duration(0); elapsed < d; elapsed += 10 * time.Second {
			h.clock.Advance(10 * time.Second)
			tickAndWait(t, s)
		}
	}

	t.Run("healthy construct stays registered", func(t *testing.T) {
		h, s := register(t)
		run(t, h, s, time.Minute)
		assert.True(t, s.Contains(npcID))
	})

	t.Run("deleted construct is removed", func(t *testing.T) {
		h, s := register(t)
		run(t, h, s, 10*time.Second)
		h.world.Delete(npcID)
		run(t, h, s, 10*time.Second)
		assert.False(t, s.Contains(npcID))
	})

	t.Run("failing check lets the heartbeat expire", func(t *testing.T) {
		h, s := register(t)
		run(t, h, s, 10*time.Second)
		h.world.Fail(world.OpCoreUnit, errors.New("timeout"))
		run(t, h, s, time.Minute)
		assert.False(t, s.Contains(npcID))
	})
}

func TestAliveCheck_ConfirmDestruction(t *testing.T) {
	t.Run("sustained failure is swallowed", func(t *testing.T) {
		h := newHarness(t)
		b := NewAliveCheck(h.svc, h.timings)
		c := h.newContext(t, b)
		c.IsAlive = false
		h.world.Fail(world.OpElement, errors.New("timeout"))

		require.NoError(t, b.Tick(context.Background(), c))

		assert.Equal(t, 3, h.world.Calls(world.OpElement))
		assert.Empty(t, h.registry.Removed())
		assert.Empty(t, h.world.Destructions())
	})

	t.Run("intact core is not reported", func(t *testing.T) {
		h := newHarness(t)
		b := NewAliveCheck(h.svc, h.timings)
		c := h.newContext(t, b)
		c.IsAlive = false

		require.NoError(t, b.Tick(context.Background(), c))

		assert.Empty(t, h.registry.Removed())
		assert.Empty(t, h.world.Destructions())
		assert.Zero(t, h.world.Calls(world.OpWeaponUnits), "no profile refresh while not alive")
	})

	t.Run("destroyed core is reported and removed", func(t *testing.T) {
		h := newHarness(t)
		b := NewAliveCheck(h.svc, h.timings)
		c := h.newContext(t, b)
		b.deactivate(c)
		require.NoError(t, h.world.DamageElement(npcID, npcCore, 5000))

		require.NoError(t, b.Tick(context.Background(), c))

		assert.Equal(t, []core.ConstructID{npcID}, h.registry.Removed())
		assert.Len(t, h.world.Destructions(), 1)
	})

	t.Run("destruction sink failure is swallowed", func(t *testing.T) {
		h := newHarness(t)
		b := NewAliveCheck(h.svc, h.timings)
		c := h.newContext(t, b)
		c.IsAlive = false
		require.NoError(t, h.world.DamageElement(npcID, npcCore, 5000))
		h.world.Fail(world.OpDestroyed, errors.New("sink down"))

		require.NoError(t, b.Tick(context.Background(), c))
		assert.Equal(t, []core.ConstructID{npcID}, h.registry.Removed())
	})
}

func TestAliveCheck_AlwaysActive(t *testing.T) {
	h := newHarness(t)
	b := NewAliveCheck(h.svc, h.timings)
	c := h.newContext(t, b)
	b.deactivate(c)
	assert.True(t, b.IsActive())
	assert.Equal(t, HighPriority, b.Category())
}
