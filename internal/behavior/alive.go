package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/util"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// AliveCheck decides whether the construct still lives and keeps its damage
// profile current. It confirms destruction before reporting it.
type AliveCheck struct {
	base
	svc    *Services
	t      Timings
	logger *slog.Logger

	warnedNoWeapons bool
}

func NewAliveCheck(svc *Services, t Timings) *AliveCheck {
	return &AliveCheck{
		base: base{name: prefab.BehaviorAlive, category: HighPriority},
		svc:  svc,
		t:    t,
	}
}

func (b *AliveCheck) Initialize(ctx context.Context, c *Context) error {
	b.logger = b.svc.logger().With("construct", c.ConstructID, "behavior", b.name)
	return b.base.Initialize(ctx, c)
}

// RecordsHeartbeat is true: the heartbeat is only refreshed by a completed check.
func (b *AliveCheck) RecordsHeartbeat() bool { return true }

// IsActive is always true: once deactivated the behavior keeps ticking to
// confirm the destruction.
func (b *AliveCheck) IsActive() bool { return true }

func (b *AliveCheck) Tick(ctx context.Context, c *Context) error {
	now := b.svc.now()
	if now.Sub(c.StartedAt) < b.t.AliveGrace {
		return nil
	}

	if !c.IsAlive || !c.IsBehaviorActive(b.name) {
		b.confirmDestruction(ctx, c)
		return nil
	}

	id := c.ConstructID
	info, exists, err := b.svc.Constructs.Info(ctx, id)
	if err != nil {
		return fmt.Errorf("querying construct info: %w", err)
	}
	if !exists {
		// Nothing left to confirm or control.
		c.IsAlive = false
		b.deactivate(c)
		b.svc.Entities.Remove(id)
		b.logger.Info("construct no longer exists")
		return nil
	}
	c.Position = Vec(info.Position)

	data, err := b.svc.Damage.ConstructDamage(ctx, id)
	if err != nil {
		b.logger.Warn("refreshing damage profile failed", "error", err)
	} else {
		c.DamageData = data
		b.warnIfUnarmed(ctx, c, now.Sub(c.StartedAt))
	}

	b.prewarm(ctx, id)

	coreUnit, err := b.coreUnit(ctx, id)
	if err != nil {
		return fmt.Errorf("querying core unit: %w", err)
	}
	if coreUnit.IsCoreDestroyed() {
		b.reportDestroyed(ctx, c)
		b.deactivate(c)
		c.IsAlive = false
		b.svc.Entities.Remove(id)
		return nil
	}

	b.svc.Elements.ResetExpiration(id)
	if err := b.svc.Constructs.ActivateShields(ctx, id); err != nil {
		b.logger.Debug("activating shields failed", "error", err)
	}
	b.svc.Entities.RecordHeartbeat(id)
	return nil
}

// confirmDestruction re-queries the core unit of a construct believed dead.
// Failures are logged and the check is repeated on the next tick.
func (b *AliveCheck) confirmDestruction(ctx context.Context, c *Context) {
	coreUnit, err := b.coreUnit(ctx, c.ConstructID)
	if err != nil {
		b.logger.Warn("confirming destruction failed", "error", err)
		return
	}
	if !coreUnit.IsCoreDestroyed() {
		return
	}
	b.reportDestroyed(ctx, c)
	b.svc.Entities.Remove(c.ConstructID)
}

// coreUnit fetches the core element, bypassing caches, with bounded retries.
func (b *AliveCheck) coreUnit(ctx context.Context, id core.ConstructID) (core.ElementInfo, error) {
	elements := b.svc.Elements.NoCache()
	return util.RetryValue(ctx, b.t.RetryAttempts, b.t.RetryDelay, func(ctx context.Context) (core.ElementInfo, error) {
		coreID, err := elements.CoreUnit(ctx, id)
		if err != nil {
			return core.ElementInfo{}, err
		}
		return elements.Element(ctx, id, coreID)
	})
}

func (b *AliveCheck) reportDestroyed(ctx context.Context, c *Context) {
	e := core.DestructionEvent{
		ConstructID: c.ConstructID,
		PrefabName:  c.Prefab.Name,
		DestroyedAt: b.svc.now(),
		PlayerIDs:   c.PlayerIDList(),
	}
	if c.Position != nil {
		e.Position = *c.Position
	}
	if c.TargetID != nil {
		id := *c.TargetID
		e.TargetID = &id
	}
	if err := b.svc.Destruction.ConstructDestroyed(ctx, e); err != nil {
		b.logger.Error("reporting destruction failed", "error", err)
		return
	}
	b.logger.Info("construct destroyed", "players", len(e.PlayerIDs))
}

// prewarm fills the engine power and weapon count caches in parallel.
// Every failure is logged; none is returned.
func (b *AliveCheck) prewarm(ctx context.Context, id core.ConstructID) {
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		if _, err := b.svc.Elements.SpaceEnginesPower(ctx, id); err != nil {
			return fmt.Errorf("space engines power: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		if _, err := b.svc.Damage.WeaponsEffectiveness(ctx, id); err != nil {
			return fmt.Errorf("weapons effectiveness: %w", err)
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		for _, e := range unjoin(err) {
			b.logger.Warn("cache prewarm failed", "error", e)
		}
	}
}

func (b *AliveCheck) warnIfUnarmed(ctx context.Context, c *Context, age time.Duration) {
	if b.warnedNoWeapons || c.DamageData.HasWeapons() || age < b.t.NoWeaponsWarnAfter {
		return
	}
	units, err := b.svc.Elements.WeaponUnits(ctx, c.ConstructID)
	if err != nil || len(units) == 0 {
		return
	}
	b.warnedNoWeapons = true
	b.logger.Warn("construct has weapon units but no usable weapon", "units", len(units))
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
