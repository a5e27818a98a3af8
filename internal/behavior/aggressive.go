package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/dynencounters/npc-engine/internal/damage"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/util"
	"github.com/dynencounters/npc-engine/pkg/core"
)

const (
	shotCrossSection   = 5.0
	shotAreaOfEffect   = 100_000.0
	shotEffectDuration = 10.0
	shotEffectStrength = 10.0
)

// ShotContext is everything needed to fire one aggregated shot.
// HitOffset lies within a quarter of the target size from its center.
type ShotContext struct {
	Weapon    *damage.WeaponItem
	Origin    core.ConstructInfo
	Target    core.ConstructInfo
	HitOffset core.Vec3
	Distance  float64
	// QuantityModifier is how many guns the one shot stands for.
	QuantityModifier int
}

// Aggressive fires at the selected target. All functional guns of the chosen
// weapon type are modeled as one shot fired at the combined cadence.
type Aggressive struct {
	base
	svc    *Services
	t      Timings
	rng    *rand.Rand
	logger *slog.Logger

	warnedNoWeapons bool
}

func NewAggressive(svc *Services, t Timings) *Aggressive {
	return &Aggressive{
		base: base{name: prefab.BehaviorAggressive, category: HighPriority},
		svc:  svc,
		t:    t,
	}
}

func (b *Aggressive) Initialize(ctx context.Context, c *Context) error {
	b.rng = b.svc.rand()
	b.logger = b.svc.logger().With("construct", c.ConstructID, "behavior", b.name)
	return b.base.Initialize(ctx, c)
}

func (b *Aggressive) Tick(ctx context.Context, c *Context) error {
	if c.DamageData == nil {
		return nil
	}
	if !c.DamageData.HasWeapons() {
		if age := b.svc.now().Sub(c.StartedAt); age >= b.t.AggressionGrace && !b.warnedNoWeapons {
			b.warnedNoWeapons = true
			b.logger.Warn("no weapons in damage profile", "age", age)
		}
		return nil
	}
	if !c.IsAlive {
		b.deactivate(c)
		return nil
	}
	if c.TargetID == nil || IsExcluded(*c.TargetID) {
		return nil
	}
	if c.Position == nil {
		return nil
	}
	targetID := *c.TargetID

	own, exists, err := b.svc.Constructs.Info(ctx, c.ConstructID)
	if err != nil {
		return fmt.Errorf("querying own info: %w", err)
	}
	if !exists {
		return nil
	}
	target, exists, err := b.svc.Constructs.Info(ctx, targetID)
	if err != nil {
		return fmt.Errorf("querying target info: %w", err)
	}
	if !exists {
		return nil
	}
	if target.Pilot != nil {
		c.AddPlayerID(*target.Pilot)
	}

	hitOffset := RandomDirection(b.rng).Mul(target.Size / 4)

	eff, err := b.svc.Damage.WeaponsEffectiveness(ctx, c.ConstructID)
	if err != nil {
		return fmt.Errorf("refreshing weapon effectiveness: %w", err)
	}
	c.WeaponEffectiveness = eff
	if !eff.HasAnyFunctional() {
		return nil
	}

	distance := target.Position.Sub(*c.Position).Len()
	if distance > b.t.EngagementRange {
		return nil
	}

	weapon := c.DamageData.BestWeaponByDistance(distance, eff)
	if weapon == nil {
		return nil
	}

	return b.shootAndCycle(ctx, c, ShotContext{
		Weapon:    weapon,
		Origin:    own,
		Target:    target,
		HitOffset: hitOffset,
		Distance:  distance,
	})
}

// shootAndCycle advances the cooldown accumulator and fires once it covers
// the wait time of the chosen weapon and ammo.
func (b *Aggressive) shootAndCycle(ctx context.Context, c *Context, s ShotContext) error {
	w := s.Weapon
	functional, total := c.WeaponEffectiveness.Factors(w.ItemTypeName)
	if functional == 0 || total == 0 {
		return nil
	}
	c.FunctionalWeaponFactor = util.Clamp(float64(functional)/float64(total), 0, 1)
	// One shot is the equivalent of every functional gun of this type firing;
	// the count shortens the cooldown and never multiplies the damage.
	s.QuantityModifier = util.Clamp(functional, 0, c.Prefab.MaxWeaponCount)

	c.ShotAccumulator += c.DeltaTime

	ammo := w.MatchingAmmo(c.Prefab.AmmoTier, c.Prefab.AmmoVariant)
	if len(ammo) == 0 {
		b.logger.Error("no matching ammo",
			"weapon", w.ItemTypeName, "tier", c.Prefab.AmmoTier, "variant", c.Prefab.AmmoVariant)
		return nil
	}
	picked := ammo[b.rng.IntN(len(ammo))]

	c.ShotWaitTime = w.ShotWaitTimePerGun(picked, s.QuantityModifier, c.Prefab.Mods.Weapon.CycleTime)
	if c.ShotAccumulator < c.ShotWaitTime {
		return nil
	}

	blocked, err := b.inSafeZone(ctx, c.ConstructID, s.Target.ID)
	if err != nil {
		return err
	}
	if blocked {
		c.ShotAccumulator = 0
		return nil
	}

	hit := b.hitPosition(ctx, s)
	c.ShotAccumulator = 0

	m := modded(w, c.Prefab.Mods.Weapon)
	shot := core.Shot{
		WeaponName:     w.DisplayName,
		Origin:         s.Origin.Position,
		OriginID:       c.ConstructID,
		OriginSize:     s.Origin.Size,
		TargetID:       s.Target.ID,
		TargetPosition: s.Target.Position,
		Weapon: core.WeaponParams{
			WeaponItem:            w.ItemTypeName,
			AmmoItem:              picked.ItemTypeName,
			Damage:                m.BaseDamage,
			Range:                 m.MaxRange(),
			BaseAccuracy:          m.BaseAccuracy,
			BaseOptimalDistance:   m.BaseOptimalDistance,
			FalloffDistance:       m.FalloffDistance,
			BaseOptimalTracking:   m.BaseOptimalTracking,
			FalloffTracking:       m.FalloffTracking,
			BaseOptimalAimingCone: m.BaseOptimalAimingCone,
			FalloffAimingCone:     m.FalloffAimingCone,
			OptimalCrossSection:   w.OptimalCrossSectionDiameter,
			FireCooldown:          c.ShotWaitTime,
			AreaOfEffect:          true,
			AreaOfEffectRange:     shotAreaOfEffect,
			EffectDuration:        shotEffectDuration,
			EffectStrength:        shotEffectStrength,
		},
		CrossSection: shotCrossSection,
		HitPosition:  hit,
		HitChance:    damage.HitRatio(&m, s.Distance),
		FiredAt:      b.svc.now(),
	}
	if err := b.svc.Shots.Fire(ctx, shot); err != nil {
		return fmt.Errorf("firing %s: %w", w.ItemTypeName, err)
	}
	b.logger.Info("shot fired", "weapon", w.ItemTypeName, "ammo", picked.ItemTypeName, "target", s.Target.ID)
	return nil
}

// modded returns a copy of w with the prefab weapon mods applied.
func modded(w *damage.WeaponItem, mods prefab.WeaponMods) damage.WeaponItem {
	m := *w
	m.BaseDamage *= mods.Damage
	m.BaseAccuracy *= mods.Accuracy
	m.BaseOptimalDistance *= mods.OptimalDistance
	m.FalloffDistance *= mods.FalloffDistance
	m.BaseOptimalTracking *= mods.OptimalTracking
	m.FalloffTracking *= mods.FalloffTracking
	m.BaseOptimalAimingCone *= mods.OptimalAimingCone
	m.FalloffAimingCone *= mods.FalloffAimingCone
	return m
}

func (b *Aggressive) inSafeZone(ctx context.Context, ids ...core.ConstructID) (bool, error) {
	for _, id := range ids {
		in, err := b.svc.Constructs.IsInSafeZone(ctx, id)
		if err != nil {
			return false, fmt.Errorf("safe zone check for %d: %w", id, err)
		}
		if in {
			return true, nil
		}
	}
	return false, nil
}

// hitPosition asks the voxel service for a point on the target hull, in
// target-local coordinates. When that fails the shot lands at the random
// offset picked for this tick.
func (b *Aggressive) hitPosition(ctx context.Context, s ShotContext) core.Vec3 {
	from, err := b.svc.Scene.ResolveRelativeLocation(ctx, s.Origin.Position, s.Target.ID)
	if err == nil {
		point, ok, err := b.svc.Voxels.QueryRandomPoint(ctx, s.Target.ID, from)
		if err == nil && ok {
			return point
		}
		if err != nil {
			b.logger.Debug("random point query failed", "target", s.Target.ID, "error", err)
		}
	} else {
		b.logger.Debug("resolving relative location failed", "target", s.Target.ID, "error", err)
	}
	return s.HitOffset
}
