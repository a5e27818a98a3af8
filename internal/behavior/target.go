package behavior

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// SelectTarget scans for contacts, picks a target and keeps the pursuit
// position current.
type SelectTarget struct {
	base
	svc      *Services
	t        Timings
	selector TargetSelector
	movement MovementStrategy
	logger   *slog.Logger
}

func NewSelectTarget(svc *Services, t Timings, selector TargetSelector, movement MovementStrategy) *SelectTarget {
	return &SelectTarget{
		base:     base{name: prefab.BehaviorSelectTarget, category: MediumPriority},
		svc:      svc,
		t:        t,
		selector: selector,
		movement: movement,
	}
}

func (b *SelectTarget) Initialize(ctx context.Context, c *Context) error {
	if b.selector == nil || b.movement == nil {
		return fmt.Errorf("%s: target selector and movement strategy are required", b.name)
	}
	b.logger = b.svc.logger().With("construct", c.ConstructID, "behavior", b.name)
	return b.base.Initialize(ctx, c)
}

func (b *SelectTarget) Tick(ctx context.Context, c *Context) error {
	if !c.IsAlive {
		b.deactivate(c)
		return nil
	}

	now := b.svc.now()
	if now.Sub(c.LastReselect) < b.t.ReselectInterval {
		return b.refreshPursuit(ctx, c)
	}
	if c.Position == nil {
		return nil
	}

	contacts, err := b.scan(ctx, c)
	if err != nil {
		return err
	}
	c.RadarContacts = contacts

	if len(contacts) == 0 {
		c.MovePosition = c.HomePosition()
		c.ClearTarget()
		return nil
	}
	c.IdleSince = now

	pick, ok := b.selector.Select(ctx, contacts, c.Prefab.DecisionTime(), c)
	if !ok {
		return nil
	}
	if IsExcluded(pick.ConstructID) {
		b.logger.Warn("selector picked an excluded construct", "target", pick.ConstructID, "selector", b.selector.Name())
		return nil
	}

	c.SetTarget(pick.ConstructID, now)
	c.LastReselect = now

	targetDamage, err := b.svc.Damage.ConstructDamage(ctx, pick.ConstructID)
	if err != nil {
		b.logger.Debug("target damage profile unavailable", "target", pick.ConstructID, "error", err)
	} else {
		c.TargetDamageData = targetDamage
	}

	b.updatePursuit(ctx, c, pick.Position)

	if c.Sector != nil && c.Prefab.SectorExpirationSeconds > 0 {
		if err := b.svc.Sectors.ExtendExpiration(ctx, *c.Sector, c.Prefab.SectorExpiration()); err != nil {
			b.logger.Warn("extending sector expiration failed", "error", err)
		}
	}

	b.notify(ctx, c, pick)

	if !c.Prefab.OverridePilotTakeOver {
		b.takeOverPiloting(ctx, c)
	}
	return nil
}

// scan returns the contacts around the construct that may be targeted.
func (b *SelectTarget) scan(ctx context.Context, c *Context) ([]core.ScanContact, error) {
	start := b.svc.now()
	raw, err := b.svc.Scan.ScanForContacts(ctx, c.ConstructID, *c.Position, b.t.ScanRadius)
	if err != nil {
		return nil, fmt.Errorf("scanning for contacts: %w", err)
	}
	zones, err := b.svc.SafeZones.SafeZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing safe zones: %w", err)
	}

	contacts := make([]core.ScanContact, 0, len(raw))
	for _, contact := range raw {
		if contact.ConstructID == c.ConstructID || IsExcluded(contact.ConstructID) {
			continue
		}
		if core.InAnySafeZone(zones, contact.Position) {
			continue
		}
		contacts = append(contacts, contact)
	}

	for _, contact := range contacts {
		if err := b.svc.Voxels.TriggerConstructCache(ctx, contact.ConstructID); err != nil {
			b.logger.Debug("voxel cache trigger failed", "contact", contact.ConstructID, "error", err)
		}
	}

	if b.svc.Radar != nil {
		b.svc.Radar.RecordRadarScan(ctx, core.RadarScan{
			ConstructID: c.ConstructID,
			Contacts:    len(raw),
			Filtered:    len(contacts),
			Duration:    b.svc.now().Sub(start),
			ScannedAt:   start,
		})
	}
	return contacts, nil
}

// refreshPursuit recomputes the move position for the current target without reselecting.
func (b *SelectTarget) refreshPursuit(ctx context.Context, c *Context) error {
	if c.TargetID == nil || c.Position == nil {
		return nil
	}
	info, exists, err := b.svc.Constructs.Info(ctx, *c.TargetID)
	if err != nil {
		return fmt.Errorf("querying target info: %w", err)
	}
	if !exists {
		c.ClearTarget()
		return nil
	}
	b.updatePursuit(ctx, c, info.Position)
	return nil
}

func (b *SelectTarget) updatePursuit(ctx context.Context, c *Context, targetPos core.Vec3) {
	target := *c.TargetID
	vel, err := b.svc.Constructs.Velocities(ctx, target)
	if err != nil {
		b.logger.Debug("target velocity unavailable", "target", target, "error", err)
	}
	if c.DeltaTime > 0 && c.TargetPosition != nil {
		c.TargetAcceleration = vel.Linear.Sub(c.TargetLinearVelocity).Mul(1 / c.DeltaTime)
	}
	c.TargetLinearVelocity = vel.Linear
	c.TargetPosition = Vec(targetPos)
	c.TargetDistance = c.Position.Sub(targetPos).Len()

	move := b.movement.MovePosition(MovementParams{
		Position:           *c.Position,
		TargetPosition:     targetPos,
		TargetVelocity:     vel.Linear,
		TargetAcceleration: c.TargetAcceleration,
		Distance:           b.moveDistance(c),
		PredictionSeconds:  c.DeltaTime * b.t.PredictionFactor,
		DeltaTime:          c.DeltaTime,
	})
	c.MovePosition = &move
}

// moveDistance is the stand-off distance: half way into the falloff band of
// the best weapon, or the prefab distance for unarmed constructs.
func (b *SelectTarget) moveDistance(c *Context) float64 {
	if w := c.DamageData.BestDamagingWeapon(); w != nil {
		return w.HalfFalloffFiringDistance() * c.Prefab.Mods.Weapon.OptimalDistance
	}
	return c.Prefab.TargetDistance
}

func (b *SelectTarget) notify(ctx context.Context, c *Context, pick core.ScanContact) {
	if pick.Distance > b.t.CloseRange {
		return
	}
	info, exists, err := b.svc.Constructs.Info(ctx, c.ConstructID)
	if err != nil || !exists {
		b.logger.Debug("own construct info unavailable for notification", "error", err)
		return
	}
	targetExists, err := b.svc.Constructs.Exists(ctx, pick.ConstructID)
	if err != nil || !targetExists {
		return
	}

	data := core.TargetingData{
		ConstructID:   c.ConstructID,
		OwnerID:       c.Prefab.OwnerID,
		ConstructName: info.Name,
	}
	if err := b.svc.Notifier.SendIdentification(ctx, pick.ConstructID, data); err != nil {
		b.logger.Warn("identification notification failed", "target", pick.ConstructID, "error", err)
	}
	if c.DamageData.HasWeapons() {
		if err := b.svc.Notifier.SendAttackWarning(ctx, pick.ConstructID, data); err != nil {
			b.logger.Warn("attack notification failed", "target", pick.ConstructID, "error", err)
		}
	}
}

func (b *SelectTarget) takeOverPiloting(ctx context.Context, c *Context) {
	controlled, err := b.svc.Constructs.IsBeingControlled(ctx, c.ConstructID)
	if err != nil {
		b.logger.Warn("checking pilot seat failed", "error", err)
		return
	}
	if controlled {
		return
	}
	if err := b.svc.Constructs.TakeOverPiloting(ctx, c.ConstructID); err != nil {
		b.logger.Warn("taking over piloting failed", "error", err)
	}
}
