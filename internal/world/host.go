package world

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dynencounters/npc-engine/pkg/core"
)

func (w *World) ScanForContacts(_ context.Context, origin core.ConstructID, position core.Vec3, radius float64) ([]core.ScanContact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpScan); err != nil {
		return nil, err
	}
	var out []core.ScanContact
	for id, c := range w.constructs {
		if id == origin {
			continue
		}
		d := c.Info.Position.Sub(position).Len()
		if d > radius {
			continue
		}
		out = append(out, core.ScanContact{ConstructID: id, Position: c.Info.Position, Distance: d})
	}
	slices.SortFunc(out, func(a, b core.ScanContact) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ConstructID, b.ConstructID)
	})
	return out, nil
}

func (w *World) SafeZones(context.Context) ([]core.SafeZone, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpSafeZones); err != nil {
		return nil, err
	}
	return slices.Clone(w.zones), nil
}

// QueryRandomPoint returns a point inside the target's bounding box when the
// target has voxel data.
func (w *World) QueryRandomPoint(_ context.Context, target core.ConstructID, _ core.Vec3) (core.Vec3, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpQueryRandomPoint); err != nil {
		return core.Vec3{}, false, err
	}
	c, err := w.get(target)
	if err != nil {
		return core.Vec3{}, false, err
	}
	if !c.HasVoxels {
		return core.Vec3{}, false, nil
	}
	half := c.Info.Size / 2
	p := core.Vec3{
		(w.rng.Float64()*2 - 1) * half,
		(w.rng.Float64()*2 - 1) * half,
		(w.rng.Float64()*2 - 1) * half,
	}
	return p, true, nil
}

func (w *World) TriggerConstructCache(_ context.Context, id core.ConstructID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpTriggerCache); err != nil {
		return err
	}
	w.cacheTriggers[id]++
	return nil
}

// ResolveRelativeLocation expresses a world position in the frame of relativeTo.
func (w *World) ResolveRelativeLocation(_ context.Context, world core.Vec3, relativeTo core.ConstructID) (core.Vec3, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpResolveRelative); err != nil {
		return core.Vec3{}, err
	}
	c, err := w.get(relativeTo)
	if err != nil {
		return core.Vec3{}, err
	}
	rot := c.Info.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	return rot.Inverse().Rotate(world.Sub(c.Info.Position)), nil
}

func (w *World) ExtendExpiration(_ context.Context, sector core.Vec3, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpExtendExpiration); err != nil {
		return err
	}
	w.sectors[sector] = w.now().Add(d)
	return nil
}

func (w *World) SendIdentification(_ context.Context, target core.ConstructID, data core.TargetingData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpIdentification); err != nil {
		return err
	}
	w.notifications = append(w.notifications, Notification{Kind: OpIdentification, Target: target, Data: data})
	return nil
}

func (w *World) SendAttackWarning(_ context.Context, target core.ConstructID, data core.TargetingData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpAttackWarning); err != nil {
		return err
	}
	w.notifications = append(w.notifications, Notification{Kind: OpAttackWarning, Target: target, Data: data})
	return nil
}

// Fire records the shot and applies its damage to the target's core unit.
func (w *World) Fire(_ context.Context, shot core.Shot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpFire); err != nil {
		return err
	}
	w.shots = append(w.shots, shot)

	c, ok := w.constructs[shot.TargetID]
	if !ok {
		return nil
	}
	e, ok := c.Elements[c.CoreUnit]
	if !ok || e.Destroyed {
		return nil
	}
	e.HitPoints -= shot.Weapon.Damage
	if e.HitPoints <= 0 {
		e.HitPoints = 0
		e.Destroyed = true
	}
	c.Elements[c.CoreUnit] = e
	return nil
}

func (w *World) ConstructDestroyed(_ context.Context, e core.DestructionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpDestroyed); err != nil {
		return err
	}
	w.destructions = append(w.destructions, e)
	return nil
}
