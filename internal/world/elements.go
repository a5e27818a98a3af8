package world

import (
	"context"
	"fmt"

	"github.com/dynencounters/npc-engine/pkg/core"
)

func (w *World) CoreUnit(_ context.Context, id core.ConstructID) (core.ElementID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpCoreUnit); err != nil {
		return 0, err
	}
	c, err := w.get(id)
	if err != nil {
		return 0, err
	}
	return c.CoreUnit, nil
}

func (w *World) Element(_ context.Context, id core.ConstructID, elementID core.ElementID) (core.ElementInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpElement); err != nil {
		return core.ElementInfo{}, err
	}
	c, err := w.get(id)
	if err != nil {
		return core.ElementInfo{}, err
	}
	e, ok := c.Elements[elementID]
	if !ok {
		return core.ElementInfo{}, fmt.Errorf("construct %d has no element %d", id, elementID)
	}
	return e, nil
}

func (w *World) WeaponUnits(_ context.Context, id core.ConstructID) ([]core.ElementInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpWeaponUnits); err != nil {
		return nil, err
	}
	c, err := w.get(id)
	if err != nil {
		return nil, err
	}
	out := make([]core.ElementInfo, 0, len(c.WeaponUnits))
	for _, eid := range c.WeaponUnits {
		if e, ok := c.Elements[eid]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *World) SpaceEnginesPower(_ context.Context, id core.ConstructID) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(OpEnginePower); err != nil {
		return 0, err
	}
	c, err := w.get(id)
	if err != nil {
		return 0, err
	}
	return c.EnginePower, nil
}

// DamageElement removes hit points from an element, marking it destroyed at zero.
func (w *World) DamageElement(id core.ConstructID, elementID core.ElementID, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, err := w.get(id)
	if err != nil {
		return err
	}
	e, ok := c.Elements[elementID]
	if !ok {
		return fmt.Errorf("construct %d has no element %d", id, elementID)
	}
	e.HitPoints -= amount
	if e.HitPoints <= 0 {
		e.HitPoints = 0
		e.Destroyed = true
	}
	c.Elements[elementID] = e
	return nil
}
