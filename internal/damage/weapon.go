// Package damage resolves what a construct can shoot with: the weapon type and
// scale to ammo index, per-construct damage profiles and the weapon math the
// combat behaviors rely on.
package damage

import (
	"strings"

	"github.com/dynencounters/npc-engine/internal/gamedata"
	"github.com/dynencounters/npc-engine/pkg/core"
)

const defaultCycleTime = 1.0

// WeaponTypeScale keys the ammo index.
type WeaponTypeScale struct {
	WeaponType string
	Scale      string
}

// AmmoItem is one ammo definition compatible with a weapon type and scale.
type AmmoItem struct {
	ID                uint64
	ItemTypeName      string
	DisplayName       string
	Level             int
	Hidden            bool
	CycleTimeModifier float64
}

// WeaponItem is a weapon installed on a construct together with the ammo it accepts.
type WeaponItem struct {
	ElementID    core.ElementID
	ItemTypeName string
	DisplayName  string

	WeaponTypeScale
	BaseDamage                  float64
	BaseAccuracy                float64
	BaseOptimalDistance         float64
	FalloffDistance             float64
	BaseOptimalTracking         float64
	FalloffTracking             float64
	BaseOptimalAimingCone       float64
	FalloffAimingCone           float64
	OptimalCrossSectionDiameter float64
	BaseCycleTime               float64
	ReloadTime                  float64
	MagazineVolume              float64

	Ammo []AmmoItem
}

// NewWeaponItem builds a WeaponItem from a bank definition.
func NewWeaponItem(elementID core.ElementID, def *gamedata.Definition, ammo []AmmoItem) WeaponItem {
	w := def.Weapon
	return WeaponItem{
		ElementID:                   elementID,
		ItemTypeName:                def.Name,
		DisplayName:                 def.DisplayName,
		WeaponTypeScale:             WeaponTypeScale{WeaponType: w.WeaponType, Scale: w.Scale},
		BaseDamage:                  w.BaseDamage,
		BaseAccuracy:                w.BaseAccuracy,
		BaseOptimalDistance:         w.BaseOptimalDistance,
		FalloffDistance:             w.FalloffDistance,
		BaseOptimalTracking:         w.BaseOptimalTracking,
		FalloffTracking:             w.FalloffTracking,
		BaseOptimalAimingCone:       w.BaseOptimalAimingCone,
		FalloffAimingCone:           w.FalloffAimingCone,
		OptimalCrossSectionDiameter: w.OptimalCrossSectionDiameter,
		BaseCycleTime:               w.BaseCycleTime,
		ReloadTime:                  w.ReloadTime,
		MagazineVolume:              w.MagazineVolume,
		Ammo:                        ammo,
	}
}

// MatchingAmmo returns the ammo of the given tier whose type name contains variant, ignoring case.
func (w *WeaponItem) MatchingAmmo(tier int, variant string) []AmmoItem {
	variant = strings.ToLower(variant)
	var out []AmmoItem
	for _, a := range w.Ammo {
		if a.Level != tier {
			continue
		}
		if strings.Contains(strings.ToLower(a.ItemTypeName), variant) {
			out = append(out, a)
		}
	}
	return out
}

// ShotWaitTimePerGun returns the seconds between two aggregated shots when
// weaponCount guns of this type fire with the given ammo.
// Reload time is amortized over the magazine.
func (w *WeaponItem) ShotWaitTimePerGun(ammo AmmoItem, weaponCount int, cycleTimeBuff float64) float64 {
	cycle := w.BaseCycleTime
	if cycle <= 0 {
		cycle = defaultCycleTime
	}
	if w.MagazineVolume > 0 && w.ReloadTime > 0 {
		cycle += w.ReloadTime / w.MagazineVolume
	}
	if ammo.CycleTimeModifier > 0 {
		cycle *= ammo.CycleTimeModifier
	}
	if cycleTimeBuff > 0 {
		cycle *= cycleTimeBuff
	}
	if weaponCount < 1 {
		weaponCount = 1
	}
	return cycle / float64(weaponCount)
}

// HalfFalloffFiringDistance is the optimal distance plus half of the falloff band.
func (w *WeaponItem) HalfFalloffFiringDistance() float64 {
	return w.BaseOptimalDistance + w.FalloffDistance/2
}

// MaxRange is the far edge of the falloff band.
func (w *WeaponItem) MaxRange() float64 {
	return w.BaseOptimalDistance + w.FalloffDistance
}

// DistanceEffectiveness is 1 inside optimal range, decays linearly across the
// falloff band and is 0 beyond it.
func (w *WeaponItem) DistanceEffectiveness(distance float64) float64 {
	if distance <= w.BaseOptimalDistance {
		return 1
	}
	if w.FalloffDistance <= 0 {
		return 0
	}
	e := 1 - (distance-w.BaseOptimalDistance)/w.FalloffDistance
	if e < 0 {
		return 0
	}
	return e
}
