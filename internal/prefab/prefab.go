// Package prefab describes NPC classes: what they shoot, how they pick and
// chase targets and which behaviors drive them.
package prefab

import (
	"errors"
	"fmt"
	"time"

	"github.com/dynencounters/npc-engine/pkg/core"
)

// ErrInvalidPrefab is returned for a definition that cannot drive an NPC.
var ErrInvalidPrefab = errors.New("invalid prefab")

// Behavior names usable in a definition.
const (
	BehaviorAlive        = "alive"
	BehaviorSelectTarget = "select-target"
	BehaviorAggressive   = "aggressive"
)

var knownBehaviors = map[string]struct{}{
	BehaviorAlive:        {},
	BehaviorSelectTarget: {},
	BehaviorAggressive:   {},
}

// WeaponMods multiply the matching weapon attribute of every shot. Zero means 1.
type WeaponMods struct {
	Damage            float64 `json:"damage" yaml:"damage"`
	Accuracy          float64 `json:"accuracy" yaml:"accuracy"`
	CycleTime         float64 `json:"cycleTime" yaml:"cycle_time"`
	OptimalDistance   float64 `json:"optimalDistance" yaml:"optimal_distance"`
	FalloffDistance   float64 `json:"falloffDistance" yaml:"falloff_distance"`
	OptimalTracking   float64 `json:"optimalTracking" yaml:"optimal_tracking"`
	FalloffTracking   float64 `json:"falloffTracking" yaml:"falloff_tracking"`
	OptimalAimingCone float64 `json:"optimalAimingCone" yaml:"optimal_aiming_cone"`
	FalloffAimingCone float64 `json:"falloffAimingCone" yaml:"falloff_aiming_cone"`
}

type Mods struct {
	Weapon WeaponMods `json:"weapon" yaml:"weapon"`
}

// Definition is one NPC class.
type Definition struct {
	Name          string        `json:"name" yaml:"name"`
	BlueprintPath string        `json:"blueprintPath" yaml:"blueprint_path"`
	OwnerID       core.PlayerID `json:"ownerId" yaml:"owner_id"`

	AmmoTier       int    `json:"ammoTier" yaml:"ammo_tier"`
	AmmoVariant    string `json:"ammoVariant" yaml:"ammo_variant"`
	MaxWeaponCount int    `json:"maxWeaponCount" yaml:"max_weapon_count"`

	// TargetDistance is the stand-off distance used when the NPC carries no weapon.
	TargetDistance      float64 `json:"targetDistance" yaml:"target_distance"`
	DecisionTimeSeconds float64 `json:"decisionTimeSeconds" yaml:"decision_time_seconds"`

	Mods Mods `json:"mods" yaml:"mods"`

	Behaviors      []string `json:"behaviors" yaml:"behaviors"`
	TargetSelector string   `json:"targetSelector" yaml:"target_selector"`
	Movement       string   `json:"movement" yaml:"movement"`

	OverridePilotTakeOver bool `json:"overridePilotTakeOver" yaml:"override_pilot_take_over"`
	// SectorExpirationSeconds extends the home sector lifetime each time a target is picked. 0 disables.
	SectorExpirationSeconds float64 `json:"sectorExpirationSeconds" yaml:"sector_expiration_seconds"`
}

// Validate rejects definitions that would fail at tick time.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPrefab)
	}
	if d.AmmoTier < 1 {
		return fmt.Errorf("%w: %s: ammo tier must be at least 1", ErrInvalidPrefab, d.Name)
	}
	if d.AmmoVariant == "" {
		return fmt.Errorf("%w: %s: missing ammo variant", ErrInvalidPrefab, d.Name)
	}
	if d.MaxWeaponCount < 1 {
		return fmt.Errorf("%w: %s: max weapon count must be at least 1", ErrInvalidPrefab, d.Name)
	}
	if d.TargetDistance < 0 || d.DecisionTimeSeconds < 0 || d.SectorExpirationSeconds < 0 {
		return fmt.Errorf("%w: %s: negative distance or duration", ErrInvalidPrefab, d.Name)
	}
	if len(d.Behaviors) == 0 {
		return fmt.Errorf("%w: %s: no behaviors", ErrInvalidPrefab, d.Name)
	}
	seen := make(map[string]struct{}, len(d.Behaviors))
	for _, b := range d.Behaviors {
		if _, ok := knownBehaviors[b]; !ok {
			return fmt.Errorf("%w: %s: unknown behavior %q", ErrInvalidPrefab, d.Name, b)
		}
		if _, dup := seen[b]; dup {
			return fmt.Errorf("%w: %s: behavior %q listed twice", ErrInvalidPrefab, d.Name, b)
		}
		seen[b] = struct{}{}
	}
	return nil
}

// WithDefaults returns a copy with unset modifiers set to 1.
func (d Definition) WithDefaults() Definition {
	w := &d.Mods.Weapon
	for _, m := range []*float64{
		&w.Damage, &w.Accuracy, &w.CycleTime,
		&w.OptimalDistance, &w.FalloffDistance,
		&w.OptimalTracking, &w.FalloffTracking,
		&w.OptimalAimingCone, &w.FalloffAimingCone,
	} {
		if *m == 0 {
			*m = 1
		}
	}
	d.Behaviors = append([]string(nil), d.Behaviors...)
	return d
}

// DecisionTime is DecisionTimeSeconds as a duration.
func (d *Definition) DecisionTime() time.Duration {
	return time.Duration(d.DecisionTimeSeconds * float64(time.Second))
}

// SectorExpiration is SectorExpirationSeconds as a duration.
func (d *Definition) SectorExpiration() time.Duration {
	return time.Duration(d.SectorExpirationSeconds * float64(time.Second))
}

// HasBehavior reports whether name is in the behavior list.
func (d *Definition) HasBehavior(name string) bool {
	for _, b := range d.Behaviors {
		if b == name {
			return true
		}
	}
	return false
}
