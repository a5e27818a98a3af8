// Package gamedata holds the gameplay bank: item definitions for weapons, ammo
// and the group hierarchy they live in.
package gamedata

import (
	"errors"
	"sort"
)

// AmmoRootName is the name of the group under which every ammo definition lives.
const AmmoRootName = "Ammo"

// ErrMalformedDefinition is returned when a bank file holds an invalid definition.
var ErrMalformedDefinition = errors.New("malformed gameplay definition")

// AmmoObject is the base object of an ammo definition.
type AmmoObject struct {
	WeaponType        string  `yaml:"weapon_type"`
	Scale             string  `yaml:"scale"`
	Level             int     `yaml:"level"`
	Hidden            bool    `yaml:"hidden"`
	CycleTimeModifier float64 `yaml:"cycle_time_modifier"`
}

// WeaponObject is the base object of a weapon unit definition.
type WeaponObject struct {
	WeaponType                  string  `yaml:"weapon_type"`
	Scale                       string  `yaml:"scale"`
	BaseDamage                  float64 `yaml:"base_damage"`
	BaseAccuracy                float64 `yaml:"base_accuracy"`
	BaseOptimalDistance         float64 `yaml:"base_optimal_distance"`
	FalloffDistance             float64 `yaml:"falloff_distance"`
	BaseOptimalTracking         float64 `yaml:"base_optimal_tracking"`
	FalloffTracking             float64 `yaml:"falloff_tracking"`
	BaseOptimalAimingCone       float64 `yaml:"base_optimal_aiming_cone"`
	FalloffAimingCone           float64 `yaml:"falloff_aiming_cone"`
	OptimalCrossSectionDiameter float64 `yaml:"optimal_cross_section_diameter"`
	BaseCycleTime               float64 `yaml:"base_cycle_time"`
	ReloadTime                  float64 `yaml:"reload_time"`
	MagazineVolume              float64 `yaml:"magazine_volume"`
}

// Definition is a single bank entry. Group definitions carry neither Ammo nor Weapon.
type Definition struct {
	ID          uint64        `yaml:"id"`
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"display_name"`
	Parent      string        `yaml:"parent"`
	Ammo        *AmmoObject   `yaml:"ammo,omitempty"`
	Weapon      *WeaponObject `yaml:"weapon,omitempty"`
}

// Bank is a read-only lookup of gameplay definitions.
type Bank interface {
	Definition(id uint64) (*Definition, bool)
	DefinitionByName(name string) (*Definition, bool)
	Children(id uint64) []uint64
}

// ChildrenRecursive returns every descendant of root, depth first, in id order per level.
func ChildrenRecursive(b Bank, root uint64) []uint64 {
	var out []uint64
	var walk func(id uint64)
	walk = func(id uint64) {
		for _, child := range b.Children(id) {
			out = append(out, child)
			walk(child)
		}
	}
	walk(root)
	return out
}

// MemoryBank is an immutable in-memory Bank.
type MemoryBank struct {
	byID     map[uint64]*Definition
	byName   map[string]*Definition
	children map[uint64][]uint64
}

// NewMemoryBank indexes defs. Parents are referenced by name and must exist.
func NewMemoryBank(defs []Definition) (*MemoryBank, error) {
	b := &MemoryBank{
		byID:     make(map[uint64]*Definition, len(defs)),
		byName:   make(map[string]*Definition, len(defs)),
		children: make(map[uint64][]uint64),
	}

	for i := range defs {
		d := defs[i]
		if err := validate(&d); err != nil {
			return nil, err
		}
		if _, ok := b.byID[d.ID]; ok {
			return nil, errorf("duplicate id %d", d.ID)
		}
		if _, ok := b.byName[d.Name]; ok {
			return nil, errorf("duplicate name %q", d.Name)
		}
		b.byID[d.ID] = &d
		b.byName[d.Name] = &d
	}

	for _, d := range b.byID {
		if d.Parent == "" {
			continue
		}
		parent, ok := b.byName[d.Parent]
		if !ok {
			return nil, errorf("%q references unknown parent %q", d.Name, d.Parent)
		}
		b.children[parent.ID] = append(b.children[parent.ID], d.ID)
	}
	for id := range b.children {
		ids := b.children[id]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	return b, nil
}

// Definition returns the definition with the given id.
func (b *MemoryBank) Definition(id uint64) (*Definition, bool) {
	d, ok := b.byID[id]
	return d, ok
}

// DefinitionByName returns the definition with the given name.
func (b *MemoryBank) DefinitionByName(name string) (*Definition, bool) {
	d, ok := b.byName[name]
	return d, ok
}

// Children returns the direct children of id.
func (b *MemoryBank) Children(id uint64) []uint64 {
	return b.children[id]
}

// Len returns the number of definitions.
func (b *MemoryBank) Len() int {
	return len(b.byID)
}

func validate(d *Definition) error {
	if d.ID == 0 {
		return errorf("definition %q has no id", d.Name)
	}
	if d.Name == "" {
		return errorf("definition %d has no name", d.ID)
	}
	if d.Ammo != nil && d.Weapon != nil {
		return errorf("%q cannot be both ammo and weapon", d.Name)
	}
	if d.Ammo != nil && (d.Ammo.WeaponType == "" || d.Ammo.Scale == "") {
		return errorf("ammo %q has no weapon type or scale", d.Name)
	}
	if d.Weapon != nil && (d.Weapon.WeaponType == "" || d.Weapon.Scale == "") {
		return errorf("weapon %q has no weapon type or scale", d.Name)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	return nil
}
