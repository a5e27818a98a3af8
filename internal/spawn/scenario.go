package spawn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dynencounters/npc-engine/internal/world"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Scenario seeds a world with constructs and safe zones and names the NPCs to spawn.
type Scenario struct {
	SafeZones  []ZoneSpec      `yaml:"safe_zones"`
	Constructs []ConstructSpec `yaml:"constructs"`
}

type ZoneSpec struct {
	Name   string     `yaml:"name"`
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

type WeaponSpec struct {
	ElementID uint64  `yaml:"element_id"`
	TypeID    uint64  `yaml:"type_id"`
	HitPoints float64 `yaml:"hit_points"`
}

// ConstructSpec is one construct. Prefab makes it an NPC.
type ConstructSpec struct {
	ID          uint64       `yaml:"id"`
	Name        string       `yaml:"name"`
	Position    [3]float64   `yaml:"position"`
	Velocity    [3]float64   `yaml:"velocity"`
	Size        float64      `yaml:"size"`
	Pilot       *uint64      `yaml:"pilot"`
	CoreUnit    uint64       `yaml:"core_unit"`
	CoreHP      float64      `yaml:"core_hp"`
	Weapons     []WeaponSpec `yaml:"weapons"`
	EnginePower float64      `yaml:"engine_power"`
	Voxels      bool         `yaml:"voxels"`

	Prefab string      `yaml:"prefab"`
	Sector *[3]float64 `yaml:"sector"`
}

// LoadScenario reads a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario and checks construct ids are unique and set.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	seen := make(map[uint64]struct{}, len(s.Constructs))
	for _, c := range s.Constructs {
		if c.ID == 0 {
			return nil, fmt.Errorf("scenario construct %q: missing id", c.Name)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("scenario construct %d listed twice", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return &s, nil
}

func (c ConstructSpec) construct() world.Construct {
	coreUnit := core.ElementID(c.CoreUnit)
	if coreUnit == 0 {
		coreUnit = 1
	}
	coreHP := c.CoreHP
	if coreHP <= 0 {
		coreHP = 1000
	}

	out := world.Construct{
		Info: core.ConstructInfo{
			ID:       core.ConstructID(c.ID),
			Name:     c.Name,
			Position: core.Vec3(c.Position),
			Size:     c.Size,
		},
		Velocities:  core.Velocities{Linear: core.Vec3(c.Velocity)},
		CoreUnit:    coreUnit,
		Elements:    map[core.ElementID]core.ElementInfo{coreUnit: {ID: coreUnit, HitPoints: coreHP, MaxHitPoints: coreHP}},
		EnginePower: c.EnginePower,
		HasVoxels:   c.Voxels,
	}
	if c.Pilot != nil {
		pilot := core.PlayerID(*c.Pilot)
		out.Info.Pilot = &pilot
	}
	for _, w := range c.Weapons {
		id := core.ElementID(w.ElementID)
		hp := w.HitPoints
		if hp <= 0 {
			hp = 100
		}
		out.Elements[id] = core.ElementInfo{ID: id, TypeID: w.TypeID, HitPoints: hp, MaxHitPoints: hp}
		out.WeaponUnits = append(out.WeaponUnits, id)
	}
	return out
}

// Populate adds every construct and safe zone to w.
func (s *Scenario) Populate(w *world.World) {
	for _, z := range s.SafeZones {
		w.AddSafeZone(core.SafeZone{Name: z.Name, Center: core.Vec3(z.Center), Radius: z.Radius})
	}
	for _, c := range s.Constructs {
		w.Add(c.construct())
	}
}

// SpawnNPCs registers every construct that names a prefab. All failures are returned together.
func (s *Scenario) SpawnNPCs(ctx context.Context, f *Factory, reg Registrar) (int, error) {
	var errs []error
	spawned := 0
	for _, c := range s.Constructs {
		if c.Prefab == "" {
			continue
		}
		at := Placement{Position: core.Vec3(c.Position)}
		if c.Sector != nil {
			sector := core.Vec3(*c.Sector)
			at.Sector = &sector
		}
		if err := f.Spawn(ctx, reg, core.ConstructID(c.ID), c.Prefab, at); err != nil {
			errs = append(errs, fmt.Errorf("construct %d: %w", c.ID, err))
			continue
		}
		spawned++
	}
	return spawned, errors.Join(errs...)
}
