// Package convert provides functions to convert between engine events and GORM models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/dynencounters/npc-engine/internal/model"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// vec3ToPoint converts a world position to a 3D geom.Point
func vec3ToPoint(v core.Vec3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v.X(), Y: v.Y()}, Z: v.Z(), Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// playerIDsToJSON converts player ids to datatypes.JSON for DB storage.
func playerIDsToJSON(ids []core.PlayerID) datatypes.JSON {
	if len(ids) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(ids)
	return datatypes.JSON(data)
}

func CoreToShotEvent(session uuid.UUID, s core.Shot) model.ShotEvent {
	return model.ShotEvent{
		Time:         s.FiredAt,
		SessionID:    session,
		ConstructID:  uint64(s.OriginID),
		TargetID:     uint64(s.TargetID),
		WeaponName:   s.WeaponName,
		WeaponItem:   s.Weapon.WeaponItem,
		AmmoItem:     s.Weapon.AmmoItem,
		Damage:       s.Weapon.Damage,
		Range:        s.Weapon.Range,
		CrossSection: s.CrossSection,
		HitChance:    s.HitChance,
		Origin:       vec3ToPoint(s.Origin),
		HitPosition:  vec3ToPoint(s.HitPosition),
	}
}

func CoreToDestructionEvent(session uuid.UUID, e core.DestructionEvent) model.DestructionEvent {
	var target *uint64
	if e.TargetID != nil {
		id := uint64(*e.TargetID)
		target = &id
	}
	return model.DestructionEvent{
		Time:        e.DestroyedAt,
		SessionID:   session,
		ConstructID: uint64(e.ConstructID),
		PrefabName:  e.PrefabName,
		Position:    vec3ToPoint(e.Position),
		TargetID:    target,
		PlayerIDs:   playerIDsToJSON(e.PlayerIDs),
	}
}

func CoreToRadarScanEvent(session uuid.UUID, s core.RadarScan) model.RadarScanEvent {
	return model.RadarScanEvent{
		Time:        s.ScannedAt,
		SessionID:   session,
		ConstructID: uint64(s.ConstructID),
		Contacts:    s.Contacts,
		Filtered:    s.Filtered,
		DurationMs:  float32(s.Duration.Microseconds()) / 1000,
	}
}

func CoreToEnginePerformance(session uuid.UUID, p core.EnginePerformance) model.EnginePerformance {
	return model.EnginePerformance{
		Time:                p.Time,
		SessionID:           session,
		Constructs:          p.Constructs,
		PendingWrites:       p.PendingWrites,
		LastWriteDurationMs: float32(p.LastWriteDuration.Microseconds()) / 1000,
	}
}

// PrefabToModel stores the whole definition as JSON so new fields need no migration.
func PrefabToModel(d prefab.Definition) (model.Prefab, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return model.Prefab{}, fmt.Errorf("encoding prefab %q: %w", d.Name, err)
	}
	return model.Prefab{Name: d.Name, Definition: datatypes.JSON(data)}, nil
}
