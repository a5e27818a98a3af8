package convert

import (
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/dynencounters/npc-engine/internal/model"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// pointToVec3 converts a geom.Point back to a world position. Empty points map to the origin.
func pointToVec3(p geom.Point) core.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}
	}
	return core.Vec3{coord.XY.X, coord.XY.Y, coord.Z}
}

func ShotEventToCore(e model.ShotEvent) core.Shot {
	return core.Shot{
		WeaponName:   e.WeaponName,
		Origin:       pointToVec3(e.Origin),
		OriginID:     core.ConstructID(e.ConstructID),
		TargetID:     core.ConstructID(e.TargetID),
		CrossSection: e.CrossSection,
		HitPosition:  pointToVec3(e.HitPosition),
		HitChance:    e.HitChance,
		FiredAt:      e.Time,
		Weapon: core.WeaponParams{
			WeaponItem: e.WeaponItem,
			AmmoItem:   e.AmmoItem,
			Damage:     e.Damage,
			Range:      e.Range,
		},
	}
}

func DestructionEventToCore(e model.DestructionEvent) core.DestructionEvent {
	out := core.DestructionEvent{
		ConstructID: core.ConstructID(e.ConstructID),
		PrefabName:  e.PrefabName,
		Position:    pointToVec3(e.Position),
		DestroyedAt: e.Time,
	}
	if e.TargetID != nil {
		id := core.ConstructID(*e.TargetID)
		out.TargetID = &id
	}
	if len(e.PlayerIDs) > 0 {
		_ = json.Unmarshal(e.PlayerIDs, &out.PlayerIDs)
	}
	return out
}

func RadarScanEventToCore(e model.RadarScanEvent) core.RadarScan {
	return core.RadarScan{
		ConstructID: core.ConstructID(e.ConstructID),
		Contacts:    e.Contacts,
		Filtered:    e.Filtered,
		Duration:    time.Duration(float64(e.DurationMs) * float64(time.Millisecond)),
		ScannedAt:   e.Time,
	}
}

func ModelToPrefab(p model.Prefab) (prefab.Definition, error) {
	var d prefab.Definition
	if err := json.Unmarshal(p.Definition, &d); err != nil {
		return prefab.Definition{}, fmt.Errorf("decoding prefab %q: %w", p.Name, err)
	}
	return d, nil
}
