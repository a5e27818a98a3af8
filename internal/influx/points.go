package influx

import (
	"strconv"

	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/dynencounters/npc-engine/pkg/core"
)

func id(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ShotPoint is one aggregated shot in the combat bucket.
func ShotPoint(session uuid.UUID, s core.Shot) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("shot").
		AddTag("session", session.String()).
		AddTag("construct", id(uint64(s.OriginID))).
		AddTag("target", id(uint64(s.TargetID))).
		AddTag("weapon", s.WeaponName).
		AddField("damage", s.Weapon.Damage).
		AddField("range", s.Weapon.Range).
		AddField("distance", s.Origin.Sub(s.TargetPosition).Len()).
		AddField("cross_section", s.CrossSection).
		AddField("hit_chance", s.HitChance).
		SetTime(s.FiredAt)
}

// DestructionPoint marks a controlled construct destroyed.
func DestructionPoint(session uuid.UUID, e core.DestructionEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("destruction").
		AddTag("session", session.String()).
		AddTag("construct", id(uint64(e.ConstructID))).
		AddTag("prefab", e.PrefabName).
		AddField("players", len(e.PlayerIDs)).
		SetTime(e.DestroyedAt)
	if e.TargetID != nil {
		p.AddField("target", id(uint64(*e.TargetID)))
	}
	return p
}

// RadarScanPoint records the size and cost of one target scan.
func RadarScanPoint(session uuid.UUID, s core.RadarScan) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("radar_scan").
		AddTag("session", session.String()).
		AddTag("construct", id(uint64(s.ConstructID))).
		AddField("contacts", s.Contacts).
		AddField("filtered", s.Filtered).
		AddField("duration_ms", float64(s.Duration.Microseconds())/1000).
		SetTime(s.ScannedAt)
}

// PerformancePoint is one engine health sample.
func PerformancePoint(session uuid.UUID, p core.EnginePerformance) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("engine").
		AddTag("session", session.String()).
		AddField("constructs", p.Constructs).
		AddField("pending_writes", p.PendingWrites).
		AddField("last_write_ms", float64(p.LastWriteDuration.Microseconds())/1000).
		SetTime(p.Time)
}
