package model

import (
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Prefab{},
	&ShotEvent{},
	&DestructionEvent{},
	&RadarScanEvent{},
	&EnginePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// Session is one engine run. Every event row points at the session it was recorded in.
type Session struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primarykey"`
	Name      string    `json:"name" gorm:"size:127;index:idx_session_name"`
	StartedAt time.Time `json:"startedAt" gorm:"index:idx_session_started_at"`
}

func (*Session) TableName() string {
	return "sessions"
}

// EnginePerformance is the model for periodic engine health samples
type EnginePerformance struct {
	Time                time.Time `json:"time" gorm:"index:idx_engineperformance_time"`
	SessionID           uuid.UUID `json:"sessionId" gorm:"type:uuid;index:idx_engineperformance_session_id"`
	Session             Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Constructs          int       `json:"constructs"`
	PendingWrites       int       `json:"pendingWrites"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*EnginePerformance) TableName() string {
	return "engine_performances"
}

////////////////////////
// PREFABS
////////////////////////

// Prefab stores an NPC class definition as JSON, keyed by its unique name.
type Prefab struct {
	gorm.Model
	Name       string         `json:"name" gorm:"size:127;uniqueIndex:idx_prefab_name"`
	Definition datatypes.JSON `json:"definition"`
}

func (*Prefab) TableName() string {
	return "prefabs"
}

////////////////////////
// EVENTS
////////////////////////

// ShotEvent is one aggregated shot fired by a controlled construct
type ShotEvent struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time"`
	SessionID    uuid.UUID `json:"sessionId" gorm:"type:uuid;index:idx_shotevent_session_id"`
	Session      Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ConstructID  uint64    `json:"constructId" gorm:"index:idx_shotevent_construct_id"` // shooter
	TargetID     uint64    `json:"targetId" gorm:"index:idx_shotevent_target_id"`
	WeaponName   string    `json:"weaponName" gorm:"size:64"`
	WeaponItem   string    `json:"weaponItem" gorm:"size:127"`
	AmmoItem     string    `json:"ammoItem" gorm:"size:127"`
	Damage       float64   `json:"damage"`
	Range        float64   `json:"range"`
	CrossSection float64   `json:"crossSection"`
	HitChance    float64   `json:"hitChance"`

	Origin      geom.Point `json:"origin"`      // shooter position
	HitPosition geom.Point `json:"hitPosition"` // world position of the impact point
}

func (*ShotEvent) TableName() string {
	return "shot_events"
}

// DestructionEvent is written once when a controlled construct's core is destroyed
type DestructionEvent struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time      `json:"time"`
	SessionID   uuid.UUID      `json:"sessionId" gorm:"type:uuid;index:idx_destructionevent_session_id"`
	Session     Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ConstructID uint64         `json:"constructId" gorm:"index:idx_destructionevent_construct_id"`
	PrefabName  string         `json:"prefabName" gorm:"size:127"`
	Position    geom.Point     `json:"position"`
	TargetID    *uint64        `json:"targetId"` // construct engaged at the time, if any
	PlayerIDs   datatypes.JSON `json:"playerIds"`
}

func (*DestructionEvent) TableName() string {
	return "destruction_events"
}

// RadarScanEvent summarizes one target selection scan
type RadarScanEvent struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time"`
	SessionID   uuid.UUID `json:"sessionId" gorm:"type:uuid;index:idx_radarscanevent_session_id"`
	Session     Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ConstructID uint64    `json:"constructId" gorm:"index:idx_radarscanevent_construct_id"`
	Contacts    int       `json:"contacts"`
	Filtered    int       `json:"filtered"`
	DurationMs  float32   `json:"durationMs"`
}

func (*RadarScanEvent) TableName() string {
	return "radar_scan_events"
}
