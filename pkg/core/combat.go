// pkg/core/combat.go
package core

import "time"

// TargetingData is sent along with identification and attack notifications.
type TargetingData struct {
	ConstructID   ConstructID
	OwnerID       PlayerID
	ConstructName string
}

// WeaponParams are the outgoing parameters of a single (aggregated) shot.
type WeaponParams struct {
	WeaponItem            string
	AmmoItem              string
	Damage                float64
	Range                 float64
	BaseAccuracy          float64
	BaseOptimalDistance   float64
	FalloffDistance       float64
	BaseOptimalTracking   float64
	FalloffTracking       float64
	BaseOptimalAimingCone float64
	FalloffAimingCone     float64
	OptimalCrossSection   float64
	FireCooldown          float64
	AreaOfEffect          bool
	AreaOfEffectRange     float64
	EffectDuration        float64
	EffectStrength        float64
}

// Shot carries everything the host needs to resolve one fired shot.
type Shot struct {
	WeaponName     string
	Origin         Vec3
	OriginID       ConstructID
	OriginSize     float64
	TargetID       ConstructID
	TargetPosition Vec3
	Weapon         WeaponParams
	CrossSection   float64
	HitPosition    Vec3
	// HitChance is the estimated chance the shot lands at the distance it was fired from.
	HitChance float64
	FiredAt   time.Time
}

// DestructionEvent is emitted once a controlled construct's core is confirmed destroyed.
type DestructionEvent struct {
	ConstructID ConstructID
	PrefabName  string
	Position    Vec3
	DestroyedAt time.Time
	// TargetID is the construct that was being engaged at the time, if any.
	TargetID *ConstructID
	// PlayerIDs are the pilots that were engaged during the construct's lifetime.
	PlayerIDs []PlayerID
}

// RadarScan summarizes one target selection scan for telemetry.
type RadarScan struct {
	ConstructID ConstructID
	Contacts    int
	Filtered    int
	Duration    time.Duration
	ScannedAt   time.Time
}

// EnginePerformance is a periodic health sample of the engine.
type EnginePerformance struct {
	Time              time.Time
	Constructs        int
	PendingWrites     int
	LastWriteDuration time.Duration
}
