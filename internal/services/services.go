// Package services declares the host game server collaborators the behavior
// engine consumes. Implementations live with the host integration; the engine
// only sees these interfaces.
package services

import (
	"context"
	"time"

	"github.com/dynencounters/npc-engine/pkg/core"
)

// ConstructService answers questions about constructs and acts on them.
type ConstructService interface {
	// Info returns the construct snapshot. exists is false when the construct is gone.
	Info(ctx context.Context, id core.ConstructID) (info core.ConstructInfo, exists bool, err error)
	Velocities(ctx context.Context, id core.ConstructID) (core.Velocities, error)
	Exists(ctx context.Context, id core.ConstructID) (bool, error)
	IsInSafeZone(ctx context.Context, id core.ConstructID) (bool, error)
	IsBeingControlled(ctx context.Context, id core.ConstructID) (bool, error)
	TakeOverPiloting(ctx context.Context, id core.ConstructID) error
	ActivateShields(ctx context.Context, id core.ConstructID) error
}

// ElementService reads the elements installed on a construct.
type ElementService interface {
	CoreUnit(ctx context.Context, id core.ConstructID) (core.ElementID, error)
	Element(ctx context.Context, id core.ConstructID, elementID core.ElementID) (core.ElementInfo, error)
	WeaponUnits(ctx context.Context, id core.ConstructID) ([]core.ElementInfo, error)
	SpaceEnginesPower(ctx context.Context, id core.ConstructID) (float64, error)
}

// CachedElementService is an ElementService whose results may be served from a cache.
type CachedElementService interface {
	ElementService
	// NoCache returns a view that always queries the underlying service.
	NoCache() ElementService
	// ResetExpiration extends the lifetime of every cached entry of id.
	ResetExpiration(id core.ConstructID)
}

// ScanService finds radar contacts.
type ScanService interface {
	ScanForContacts(ctx context.Context, origin core.ConstructID, position core.Vec3, radius float64) ([]core.ScanContact, error)
}

// SafeZoneService lists the declared safe zones.
type SafeZoneService interface {
	SafeZones(ctx context.Context) ([]core.SafeZone, error)
}

// VoxelService answers voxel queries against a construct's hull.
type VoxelService interface {
	// QueryRandomPoint returns a random point on the target hull, in target-local coordinates.
	QueryRandomPoint(ctx context.Context, target core.ConstructID, fromLocal core.Vec3) (local core.Vec3, ok bool, err error)
	// TriggerConstructCache asks the voxel service to load a construct's voxel data.
	TriggerConstructCache(ctx context.Context, id core.ConstructID) error
}

// SceneGraph converts between world and construct-relative coordinates.
type SceneGraph interface {
	ResolveRelativeLocation(ctx context.Context, world core.Vec3, relativeTo core.ConstructID) (core.Vec3, error)
}

// SectorPool manages the lifetime of active encounter sectors.
type SectorPool interface {
	ExtendExpiration(ctx context.Context, sector core.Vec3, d time.Duration) error
}

// Notifier sends HUD notifications to a targeted construct's pilot.
type Notifier interface {
	SendIdentification(ctx context.Context, target core.ConstructID, data core.TargetingData) error
	SendAttackWarning(ctx context.Context, target core.ConstructID, data core.TargetingData) error
}

// ShotChannel dispatches shots to the host for resolution.
type ShotChannel interface {
	Fire(ctx context.Context, shot core.Shot) error
}

// DestructionSink is told when a controlled construct is confirmed destroyed.
type DestructionSink interface {
	ConstructDestroyed(ctx context.Context, e core.DestructionEvent) error
}
