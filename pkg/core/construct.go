// pkg/core/construct.go
package core

import "github.com/go-gl/mathgl/mgl64"

// OneSU is one space unit expressed in metres.
const OneSU = 200_000.0

// Vec3 is a world or construct-local position in metres.
type Vec3 = mgl64.Vec3

// Quat is a construct orientation.
type Quat = mgl64.Quat

// ConstructID identifies a construct (ship, station, core) on the host server.
type ConstructID uint64

// ElementID identifies an element installed on a construct.
type ElementID uint64

// PlayerID identifies a player or bot account.
type PlayerID uint64

// ConstructInfo is a snapshot of a construct's transform and occupancy.
type ConstructInfo struct {
	ID              ConstructID
	Name            string
	Position        Vec3
	Rotation        Quat
	Size            float64
	Pilot           *PlayerID
	LinearVelocity  Vec3
	AngularVelocity Vec3
}

// Velocities holds the linear and angular velocity of a construct.
type Velocities struct {
	Linear  Vec3
	Angular Vec3
}

// ElementInfo describes one installed element.
// TypeID references the gameplay bank definition of the element.
type ElementInfo struct {
	ID            ElementID
	TypeID        uint64
	LocalPosition Vec3
	HitPoints     float64
	MaxHitPoints  float64
	Destroyed     bool
}

// IsCoreDestroyed reports whether the element, read as a core unit, no longer holds the construct together.
func (e ElementInfo) IsCoreDestroyed() bool {
	return e.Destroyed || (e.MaxHitPoints > 0 && e.HitPoints <= 0)
}

// IsFunctional reports whether the element can still operate.
func (e ElementInfo) IsFunctional() bool {
	return !e.IsCoreDestroyed()
}

// ScanContact is a radar contact found around a scanning construct.
type ScanContact struct {
	ConstructID ConstructID
	Position    Vec3
	Distance    float64
}

// SafeZone is a spherical region where combat is not allowed.
type SafeZone struct {
	Name   string
	Center Vec3
	Radius float64
}

// Contains reports whether p lies inside the zone.
func (z SafeZone) Contains(p Vec3) bool {
	return p.Sub(z.Center).Len() <= z.Radius
}

// InAnySafeZone reports whether p lies inside at least one of zones.
func InAnySafeZone(zones []SafeZone, p Vec3) bool {
	for _, z := range zones {
		if z.Contains(p) {
			return true
		}
	}
	return false
}
