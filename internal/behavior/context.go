package behavior

import (
	"time"

	"github.com/dynencounters/npc-engine/internal/damage"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Context is the state of one controlled construct, shared by its behaviors
// across ticks. Only the tick owning the construct touches it.
type Context struct {
	ConstructID core.ConstructID
	Prefab      prefab.Definition

	IsAlive   bool
	StartedAt time.Time
	// TargetSelectedTime is when the current target was first picked.
	TargetSelectedTime time.Time
	// LastReselect is when target selection last ran a full scan and pick.
	LastReselect time.Time
	IdleSince    time.Time

	Position      *core.Vec3
	StartPosition *core.Vec3
	Sector        *core.Vec3

	DamageData          *damage.ConstructDamageData
	TargetDamageData    *damage.ConstructDamageData
	WeaponEffectiveness damage.Effectiveness

	TargetID             *core.ConstructID
	TargetPosition       *core.Vec3
	TargetDistance       float64
	TargetLinearVelocity core.Vec3
	TargetAcceleration   core.Vec3
	// MovePosition is where the construct should fly next.
	MovePosition *core.Vec3

	RadarContacts []core.ScanContact
	PlayerIDs     map[core.PlayerID]struct{}

	// DeltaTime is the seconds elapsed since the previous tick of this construct.
	DeltaTime float64

	ShotAccumulator        float64
	ShotWaitTime           float64
	FunctionalWeaponFactor float64

	active     map[string]bool
	properties map[string]any
}

// NewContext returns a live context for a construct spawned at now.
func NewContext(id core.ConstructID, def prefab.Definition, now time.Time) *Context {
	return &Context{
		ConstructID: id,
		Prefab:      def,
		IsAlive:     true,
		StartedAt:   now,
		IdleSince:   now,
		PlayerIDs:   make(map[core.PlayerID]struct{}),
		active:      make(map[string]bool),
		properties:  make(map[string]any),
	}
}

// Vec returns a pointer to a copy of v.
func Vec(v core.Vec3) *core.Vec3 { return &v }

func (c *Context) SetBehaviorActive(name string, active bool) {
	if c.active == nil {
		c.active = make(map[string]bool)
	}
	c.active[name] = active
}

// IsBehaviorActive defaults to true for behaviors never seen.
func (c *Context) IsBehaviorActive(name string) bool {
	active, ok := c.active[name]
	return !ok || active
}

func (c *Context) HasTarget() bool {
	return c.TargetID != nil
}

// SetTarget records a selected target. Picking the current target again
// keeps its selection time and tracking data.
func (c *Context) SetTarget(id core.ConstructID, at time.Time) {
	if c.TargetID != nil && *c.TargetID == id {
		return
	}
	c.TargetPosition = nil
	c.TargetLinearVelocity = core.Vec3{}
	c.TargetAcceleration = core.Vec3{}
	c.TargetID = &id
	c.TargetSelectedTime = at
}

// ClearTarget forgets the current target and everything derived from it.
func (c *Context) ClearTarget() {
	c.TargetID = nil
	c.TargetPosition = nil
	c.TargetDistance = 0
	c.TargetDamageData = nil
	c.TargetLinearVelocity = core.Vec3{}
	c.TargetAcceleration = core.Vec3{}
}

// HomePosition is the start position, or the home sector when there is none.
func (c *Context) HomePosition() *core.Vec3 {
	if c.StartPosition != nil {
		return Vec(*c.StartPosition)
	}
	if c.Sector != nil {
		return Vec(*c.Sector)
	}
	return nil
}

func (c *Context) AddPlayerID(id core.PlayerID) {
	if c.PlayerIDs == nil {
		c.PlayerIDs = make(map[core.PlayerID]struct{})
	}
	c.PlayerIDs[id] = struct{}{}
}

// PlayerIDList returns the engaged player ids in no particular order.
func (c *Context) PlayerIDList() []core.PlayerID {
	out := make([]core.PlayerID, 0, len(c.PlayerIDs))
	for id := range c.PlayerIDs {
		out = append(out, id)
	}
	return out
}

// SetProperty stores a behavior-private scratch value.
func (c *Context) SetProperty(key string, v any) {
	if c.properties == nil {
		c.properties = make(map[string]any)
	}
	c.properties[key] = v
}

func (c *Context) DeleteProperty(key string) {
	delete(c.properties, key)
}

// Property reads a scratch value stored with SetProperty.
// ok is false when the key is missing or holds another type.
func Property[T any](c *Context, key string) (v T, ok bool) {
	raw, found := c.properties[key]
	if !found {
		return v, false
	}
	v, ok = raw.(T)
	return v, ok
}

// Status is a read-only summary of a Context, safe to hand to other goroutines.
type Status struct {
	ConstructID   core.ConstructID  `json:"constructId"`
	Prefab        string            `json:"prefab"`
	IsAlive       bool              `json:"isAlive"`
	Position      *core.Vec3        `json:"position,omitempty"`
	TargetID      *core.ConstructID `json:"targetId,omitempty"`
	Contacts      int               `json:"contacts"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
}

func (c *Context) status() Status {
	s := Status{
		ConstructID: c.ConstructID,
		Prefab:      c.Prefab.Name,
		IsAlive:     c.IsAlive,
		Contacts:    len(c.RadarContacts),
	}
	if c.Position != nil {
		s.Position = Vec(*c.Position)
	}
	if c.TargetID != nil {
		id := *c.TargetID
		s.TargetID = &id
	}
	return s
}
