// Package behavior runs the per-construct combat logic of NPCs: a scheduler
// ticking prioritized behaviors that talk to each other only through a shared
// Context.
package behavior

import "context"

// Category orders behaviors within one construct tick. Lower runs first.
type Category int

const (
	HighPriority Category = iota
	MediumPriority
	LowPriority
)

func (c Category) String() string {
	switch c {
	case HighPriority:
		return "high"
	case MediumPriority:
		return "medium"
	case LowPriority:
		return "low"
	}
	return "unknown"
}

// Behavior is one unit of per-tick decision logic bound to a single construct.
// Tick is never called concurrently for the same construct.
type Behavior interface {
	Name() string
	Category() Category
	Initialize(ctx context.Context, c *Context) error
	Tick(ctx context.Context, c *Context) error
	IsActive() bool
}

// base carries the bookkeeping shared by the built-in behaviors. The active
// flag lives on the Context so that it outlives the behavior value.
type base struct {
	name     string
	category Category
	bc       *Context
}

func (b *base) Name() string       { return b.name }
func (b *base) Category() Category { return b.category }

func (b *base) Initialize(_ context.Context, c *Context) error {
	b.bc = c
	c.SetBehaviorActive(b.name, true)
	return nil
}

func (b *base) IsActive() bool {
	return b.bc == nil || b.bc.IsBehaviorActive(b.name)
}

func (b *base) deactivate(c *Context) {
	c.SetBehaviorActive(b.name, false)
}

// HeartbeatSource is implemented by behaviors that record the construct
// heartbeat themselves. The scheduler then stops refreshing it after each
// tick, so a construct whose source keeps failing is evicted.
type HeartbeatSource interface {
	RecordsHeartbeat() bool
}

func ownsHeartbeat(behaviors []Behavior) bool {
	for _, b := range behaviors {
		if hs, ok := b.(HeartbeatSource); ok && hs.RecordsHeartbeat() {
			return true
		}
	}
	return false
}
