// Package strategy holds the pluggable target selection and movement
// strategies a prefab can name.
package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Target selector names.
const (
	SelectClosest = "closest"
	SelectSticky  = "sticky"
	SelectRandom  = "random"
)

// Closest picks the nearest contact, lowest id first on ties.
type Closest struct{}

func (Closest) Name() string { return SelectClosest }

func (Closest) Select(_ context.Context, contacts []core.ScanContact, _ time.Duration, _ *behavior.Context) (core.ScanContact, bool) {
	return closest(contacts)
}

func closest(contacts []core.ScanContact) (core.ScanContact, bool) {
	if len(contacts) == 0 {
		return core.ScanContact{}, false
	}
	best := contacts[0]
	for _, c := range contacts[1:] {
		if c.Distance < best.Distance || (c.Distance == best.Distance && c.ConstructID < best.ConstructID) {
			best = c
		}
	}
	return best, true
}

// Sticky keeps the current target while it is still in contact and the
// decision time since it was picked has not run out. Otherwise it falls back to Closest.
type Sticky struct {
	Now func() time.Time
}

func (Sticky) Name() string { return SelectSticky }

func (s Sticky) Select(_ context.Context, contacts []core.ScanContact, decisionTime time.Duration, c *behavior.Context) (core.ScanContact, bool) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if c != nil && c.TargetID != nil && now().Sub(c.TargetSelectedTime) < decisionTime {
		for _, contact := range contacts {
			if contact.ConstructID == *c.TargetID {
				return contact, true
			}
		}
	}
	return closest(contacts)
}

// Random picks a contact uniformly. It is not safe for concurrent use.
type Random struct {
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (*Random) Name() string { return SelectRandom }

func (r *Random) Select(_ context.Context, contacts []core.ScanContact, _ time.Duration, _ *behavior.Context) (core.ScanContact, bool) {
	if len(contacts) == 0 {
		return core.ScanContact{}, false
	}
	return contacts[r.rng.IntN(len(contacts))], true
}

// TargetSelectorByName builds the named selector. An empty name means closest.
func TargetSelectorByName(name string, rng *rand.Rand, now func() time.Time) (behavior.TargetSelector, error) {
	switch name {
	case "", SelectClosest:
		return Closest{}, nil
	case SelectSticky:
		return Sticky{Now: now}, nil
	case SelectRandom:
		return NewRandom(rng), nil
	}
	return nil, fmt.Errorf("unknown target selector %q", name)
}
