package strategy

import (
	"fmt"

	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Movement strategy names.
const (
	MoveFollow    = "follow"
	MoveIntercept = "intercept"
)

// Follow holds position at the stand-off distance on the line from the target to the NPC.
type Follow struct{}

func (Follow) Name() string { return MoveFollow }

func (Follow) MovePosition(p behavior.MovementParams) core.Vec3 {
	return standOff(p.Position, p.TargetPosition, p.Distance)
}

// Intercept leads the target by its velocity and acceleration over the
// prediction horizon, then stands off from the predicted point.
type Intercept struct{}

func (Intercept) Name() string { return MoveIntercept }

func (Intercept) MovePosition(p behavior.MovementParams) core.Vec3 {
	t := p.PredictionSeconds
	predicted := p.TargetPosition.
		Add(p.TargetVelocity.Mul(t)).
		Add(p.TargetAcceleration.Mul(0.5 * t * t))
	return standOff(p.Position, predicted, p.Distance)
}

func standOff(from, target core.Vec3, distance float64) core.Vec3 {
	dir := from.Sub(target)
	if dir.Len() == 0 {
		dir = core.Vec3{1, 0, 0}
	}
	return target.Add(dir.Normalize().Mul(distance))
}

// MovementByName builds the named movement strategy. An empty name means intercept.
func MovementByName(name string) (behavior.MovementStrategy, error) {
	switch name {
	case "", MoveIntercept:
		return Intercept{}, nil
	case MoveFollow:
		return Follow{}, nil
	}
	return nil, fmt.Errorf("unknown movement strategy %q", name)
}
