package behavior

import (
	"math"
	"math/rand/v2"

	"github.com/dynencounters/npc-engine/pkg/core"
)

// RandomDirection returns a unit vector uniformly distributed on the sphere.
func RandomDirection(r *rand.Rand) core.Vec3 {
	z := 2*r.Float64() - 1
	phi := 2 * math.Pi * r.Float64()
	rad := math.Sqrt(1 - z*z)
	return core.Vec3{rad * math.Cos(phi), rad * math.Sin(phi), z}
}
