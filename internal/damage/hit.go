package damage

import "math"

// minCloseRangeHitRatio is the floor applied inside twice the optimal distance.
const minCloseRangeHitRatio = 0.7

// HitRatio estimates the chance that a shot from w lands at distance.
// Accuracy drops linearly once past optimal range, over five falloff lengths.
func HitRatio(w *WeaponItem, distance float64) float64 {
	factor := 1.0
	if excess := distance - w.BaseOptimalDistance; excess > 0 && w.FalloffDistance > 0 {
		factor = 1 - excess/(w.FalloffDistance*5)
	}
	hit := w.BaseAccuracy * factor
	if distance < 2*w.BaseOptimalDistance {
		hit = math.Max(hit, minCloseRangeHitRatio)
	}
	return math.Max(0, math.Min(1, hit))
}
