package damage

// ConstructDamageData is a construct's damage profile: one entry per distinct
// functional weapon type.
type ConstructDamageData struct {
	Weapons []WeaponItem
}

// HasWeapons reports whether the profile holds at least one weapon.
func (d *ConstructDamageData) HasWeapons() bool {
	return d != nil && len(d.Weapons) > 0
}

// BestDamagingWeapon returns the weapon with the highest base damage, or nil.
func (d *ConstructDamageData) BestDamagingWeapon() *WeaponItem {
	if !d.HasWeapons() {
		return nil
	}
	best := &d.Weapons[0]
	for i := range d.Weapons[1:] {
		w := &d.Weapons[i+1]
		if w.BaseDamage > best.BaseDamage {
			best = w
		}
	}
	return best
}

// BestWeaponByDistance ranks weapons by damage scaled by distance band and
// the functional fraction of installed guns. Weapons with no functional gun or
// out of range do not qualify; nil is returned when none does.
func (d *ConstructDamageData) BestWeaponByDistance(distance float64, eff Effectiveness) *WeaponItem {
	if !d.HasWeapons() {
		return nil
	}
	var best *WeaponItem
	bestScore := 0.0
	for i := range d.Weapons {
		w := &d.Weapons[i]
		fraction := eff.Fraction(w.ItemTypeName)
		if fraction <= 0 {
			continue
		}
		score := w.BaseDamage * w.DistanceEffectiveness(distance) * fraction
		if score > bestScore {
			best, bestScore = w, score
		}
	}
	return best
}

// WeaponCount is the functional and total count of one weapon type on a construct.
type WeaponCount struct {
	Functional int
	Total      int
}

// Effectiveness maps weapon type names to their installed counts.
type Effectiveness map[string]WeaponCount

// Factors returns the functional and total count for a weapon type.
func (e Effectiveness) Factors(itemTypeName string) (functional, total int) {
	c := e[itemTypeName]
	return c.Functional, c.Total
}

// Fraction is functional/total clamped to [0,1]; 0 when unknown.
func (e Effectiveness) Fraction(itemTypeName string) float64 {
	functional, total := e.Factors(itemTypeName)
	if total <= 0 || functional <= 0 {
		return 0
	}
	f := float64(functional) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// HasAnyFunctional reports whether at least one weapon of any type still works.
func (e Effectiveness) HasAnyFunctional() bool {
	for _, c := range e {
		if c.Functional > 0 {
			return true
		}
	}
	return false
}
