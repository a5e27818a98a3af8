package damage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dynencounters/npc-engine/internal/gamedata"
	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// Service builds damage profiles and weapon counts for constructs.
type Service struct {
	elements services.ElementService
	bank     gamedata.Bank
	index    *Index
	logger   *slog.Logger
}

func NewService(elements services.ElementService, bank gamedata.Bank, index *Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{elements: elements, bank: bank, index: index, logger: logger}
}

// ConstructDamage returns the construct's damage profile. A construct without
// weapon units gets an empty profile and no error.
func (s *Service) ConstructDamage(ctx context.Context, id core.ConstructID) (*ConstructDamageData, error) {
	units, err := s.elements.WeaponUnits(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("weapon units of %d: %w", id, err)
	}
	if len(units) == 0 {
		return &ConstructDamageData{}, nil
	}
	if err := s.index.Build(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(units))
	data := &ConstructDamageData{}
	for _, unit := range units {
		def, ok := s.weaponDefinition(unit.TypeID)
		if !ok {
			s.logger.Warn("weapon unit has no weapon definition",
				"construct", id, "element", unit.ID, "type", unit.TypeID)
			continue
		}
		if def.Weapon.BaseDamage <= 0 {
			continue
		}
		if _, dup := seen[def.Name]; dup {
			continue
		}
		seen[def.Name] = struct{}{}

		key := WeaponTypeScale{WeaponType: def.Weapon.WeaponType, Scale: def.Weapon.Scale}
		data.Weapons = append(data.Weapons, NewWeaponItem(unit.ID, def, s.index.Ammo(key)))
	}
	return data, nil
}

// WeaponsEffectiveness counts functional and total weapon units per weapon type.
func (s *Service) WeaponsEffectiveness(ctx context.Context, id core.ConstructID) (Effectiveness, error) {
	units, err := s.elements.WeaponUnits(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("weapon units of %d: %w", id, err)
	}
	eff := make(Effectiveness)
	for _, unit := range units {
		def, ok := s.weaponDefinition(unit.TypeID)
		if !ok {
			continue
		}
		c := eff[def.Name]
		c.Total++
		if unit.IsFunctional() {
			c.Functional++
		}
		eff[def.Name] = c
	}
	return eff, nil
}

func (s *Service) weaponDefinition(typeID uint64) (*gamedata.Definition, bool) {
	def, ok := s.bank.Definition(typeID)
	if !ok || def.Weapon == nil {
		return nil, false
	}
	return def, true
}
