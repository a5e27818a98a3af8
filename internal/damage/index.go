package damage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dynencounters/npc-engine/internal/gamedata"
)

// ErrNoAmmoRoot is returned when the bank has no ammo root definition.
var ErrNoAmmoRoot = errors.New("ammo root definition not found")

// Index maps weapon type and scale to the visible ammo leaves under the bank's
// ammo root. It is built on first use and never rebuilt.
type Index struct {
	bank gamedata.Bank

	once sync.Once
	ammo map[WeaponTypeScale][]AmmoItem
	err  error
}

func NewIndex(bank gamedata.Bank) *Index {
	return &Index{bank: bank}
}

// Build forces construction and returns the build error, if any.
func (i *Index) Build() error {
	i.once.Do(i.build)
	return i.err
}

// Ammo returns the ammo compatible with key. The result is shared; do not modify it.
func (i *Index) Ammo(key WeaponTypeScale) []AmmoItem {
	if i.Build() != nil {
		return nil
	}
	return i.ammo[key]
}

// Len returns the number of weapon type and scale keys.
func (i *Index) Len() int {
	if i.Build() != nil {
		return 0
	}
	return len(i.ammo)
}

func (i *Index) build() {
	root, ok := i.bank.DefinitionByName(gamedata.AmmoRootName)
	if !ok {
		i.err = fmt.Errorf("build ammo index: %w", ErrNoAmmoRoot)
		return
	}

	i.ammo = make(map[WeaponTypeScale][]AmmoItem)
	for _, id := range gamedata.ChildrenRecursive(i.bank, root.ID) {
		def, ok := i.bank.Definition(id)
		if !ok || def.Ammo == nil || def.Ammo.Hidden {
			continue
		}
		// only leaves are real ammo; intermediate nodes are categories
		if len(i.bank.Children(id)) > 0 {
			continue
		}
		key := WeaponTypeScale{WeaponType: def.Ammo.WeaponType, Scale: def.Ammo.Scale}
		i.ammo[key] = append(i.ammo[key], AmmoItem{
			ID:                def.ID,
			ItemTypeName:      def.Name,
			DisplayName:       def.DisplayName,
			Level:             def.Ammo.Level,
			Hidden:            def.Ammo.Hidden,
			CycleTimeModifier: def.Ammo.CycleTimeModifier,
		})
	}
}
