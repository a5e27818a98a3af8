package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBank = `
definitions:
  - id: 1
    name: Ammo
  - id: 2
    name: AmmoCannonSmall
    parent: Ammo
  - id: 3
    name: AmmoCannonSmallKineticAdvancedAgile
    parent: AmmoCannonSmall
    ammo: { weapon_type: cannon, scale: s, level: 2 }
  - id: 4
    name: AmmoCannonSmallThermicAdvancedAgile
    parent: AmmoCannonSmall
    ammo: { weapon_type: cannon, scale: s, level: 2, hidden: true }
  - id: 100
    name: WeaponCannonSmallAgile
    display_name: Agile Cannon S
    weapon: { weapon_type: cannon, scale: s, base_damage: 50 }
`

func TestParseYAML(t *testing.T) {
	b, err := ParseYAML([]byte(testBank))
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())

	root, ok := b.DefinitionByName(AmmoRootName)
	require.True(t, ok)
	assert.Equal(t, []uint64{2}, b.Children(root.ID))
	assert.Equal(t, []uint64{2, 3, 4}, ChildrenRecursive(b, root.ID))

	w, ok := b.Definition(100)
	require.True(t, ok)
	require.NotNil(t, w.Weapon)
	assert.Equal(t, "Agile Cannon S", w.DisplayName)
	assert.Equal(t, 50.0, w.Weapon.BaseDamage)

	a, ok := b.Definition(3)
	require.True(t, ok)
	assert.Equal(t, a.Name, a.DisplayName, "display name defaults to name")
}

func TestParseYAML_Malformed(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown parent", "definitions: [{id: 1, name: A, parent: Nope}]"},
		{"duplicate id", "definitions: [{id: 1, name: A}, {id: 1, name: B}]"},
		{"duplicate name", "definitions: [{id: 1, name: A}, {id: 2, name: A}]"},
		{"missing id", "definitions: [{name: A}]"},
		{"ammo without type", "definitions: [{id: 1, name: A, ammo: {scale: s}}]"},
		{"ammo and weapon", "definitions: [{id: 1, name: A, ammo: {weapon_type: c, scale: s}, weapon: {weapon_type: c, scale: s}}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDefinition)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testBank), 0644))

	b, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
