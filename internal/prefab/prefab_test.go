package prefab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefabs = `
prefabs:
  - name: pirate-frigate
    owner_id: 4
    ammo_tier: 2
    ammo_variant: blue
    max_weapon_count: 4
    target_distance: 20000
    decision_time_seconds: 10
    mods:
      weapon:
        damage: 1.5
    behaviors: [alive, select-target, aggressive]
    target_selector: closest
    movement: intercept
    sector_expiration_seconds: 1800
`

func validDefinition() Definition {
	return Definition{
		Name:           "pirate",
		AmmoTier:       2,
		AmmoVariant:    "blue",
		MaxWeaponCount: 2,
		Behaviors:      []string{BehaviorAlive, BehaviorAggressive},
	}
}

func TestParseYAML(t *testing.T) {
	defs, err := ParseYAML([]byte(testPrefabs))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, "pirate-frigate", d.Name)
	assert.Equal(t, 2, d.AmmoTier)
	assert.Equal(t, 1.5, d.Mods.Weapon.Damage)
	assert.Equal(t, 1.0, d.Mods.Weapon.CycleTime, "unset modifiers default to 1")
	assert.Equal(t, 10*time.Second, d.DecisionTime())
	assert.Equal(t, 30*time.Minute, d.SectorExpiration())
	assert.True(t, d.HasBehavior(BehaviorSelectTarget))
}

func TestParseYAML_Duplicate(t *testing.T) {
	_, err := ParseYAML([]byte(testPrefabs + `
  - name: pirate-frigate
    ammo_tier: 1
    ammo_variant: red
    max_weapon_count: 1
    behaviors: [alive]
`))
	assert.ErrorIs(t, err, ErrInvalidPrefab)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefabs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPrefabs), 0o644))

	defs, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing name", func(d *Definition) { d.Name = "" }},
		{"tier zero", func(d *Definition) { d.AmmoTier = 0 }},
		{"missing variant", func(d *Definition) { d.AmmoVariant = "" }},
		{"no weapons allowed", func(d *Definition) { d.MaxWeaponCount = 0 }},
		{"negative distance", func(d *Definition) { d.TargetDistance = -1 }},
		{"no behaviors", func(d *Definition) { d.Behaviors = nil }},
		{"unknown behavior", func(d *Definition) { d.Behaviors = []string{"dance"} }},
		{"duplicate behavior", func(d *Definition) { d.Behaviors = []string{BehaviorAlive, BehaviorAlive} }},
	}

	require.NoError(t, (&Definition{
		Name: "ok", AmmoTier: 1, AmmoVariant: "x", MaxWeaponCount: 1, Behaviors: []string{BehaviorAlive},
	}).Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrInvalidPrefab)
		})
	}
}

func TestWithDefaults_CopiesBehaviors(t *testing.T) {
	d := validDefinition()
	out := d.WithDefaults()
	out.Behaviors[0] = "changed"
	assert.Equal(t, BehaviorAlive, d.Behaviors[0])
	assert.Equal(t, 1.0, out.Mods.Weapon.Damage)
}
