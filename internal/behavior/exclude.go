package behavior

import "github.com/dynencounters/npc-engine/pkg/core"

// excludedConstructs are non-combatant resource cores that must never be targeted.
var excludedConstructs = map[core.ConstructID]struct{}{
	990001: {}, 990002: {}, 990003: {}, 990004: {}, 990005: {},
	990006: {}, 990007: {}, 990008: {}, 990009: {}, 990010: {},
}

// IsExcluded reports whether id is on the never-target list.
func IsExcluded(id core.ConstructID) bool {
	_, ok := excludedConstructs[id]
	return ok
}

// ExcludedConstructIDs returns the never-target list.
func ExcludedConstructIDs() []core.ConstructID {
	out := make([]core.ConstructID, 0, len(excludedConstructs))
	for id := range excludedConstructs {
		out = append(out, id)
	}
	return out
}
