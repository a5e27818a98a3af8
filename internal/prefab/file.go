package prefab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type prefabFile struct {
	Prefabs []Definition `yaml:"prefabs"`
}

// LoadYAML reads and validates every prefab in a YAML file.
func LoadYAML(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prefab file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates prefabs. Duplicate names are rejected.
func ParseYAML(data []byte) ([]Definition, error) {
	var f prefabFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing prefab file: %w", err)
	}
	names := make(map[string]struct{}, len(f.Prefabs))
	out := make([]Definition, 0, len(f.Prefabs))
	for i := range f.Prefabs {
		def := f.Prefabs[i].WithDefaults()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := names[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate prefab %q", ErrInvalidPrefab, def.Name)
		}
		names[def.Name] = struct{}{}
		out = append(out, def)
	}
	return out, nil
}
