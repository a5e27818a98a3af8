package gamedata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// bankFile is the on-disk layout of a gameplay bank.
type bankFile struct {
	Definitions []Definition `yaml:"definitions"`
}

// LoadYAML reads a gameplay bank from a YAML file.
func LoadYAML(path string) (*MemoryBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gameplay bank: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a gameplay bank from YAML bytes.
func ParseYAML(data []byte) (*MemoryBank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing gameplay bank: %w", err)
	}
	return NewMemoryBank(f.Definitions)
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDefinition, fmt.Sprintf(format, args...))
}
