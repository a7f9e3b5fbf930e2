package dilemma

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/dilemmas.yaml
var bundledYAML []byte

// Default returns a Store over the data set bundled with the binary.
func Default() (*Store, error) {
	records, err := ParseYAML(bundledYAML)
	if err != nil {
		return nil, fmt.Errorf("bundled data: %w", err)
	}
	return NewStore(records)
}

// ParseYAML decodes a YAML sequence of records.
func ParseYAML(b []byte) ([]Record, error) {
	var records []Record
	if err := yaml.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode yaml records: %w", err)
	}
	return records, nil
}
