package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File represents a rules YAML document.
type File struct {
	Version string           `yaml:"version"`
	Rules   []RuleDefinition `yaml:"rules"`
}

// LoadFile loads rule definitions from a YAML file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	for i := range file.Rules {
		if err := file.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
	}
	return &file, nil
}

// Marshal renders the file back to YAML.
func (f *File) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal rules file: %w", err)
	}
	return data, nil
}
