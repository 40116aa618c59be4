package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LineConfig overrides the takt interval for one plant/line.
// An empty Line applies to every line of the plant.
type LineConfig struct {
	Plant       string `yaml:"plant"`
	Line        string `yaml:"line"`
	TaktSeconds int    `yaml:"takt_seconds"`
}

// LineTable resolves the takt interval for a plant/line pair
type LineTable struct {
	Lines []LineConfig `yaml:"lines"`

	defaultTakt int
}

// LoadLines reads the YAML takt table at path.
// An empty path yields a table that always answers the default.
func LoadLines(path string, defaultTakt int) (*LineTable, error) {
	if path == "" {
		return &LineTable{defaultTakt: defaultTakt}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lines file %s: %w", path, err)
	}

	return ParseLines(data, defaultTakt)
}

// ParseLines unmarshals and validates a YAML takt table
func ParseLines(data []byte, defaultTakt int) (*LineTable, error) {
	table := &LineTable{defaultTakt: defaultTakt}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("parse lines file: %w", err)
	}

	seen := make(map[string]bool, len(table.Lines))
	for i, l := range table.Lines {
		if l.Plant == "" {
			return nil, fmt.Errorf("lines[%d]: plant is required", i)
		}
		if l.TaktSeconds <= 0 {
			return nil, fmt.Errorf("lines[%d] (%s/%s): takt_seconds must be positive, got %d", i, l.Plant, l.Line, l.TaktSeconds)
		}
		key := l.Plant + "/" + l.Line
		if seen[key] {
			return nil, fmt.Errorf("lines[%d]: duplicate entry for %s", i, key)
		}
		seen[key] = true
	}

	return table, nil
}

// Takt returns the interval for plant/line: an exact match first,
// then a plant-wide entry, then the default.
func (t *LineTable) Takt(plant, line string) int {
	if t == nil {
		return 0
	}

	plantWide := 0
	for _, l := range t.Lines {
		if l.Plant != plant {
			continue
		}
		if l.Line == line {
			return l.TaktSeconds
		}
		if l.Line == "" {
			plantWide = l.TaktSeconds
		}
	}

	if plantWide > 0 {
		return plantWide
	}
	return t.defaultTakt
}

// Default returns the fallback takt interval
func (t *LineTable) Default() int {
	if t == nil {
		return 0
	}
	return t.defaultTakt
}
