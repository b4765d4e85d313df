package events

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// Type is the kind of event.
type Type string

const (
	TypeNormal Type = "normal"
	TypeCombat Type = "combat"
)

// Difficulty is an event's difficulty band.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// CombatChance is the probability of a combat event after the first one.
const CombatChance = 0.35

// Template is a canned event seed.
type Template struct {
	ID         string     `yaml:"id" json:"id"`
	Type       Type       `yaml:"type" json:"type"`
	Difficulty Difficulty `yaml:"difficulty" json:"difficulty"`
	Seed       string     `yaml:"seed" json:"seed"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

//go:embed templates.yaml
var defaultTemplates []byte

// DefaultTemplates returns the built-in template table.
func DefaultTemplates() []Template {
	ts, err := LoadTemplates(bytes.NewReader(defaultTemplates))
	if err != nil {
		panic(fmt.Sprintf("embedded templates.yaml is invalid: %v", err))
	}
	return ts
}

// LoadTemplates decodes and validates a template table.
func LoadTemplates(r io.Reader) ([]Template, error) {
	var f templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}
	if err := ValidateTemplates(f.Templates); err != nil {
		return nil, err
	}
	return f.Templates, nil
}

// ValidateTemplates checks ids are unique and every field is known.
func ValidateTemplates(ts []Template) error {
	if len(ts) == 0 {
		return fmt.Errorf("no templates defined")
	}
	seen := make(map[string]bool, len(ts))
	for i, t := range ts {
		if t.ID == "" {
			return fmt.Errorf("template %d: missing id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("template %q: duplicate id", t.ID)
		}
		seen[t.ID] = true
		switch t.Type {
		case TypeNormal, TypeCombat:
		default:
			return fmt.Errorf("template %q: unknown type %q", t.ID, t.Type)
		}
		switch t.Difficulty {
		case Easy, Medium, Hard:
		default:
			return fmt.Errorf("template %q: unknown difficulty %q", t.ID, t.Difficulty)
		}
		if t.Seed == "" {
			return fmt.Errorf("template %q: missing seed", t.ID)
		}
	}
	return nil
}

// difficultyBands holds the easy and medium weights for each event-count
// band; hard takes the remainder.
var difficultyBands = []struct {
	below        int
	easy, medium float64
}{
	{below: 3, easy: 0.7, medium: 0.25},
	{below: 7, easy: 0.3, medium: 0.5},
	{below: -1, easy: 0.1, medium: 0.4},
}

// PickDifficulty rolls a difficulty. Later events lean harder.
func PickDifficulty(eventCount int, rng roll.Source) Difficulty {
	band := difficultyBands[len(difficultyBands)-1]
	for _, b := range difficultyBands {
		if b.below >= 0 && eventCount < b.below {
			band = b
			break
		}
	}
	r := rng.Float64()
	switch {
	case r < band.easy:
		return Easy
	case r < band.easy+band.medium:
		return Medium
	default:
		return Hard
	}
}

// PickType rolls an event type. The first event is always normal.
func PickType(eventCount int, rng roll.Source) Type {
	if eventCount == 0 {
		return TypeNormal
	}
	if roll.Chance(rng, CombatChance) {
		return TypeCombat
	}
	return TypeNormal
}
