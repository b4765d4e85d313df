package combat

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
)

// MaxEnemies caps the size of one encounter.
const MaxEnemies = 4

// DefaultEnemyType replaces any type missing from the table.
const DefaultEnemyType = "bandit"

// EnemyTemplate is one row of the enemy table.
type EnemyTemplate struct {
	Type      string   `yaml:"type"`
	Name      string   `yaml:"name"`
	HP        int      `yaml:"hp"`
	Attack    int      `yaml:"attack"`
	Color     string   `yaml:"color"`
	Sprite    string   `yaml:"sprite"`
	Abilities []string `yaml:"abilities"`
}

// EnemyTable maps enemy type to template.
type EnemyTable map[string]EnemyTemplate

type enemyFile struct {
	Enemies []EnemyTemplate `yaml:"enemies"`
}

//go:embed enemies.yaml
var defaultEnemies []byte

// DefaultEnemyTable returns the built-in enemy table.
func DefaultEnemyTable() EnemyTable {
	t, err := LoadEnemyTable(bytes.NewReader(defaultEnemies))
	if err != nil {
		panic(fmt.Sprintf("embedded enemies.yaml is invalid: %v", err))
	}
	return t
}

// LoadEnemyTable decodes and validates an enemy table. The table must define
// DefaultEnemyType.
func LoadEnemyTable(r io.Reader) (EnemyTable, error) {
	var f enemyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode enemies: %w", err)
	}
	t := make(EnemyTable, len(f.Enemies))
	for i, e := range f.Enemies {
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		switch {
		case e.Type == "":
			return nil, fmt.Errorf("enemy %d: missing type", i)
		case e.HP <= 0:
			return nil, fmt.Errorf("enemy %q: hp must be positive", e.Type)
		case e.Attack < 0:
			return nil, fmt.Errorf("enemy %q: attack must not be negative", e.Type)
		}
		if _, dup := t[e.Type]; dup {
			return nil, fmt.Errorf("enemy %q: duplicate type", e.Type)
		}
		t[e.Type] = e
	}
	if _, ok := t[DefaultEnemyType]; !ok {
		return nil, fmt.Errorf("enemy table must define %q", DefaultEnemyType)
	}
	return t, nil
}

// Types lists the known enemy types, sorted.
func (t EnemyTable) Types() []string {
	types := make([]string, 0, len(t))
	for k := range t {
		types = append(types, k)
	}
	slices.Sort(types)
	return types
}

// Spawn builds enemies from suggested specs. At most MaxEnemies are created;
// unknown types become DefaultEnemyType and names are title-cased and made
// unique within the encounter.
func (t EnemyTable) Spawn(specs []agentai.EnemySpec) []*actor.Enemy {
	if len(specs) > MaxEnemies {
		specs = specs[:MaxEnemies]
	}
	titleCaser := cases.Title(language.English)
	taken := make(map[string]bool, len(specs))
	enemies := make([]*actor.Enemy, 0, len(specs))
	for _, s := range specs {
		tpl, ok := t[strings.ToLower(strings.TrimSpace(s.Type))]
		if !ok {
			tpl = t[DefaultEnemyType]
		}

		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = tpl.Name
		}
		name = titleCaser.String(name)
		base := name
		for n := 2; taken[name]; n++ {
			name = base + " " + strconv.Itoa(n)
		}
		taken[name] = true

		enemies = append(enemies, &actor.Enemy{
			Name:      name,
			Type:      tpl.Type,
			HP:        tpl.HP,
			MaxHP:     tpl.HP,
			Attack:    tpl.Attack,
			Color:     tpl.Color,
			SpriteKey: tpl.Sprite,
			Abilities: append([]string(nil), tpl.Abilities...),
		})
	}
	return enemies
}
