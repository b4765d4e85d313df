package actor

import (
	"math"
	"strings"

	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// Base stat ranges rolled at party setup.
const (
	MinMaxHP  = 80
	MaxMaxHP  = 120
	MinAttack = 3
	MaxAttack = 7
	MinMind   = 3
	MaxMind   = 7

	// Attack and mind never drop below this floor.
	StatFloor = 1
)

// StatChange is a delta applied to an agent after a judgement.
type StatChange struct {
	HP   int `json:"hp"`
	Mind int `json:"mind"`
}

// Agent is one member of the player's party. Agents are never removed from
// the roster; a dead agent simply has HP == 0.
type Agent struct {
	Name           string   `json:"name"`
	HP             int      `json:"hp"`
	MaxHP          int      `json:"max_hp"`
	Attack         int      `json:"attack"`
	Mind           int      `json:"mind"`
	Personality    string   `json:"personality,omitempty"`
	Flaw           string   `json:"flaw,omitempty"`
	SignatureSkill string   `json:"signature_skill,omitempty"`
	Trauma         []string `json:"trauma"`
	IsDefending    bool     `json:"is_defending"`
	SpriteKey      string   `json:"sprite_key,omitempty"` // rendering hint only
}

// NewAgent rolls a fresh agent with full HP.
func NewAgent(name string, src roll.Source) *Agent {
	maxHP := roll.Between(src, MinMaxHP, MaxMaxHP)
	return &Agent{
		Name:      name,
		HP:        maxHP,
		MaxHP:     maxHP,
		Attack:    roll.Between(src, MinAttack, MaxAttack),
		Mind:      roll.Between(src, MinMind, MaxMind),
		Trauma:    make([]string, 0),
		SpriteKey: "agent_" + strings.ToLower(strings.ReplaceAll(name, " ", "_")),
	}
}

// IsAlive returns true while HP is above 0.
func (a *Agent) IsAlive() bool {
	return a.HP > 0
}

// HPRatio returns HP as a fraction of MaxHP.
func (a *Agent) HPRatio() float64 {
	if a.MaxHP <= 0 {
		return 0
	}
	return float64(a.HP) / float64(a.MaxHP)
}

// TakeDamage applies incoming damage and returns the amount applied.
// A defending agent takes half (floored) and stops defending.
// HP cannot go below 0.
func (a *Agent) TakeDamage(amount float64) int {
	return applyDamage(&a.HP, &a.IsDefending, amount)
}

// Heal restores HP up to MaxHP and returns the HP actually restored,
// which may be less than requested.
func (a *Agent) Heal(amount float64) int {
	n := int(math.Floor(amount))
	if n <= 0 {
		return 0
	}
	before := a.HP
	a.HP = min(a.HP+n, a.MaxHP)
	return a.HP - before
}

// ModifyStats applies a judgement delta. HP stays within [0, MaxHP] and mind
// never drops below StatFloor.
func (a *Agent) ModifyStats(c StatChange) {
	a.HP = max(0, min(a.HP+c.HP, a.MaxHP))
	a.Mind = max(StatFloor, a.Mind+c.Mind)
}

// AddTrauma records a trauma once; repeats and blanks are ignored.
func (a *Agent) AddTrauma(t string) bool {
	t = strings.TrimSpace(t)
	if t == "" {
		return false
	}
	for _, existing := range a.Trauma {
		if existing == t {
			return false
		}
	}
	a.Trauma = append(a.Trauma, t)
	return true
}

// ResetTurn clears per-turn flags.
func (a *Agent) ResetTurn() {
	a.IsDefending = false
}

// Living filters a roster down to agents that are still alive, keeping order.
func Living(agents []*Agent) []*Agent {
	alive := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if a != nil && a.IsAlive() {
			alive = append(alive, a)
		}
	}
	return alive
}

// AnyAlive reports whether at least one agent is alive.
func AnyAlive(agents []*Agent) bool {
	for _, a := range agents {
		if a != nil && a.IsAlive() {
			return true
		}
	}
	return false
}

func applyDamage(hp *int, defending *bool, amount float64) int {
	if amount < 0 {
		amount = 0
	}
	var applied int
	if *defending {
		applied = int(math.Floor(amount * 0.5))
		*defending = false
	} else {
		applied = int(math.Floor(amount))
	}
	*hp -= applied
	if *hp < 0 {
		*hp = 0
	}
	return applied
}
