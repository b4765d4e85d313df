package actor

// EnemyAction kinds chosen by the enemy behavior rule.
const (
	EnemyAttack = "attack"
	EnemyDefend = "defend"
	EnemyWait   = "wait"
)

// LowHPThreshold is the HP ratio under which an enemy turtles up.
const LowHPThreshold = 0.3

// Enemy represents a hostile creature in a combat encounter.
// Enemies are spawned from the enemy template table and discarded when the
// encounter ends.
type Enemy struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	HP          int      `json:"hp"`
	MaxHP       int      `json:"max_hp"`
	Attack      int      `json:"attack"`
	Color       string   `json:"color,omitempty"`
	SpriteKey   string   `json:"sprite_key,omitempty"`
	Abilities   []string `json:"abilities,omitempty"` // flavor only
	IsDefending bool     `json:"is_defending"`
}

// EnemyAction is the outcome of Enemy.ChooseAction.
type EnemyAction struct {
	Kind   string
	Target *Agent
}

// IsAlive returns true while HP is above 0.
func (e *Enemy) IsAlive() bool {
	return e.HP > 0
}

// HPRatio returns HP as a fraction of MaxHP.
func (e *Enemy) HPRatio() float64 {
	if e.MaxHP <= 0 {
		return 0
	}
	return float64(e.HP) / float64(e.MaxHP)
}

// TakeDamage follows the same rules as Agent.TakeDamage.
func (e *Enemy) TakeDamage(amount float64) int {
	return applyDamage(&e.HP, &e.IsDefending, amount)
}

// ChooseAction picks the enemy's move without consulting the LLM.
// A badly hurt enemy defends; otherwise it attacks the living agent with the
// lowest current HP (first in roster order on ties).
func (e *Enemy) ChooseAction(agents []*Agent) EnemyAction {
	if e.HPRatio() < LowHPThreshold {
		return EnemyAction{Kind: EnemyDefend}
	}
	var target *Agent
	for _, a := range agents {
		if a == nil || !a.IsAlive() {
			continue
		}
		if target == nil || a.HP < target.HP {
			target = a
		}
	}
	if target == nil {
		return EnemyAction{Kind: EnemyWait}
	}
	return EnemyAction{Kind: EnemyAttack, Target: target}
}

// LivingEnemies filters enemies down to those still alive, keeping order.
func LivingEnemies(enemies []*Enemy) []*Enemy {
	alive := make([]*Enemy, 0, len(enemies))
	for _, e := range enemies {
		if e != nil && e.IsAlive() {
			alive = append(alive, e)
		}
	}
	return alive
}

// AnyEnemyAlive reports whether at least one enemy is alive.
func AnyEnemyAlive(enemies []*Enemy) bool {
	for _, e := range enemies {
		if e != nil && e.IsAlive() {
			return true
		}
	}
	return false
}
