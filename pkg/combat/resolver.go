package combat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// DefaultMaxRounds bounds a single Run call.
const DefaultMaxRounds = 50

// Roll ranges added on top of the base stat.
const (
	attackBonusRange  = 5
	specialBonusRange = 10
	healBonusRange    = 5
	enemyBonusRange   = 5
	specialMultiplier = 1.5
)

// Resolver executes combat rounds.
type Resolver struct {
	ai        *agentai.AgentAI
	rng       roll.Source
	logger    *slog.Logger
	maxRounds int
}

// NewResolver returns a Resolver using ai for agent decisions and rulings.
func NewResolver(ai *agentai.AgentAI, rng roll.Source, logger *slog.Logger) *Resolver {
	if rng == nil {
		rng = roll.Default()
	}
	return &Resolver{ai: ai, rng: rng, logger: logger, maxRounds: DefaultMaxRounds}
}

// WithMaxRounds overrides the per-Run round cap.
func (r *Resolver) WithMaxRounds(n int) *Resolver {
	if n > 0 {
		r.maxRounds = n
	}
	return r
}

// RoundReport is the outcome of one round.
type RoundReport struct {
	Round   int        `json:"round"`
	Entries []LogEntry `json:"entries"`
	Status  Status     `json:"status"`
}

// CombatReport is the outcome of a Run call.
type CombatReport struct {
	Rounds   []RoundReport `json:"rounds"`
	Status   Status        `json:"status"`
	Resolved bool          `json:"resolved"`
	Victory  bool          `json:"victory"`
}

// Round plays one agent phase and, if the fight is still on, one enemy
// phase. A resolved encounter is returned unchanged.
func (r *Resolver) Round(ctx context.Context, agents []*actor.Agent, enc *Encounter, doctrine string) RoundReport {
	if enc.Resolved() || enc.settle(agents) {
		return RoundReport{Round: enc.Round, Status: enc.Status, Entries: []LogEntry{}}
	}

	enc.Round++
	report := RoundReport{Round: enc.Round}

	enc.Status = StatusAgentPhase
	report.Entries = append(report.Entries, r.AgentPhase(ctx, agents, enc, doctrine)...)

	if !enc.settle(agents) {
		enc.Status = StatusEnemyPhase
		report.Entries = append(report.Entries, r.EnemyPhase(agents, enc)...)
		if !enc.settle(agents) {
			enc.Status = StatusAwaitingDoctrine
		}
	}

	enc.Log = append(enc.Log, report.Entries...)
	report.Status = enc.Status
	r.logger.Debug("Combat round finished", "round", enc.Round, "status", enc.Status, "actions", len(report.Entries))
	return report
}

// Run plays rounds until the fight is resolved, the context is done, or the
// round cap for this call is reached. In the latter two cases the encounter
// is left unresolved and can be continued later.
func (r *Resolver) Run(ctx context.Context, agents []*actor.Agent, enc *Encounter, doctrine string) CombatReport {
	report := CombatReport{Rounds: make([]RoundReport, 0)}
	for i := 0; i < r.maxRounds && !enc.Resolved(); i++ {
		if ctx.Err() != nil {
			r.logger.Warn("Combat interrupted", "round", enc.Round, "error", ctx.Err())
			break
		}
		report.Rounds = append(report.Rounds, r.Round(ctx, agents, enc, doctrine))
	}
	if !enc.Resolved() {
		enc.settle(agents)
	}
	report.Status = enc.Status
	report.Resolved = enc.Resolved()
	report.Victory = enc.Victory()
	return report
}

// AgentPhase asks every living agent for an action in parallel, then applies
// the actions one at a time in roster order. It stops as soon as no enemy is
// left standing.
func (r *Resolver) AgentPhase(ctx context.Context, agents []*actor.Agent, enc *Encounter, doctrine string) []LogEntry {
	for _, a := range actor.Living(agents) {
		a.ResetTurn()
	}

	actions := r.ai.BatchCombatActions(ctx, agents, enc.Enemies, doctrine)

	entries := make([]LogEntry, 0, len(actions))
	for _, a := range agents {
		if !actor.AnyEnemyAlive(enc.Enemies) {
			break
		}
		if !a.IsAlive() {
			continue
		}
		res, ok := actions[a.Name]
		if !ok || res.Status == agentai.StatusError {
			continue
		}
		entry := r.execute(ctx, a, res.Value, agents, enc)
		entry.Round = enc.Round
		entry.Fallback = res.Degraded()
		entries = append(entries, entry)
	}
	return entries
}

func (r *Resolver) execute(ctx context.Context, a *actor.Agent, act agentai.CombatAction, agents []*actor.Agent, enc *Encounter) LogEntry {
	entry := LogEntry{Actor: a.Name, Action: act.Action, Reasoning: act.Reasoning}

	switch act.Action {
	case agentai.ActionDefend:
		a.IsDefending = true
		entry.Target = a.Name
		entry.Success = true

	case agentai.ActionHeal:
		target := allyTarget(a, agents, act.Target)
		amount := float64(a.Mind + roll.Intn(r.rng, healBonusRange))
		entry.Target = target.Name
		entry.Amount = target.Heal(amount)
		entry.Success = true

	default:
		target := enemyTarget(enc.Enemies, act.Target)
		var base float64
		if act.Action == agentai.ActionSpecial {
			base = specialMultiplier*float64(a.Attack) + float64(roll.Intn(r.rng, specialBonusRange))
		} else {
			entry.Action = agentai.ActionAttack
			base = float64(a.Attack + roll.Intn(r.rng, attackBonusRange))
		}
		entry.Target = target.Name

		ruling := r.ai.JudgeCombatAction(ctx, a, entry.Action, act.Reasoning, describeEnemy(target), int(base))
		entry.Narrative = ruling.Value.Narrative
		entry.Success = ruling.Value.Success
		if !entry.Success {
			break
		}
		entry.Amount = target.TakeDamage(judgedDamage(base, ruling.Value.Damage))
	}
	return entry
}

// judgedDamage prefers the ruling's damage when positive, capped at twice
// the rolled base.
func judgedDamage(base, judged float64) float64 {
	if judged <= 0 {
		return base
	}
	return min(judged, 2*base)
}

// EnemyPhase lets every living enemy act in order. It stops as soon as the
// party is wiped out.
func (r *Resolver) EnemyPhase(agents []*actor.Agent, enc *Encounter) []LogEntry {
	entries := make([]LogEntry, 0, len(enc.Enemies))
	for _, e := range enc.Enemies {
		if !actor.AnyAlive(agents) {
			break
		}
		if !e.IsAlive() {
			continue
		}
		e.IsDefending = false

		act := e.ChooseAction(agents)
		entry := LogEntry{Round: enc.Round, Actor: e.Name, Action: act.Kind, Success: true}
		switch act.Kind {
		case actor.EnemyDefend:
			e.IsDefending = true
			entry.Target = e.Name
		case actor.EnemyAttack:
			dmg := float64(e.Attack + roll.Intn(r.rng, enemyBonusRange))
			entry.Target = act.Target.Name
			entry.Amount = act.Target.TakeDamage(dmg)
		}
		entries = append(entries, entry)
	}
	return entries
}

// enemyTarget resolves t to a living enemy, falling back to the first living
// one when the index is out of range, dead, or "self".
func enemyTarget(enemies []*actor.Enemy, t agentai.Target) *actor.Enemy {
	if !t.Self && t.Index >= 0 && t.Index < len(enemies) && enemies[t.Index].IsAlive() {
		return enemies[t.Index]
	}
	return actor.LivingEnemies(enemies)[0]
}

// allyTarget resolves a heal target; anything invalid heals the actor.
func allyTarget(self *actor.Agent, agents []*actor.Agent, t agentai.Target) *actor.Agent {
	if !t.Self && t.Index >= 0 && t.Index < len(agents) && agents[t.Index].IsAlive() {
		return agents[t.Index]
	}
	return self
}

func describeEnemy(e *actor.Enemy) string {
	d := fmt.Sprintf("%s the %s (HP %d/%d)", e.Name, e.Type, e.HP, e.MaxHP)
	if e.IsDefending {
		d += ", defending"
	}
	return d
}
