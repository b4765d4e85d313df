// Package agentai turns game situations into LLM prompts and the model's JSON
// answers back into validated game decisions. Every operation returns a
// Result: a model failure never surfaces as an error, it degrades to a
// fallback value the game can always act on.
package agentai

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
	"github.com/jwebster45206/doctrine-engine/pkg/prompts"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// Fallback values used when the model is unavailable or answers nonsense.
var (
	FallbackPersonality = Personality{
		Personality:    "Steady and pragmatic",
		Flaw:           "Hesitates under pressure",
		SignatureSkill: "Second Wind",
	}
	FallbackEventDecision = EventDecision{
		Action:    "Holds back and watches for danger while following the group.",
		Reasoning: "Unsure what to do, so staying cautious.",
	}
	FallbackCombatAction = CombatAction{
		Action:    ActionAttack,
		Target:    IndexTarget(0),
		Reasoning: "Defaulting to a basic attack.",
	}
)

// Fallback combat judgement tuning.
const (
	FallbackHitChance  = 0.7
	FallbackMinDamage  = 5
	FallbackMaxDamage  = 15
	fallbackNarrative  = "The blow lands before anyone can react."
	fallbackMiss       = "The attack goes wide."
	fallbackJudgeBrief = "The party muddles through the situation."
)

// ErrNilAgent is returned in a StatusError result when no agent is given.
var ErrNilAgent = errors.New("agent is nil")

// AgentAI is the decision and judgement layer.
type AgentAI struct {
	llm    llm.Generator
	rng    roll.Source
	logger *slog.Logger
}

// New returns an AgentAI that calls gen. A nil rng uses roll.Default.
func New(gen llm.Generator, rng roll.Source, logger *slog.Logger) *AgentAI {
	if rng == nil {
		rng = roll.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentAI{llm: gen, rng: rng, logger: logger}
}

// validator is implemented by every decoded response type.
type validator[T any] interface {
	*T
	validate() error
}

// ask sends prompt, decodes the answer into T and validates it.
func ask[T any, PT validator[T]](ctx context.Context, gen llm.Generator, prompt string) (T, error) {
	v, err := llm.GenerateJSON[T](ctx, gen, prompt)
	if err != nil {
		return v, err
	}
	if err := PT(&v).validate(); err != nil {
		return v, err
	}
	return v, nil
}

func (ai *AgentAI) fallback(op, name string, err error) {
	ai.logger.Warn("Using fallback decision", "op", op, "agent", name, "error", err)
}

// GeneratePersonality invents a personality, flaw and signature skill.
func (ai *AgentAI) GeneratePersonality(ctx context.Context, name string) Result[Personality] {
	p, err := ask[Personality](ctx, ai.llm, prompts.Personality(name))
	if err != nil {
		ai.fallback("personality", name, err)
		return Result[Personality]{Value: FallbackPersonality, Status: StatusFallback, Err: err}
	}
	return ok(p)
}

// DecideEventAction asks a single agent what it does about a normal event.
func (ai *AgentAI) DecideEventAction(ctx context.Context, a *actor.Agent, eventText, doctrine string, history []string) Result[EventDecision] {
	if a == nil {
		return invalid[EventDecision](ErrNilAgent)
	}
	d, err := ask[EventDecision](ctx, ai.llm, prompts.EventDecision(a, eventText, doctrine, history))
	if err != nil {
		ai.fallback("event_decision", a.Name, err)
		return Result[EventDecision]{Value: FallbackEventDecision, Status: StatusFallback, Err: err}
	}
	return ok(d)
}

// DecideCombatAction asks a single agent for its combat move. Target indices
// are not range-checked here; the combat resolver retargets stale indices.
func (ai *AgentAI) DecideCombatAction(ctx context.Context, a *actor.Agent, enemies []*actor.Enemy, allies []*actor.Agent, doctrine string) Result[CombatAction] {
	if a == nil {
		return invalid[CombatAction](ErrNilAgent)
	}
	c, err := ask[CombatAction](ctx, ai.llm, prompts.CombatAction(a, enemies, allies, doctrine))
	if err != nil {
		ai.fallback("combat_action", a.Name, err)
		return Result[CombatAction]{Value: FallbackCombatAction, Status: StatusFallback, Err: err}
	}
	return ok(c)
}

// NamedDecision pairs an agent with its event decision for judging.
type NamedDecision struct {
	Name     string
	Decision EventDecision
}

// JudgeEvent grades every agent's decision. On any failure each agent gets a
// neutral result with no stat change.
func (ai *AgentAI) JudgeEvent(ctx context.Context, eventText string, decisions []NamedDecision, doctrine string) Result[Judgement] {
	entries := make([]prompts.ActionEntry, 0, len(decisions))
	for _, d := range decisions {
		entries = append(entries, prompts.ActionEntry{Name: d.Name, Action: d.Decision.Action, Reasoning: d.Decision.Reasoning})
	}
	j, err := ask[Judgement](ctx, ai.llm, prompts.JudgeEvent(eventText, entries, doctrine))
	if err != nil {
		ai.fallback("judge_event", "", err)
		return Result[Judgement]{Value: neutralJudgement(decisions), Status: StatusFallback, Err: err}
	}
	return ok(j)
}

func neutralJudgement(decisions []NamedDecision) Judgement {
	j := Judgement{Summary: fallbackJudgeBrief, Results: make([]AgentResult, 0, len(decisions))}
	for _, d := range decisions {
		j.Results = append(j.Results, AgentResult{
			Name:     d.Name,
			Outcome:  OutcomeNeutral,
			Feedback: "No clear result.",
		})
	}
	return j
}

// JudgeCombatAction rules on one attack or special. The fallback is a
// weighted coin: a hit with FallbackHitChance and damage rolled in
// [FallbackMinDamage, FallbackMaxDamage].
func (ai *AgentAI) JudgeCombatAction(ctx context.Context, a *actor.Agent, action, reasoning, targetInfo string, expectedDamage int) Result[CombatJudgement] {
	if a == nil {
		return invalid[CombatJudgement](ErrNilAgent)
	}
	j, err := ask[CombatJudgement](ctx, ai.llm, prompts.JudgeCombatAction(a, action, reasoning, targetInfo, expectedDamage))
	if err != nil {
		ai.fallback("judge_combat", a.Name, err)
		return Result[CombatJudgement]{Value: ai.fallbackCombatJudgement(), Status: StatusFallback, Err: err}
	}
	return ok(j)
}

func (ai *AgentAI) fallbackCombatJudgement() CombatJudgement {
	if !roll.Chance(ai.rng, FallbackHitChance) {
		return CombatJudgement{Success: false, Narrative: fallbackMiss}
	}
	return CombatJudgement{
		Success:   true,
		Damage:    float64(roll.Between(ai.rng, FallbackMinDamage, FallbackMaxDamage)),
		Narrative: fallbackNarrative,
	}
}

// EventRequest is the input to GenerateEvent.
type EventRequest struct {
	Party      []*actor.Agent
	History    []string
	Seed       string
	Type       string
	Difficulty string
	EnemyTypes []string
}

// GenerateEvent asks the model to dress up a template seed. The fallback is
// the seed itself with no enemies.
func (ai *AgentAI) GenerateEvent(ctx context.Context, req EventRequest) Result[EventDraft] {
	p := prompts.EventGeneration(req.Party, req.History, req.Seed, req.Type, req.Difficulty, req.EnemyTypes)
	d, err := ask[EventDraft](ctx, ai.llm, p)
	if err != nil {
		ai.fallback("generate_event", "", err)
		return Result[EventDraft]{Value: EventDraft{Description: req.Seed, Challenge: req.Seed}, Status: StatusFallback, Err: err}
	}
	return ok(d)
}

// BatchEventDecisions asks every living agent in parallel. The map is keyed by
// agent name and every living agent has an entry.
func (ai *AgentAI) BatchEventDecisions(ctx context.Context, agents []*actor.Agent, eventText, doctrine string, history []string) map[string]Result[EventDecision] {
	return fanOut(agents, func(a *actor.Agent) Result[EventDecision] {
		return ai.DecideEventAction(ctx, a, eventText, doctrine, history)
	})
}

// BatchCombatActions asks every living agent for a combat move in parallel.
// Agents only read shared state while the calls are in flight.
func (ai *AgentAI) BatchCombatActions(ctx context.Context, agents []*actor.Agent, enemies []*actor.Enemy, doctrine string) map[string]Result[CombatAction] {
	return fanOut(agents, func(a *actor.Agent) Result[CombatAction] {
		return ai.DecideCombatAction(ctx, a, enemies, agents, doctrine)
	})
}

func fanOut[T any](agents []*actor.Agent, fn func(*actor.Agent) Result[T]) map[string]Result[T] {
	living := actor.Living(agents)
	out := make(map[string]Result[T], len(living))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, a := range living {
		g.Go(func() error {
			r := fn(a)
			mu.Lock()
			out[a.Name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
