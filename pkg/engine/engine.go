// Package engine sequences a game session: party creation, event generation,
// event resolution and combat. Callers must not use one GameState from more
// than one goroutine at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

var (
	ErrGameOver       = errors.New("game is over")
	ErrNoPendingEvent = errors.New("no pending event")
	ErrEventPending   = errors.New("an event is already pending")
	ErrWrongEventType = errors.New("pending event has the wrong type")
)

// Engine runs game sessions against one LLM generator.
type Engine struct {
	ai        *agentai.AgentAI
	generator *events.Generator
	resolver  *combat.Resolver
	templates []events.Template
	enemies   combat.EnemyTable
	rng       roll.Source
	logger    *slog.Logger
}

// New builds an Engine with the built-in template and enemy tables.
func New(gen llm.Generator, rng roll.Source, logger *slog.Logger) *Engine {
	if rng == nil {
		rng = roll.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ai := agentai.New(gen, rng, logger)
	e := &Engine{
		ai:        ai,
		resolver:  combat.NewResolver(ai, rng, logger),
		templates: events.DefaultTemplates(),
		enemies:   combat.DefaultEnemyTable(),
		rng:       rng,
		logger:    logger,
	}
	e.generator = events.NewGenerator(ai, e.enemies.Types(), rng, logger)
	return e
}

// WithMaxRounds caps the rounds played by one RunCombat call.
func (e *Engine) WithMaxRounds(n int) *Engine {
	e.resolver.WithMaxRounds(n)
	return e
}

// NewGame rolls a party and asks the model for each agent's personality.
func (e *Engine) NewGame(ctx context.Context, names []string) (*state.GameState, error) {
	gs, err := state.New(names, e.rng)
	if err != nil {
		return nil, err
	}
	e.generatePersonalities(ctx, gs.Agents)
	e.logger.Info("New game", "session_id", gs.ID, "agents", gs.Names())
	return gs, nil
}

// ResetGame re-rolls the party in place, keeping the session id.
func (e *Engine) ResetGame(ctx context.Context, gs *state.GameState) error {
	if err := gs.Reset(e.rng); err != nil {
		return err
	}
	e.generatePersonalities(ctx, gs.Agents)
	e.logger.Info("Game reset", "session_id", gs.ID)
	return nil
}

// generatePersonalities runs one request per agent in parallel. Each
// goroutine writes only its own agent.
func (e *Engine) generatePersonalities(ctx context.Context, agents []*actor.Agent) {
	var g errgroup.Group
	for _, a := range agents {
		g.Go(func() error {
			p := e.ai.GeneratePersonality(ctx, a.Name).Value
			a.Personality = p.Personality
			a.Flaw = p.Flaw
			a.SignatureSkill = p.SignatureSkill
			return nil
		})
	}
	_ = g.Wait()
}

// NextEvent generates the next event. A combat event also spawns its
// encounter.
func (e *Engine) NextEvent(ctx context.Context, gs *state.GameState) (*events.GeneratedEvent, error) {
	if gs.IsGameOver() {
		return nil, ErrGameOver
	}
	if gs.PendingEvent != nil {
		return nil, ErrEventPending
	}

	sel := events.NewSelector(e.templates, e.rng, gs.UsedTemplates)
	ev, err := e.generator.Next(ctx, sel, events.Request{
		Party:      gs.Agents,
		History:    gs.History,
		EventCount: gs.EventCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate event: %w", err)
	}

	gs.UsedTemplates = sel.Used()
	gs.EventCount++
	gs.PendingEvent = ev
	if ev.Type == events.TypeCombat {
		specs := ev.Enemies
		if len(specs) == 0 {
			specs = events.DefaultEnemies
		}
		gs.Encounter = combat.NewEncounter(e.enemies.Spawn(specs))
		gs.CombatCount++
	}
	gs.Touch()
	return ev, nil
}

// DecisionReport is one agent's declared action.
type DecisionReport struct {
	Name      string `json:"name"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
	Fallback  bool   `json:"fallback"`
}

// EventReport is the outcome of a resolved normal event.
type EventReport struct {
	Event             *events.GeneratedEvent `json:"event"`
	Doctrine          string                 `json:"doctrine"`
	Decisions         []DecisionReport       `json:"decisions"`
	Summary           string                 `json:"summary"`
	Results           []state.AppliedResult  `json:"results"`
	JudgementFallback bool                   `json:"judgement_fallback"`
	GameOver          bool                   `json:"game_over"`
}

// ResolveEvent has every living agent decide under doctrine, judges the
// decisions and applies the results.
func (e *Engine) ResolveEvent(ctx context.Context, gs *state.GameState, doctrine string) (*EventReport, error) {
	ev, err := e.pending(gs, events.TypeNormal)
	if err != nil {
		return nil, err
	}
	gs.SetDoctrine(doctrine)
	text := ev.Text()

	results := e.ai.BatchEventDecisions(ctx, gs.Agents, text, gs.Doctrine, gs.History)

	report := &EventReport{Event: ev, Doctrine: gs.Doctrine}
	named := make([]agentai.NamedDecision, 0, len(results))
	for _, a := range gs.Agents {
		r, ok := results[a.Name]
		if !ok || r.Status == agentai.StatusError {
			continue
		}
		named = append(named, agentai.NamedDecision{Name: a.Name, Decision: r.Value})
		report.Decisions = append(report.Decisions, DecisionReport{
			Name:      a.Name,
			Action:    r.Value.Action,
			Reasoning: r.Value.Reasoning,
			Fallback:  r.Degraded(),
		})
	}

	judgement := e.ai.JudgeEvent(ctx, text, named, gs.Doctrine)
	report.Summary = judgement.Value.Summary
	report.JudgementFallback = judgement.Degraded()
	report.Results = gs.ApplyJudgement(judgement.Value)

	gs.RecordHistory(report.Summary)
	gs.PendingEvent = nil
	report.GameOver = gs.IsGameOver()
	gs.Touch()

	e.logger.Info("Event resolved",
		"session_id", gs.ID,
		"event_id", ev.ID,
		"fallback", report.JudgementFallback,
		"game_over", report.GameOver)
	return report, nil
}

// CombatResult is the outcome of CombatRound or RunCombat.
type CombatResult struct {
	Rounds   []combat.RoundReport `json:"rounds"`
	Status   combat.Status        `json:"status"`
	Resolved bool                 `json:"resolved"`
	Victory  bool                 `json:"victory"`
	Enemies  []*actor.Enemy       `json:"enemies"`
	GameOver bool                 `json:"game_over"`
}

// CombatRound plays a single round of the pending combat.
func (e *Engine) CombatRound(ctx context.Context, gs *state.GameState, doctrine string) (*CombatResult, error) {
	if _, err := e.pending(gs, events.TypeCombat); err != nil {
		return nil, err
	}
	gs.SetDoctrine(doctrine)
	round := e.resolver.Round(ctx, gs.Agents, gs.Encounter, gs.Doctrine)
	return e.combatResult(gs, []combat.RoundReport{round}), nil
}

// RunCombat plays rounds until the pending combat is resolved or the round
// cap is reached.
func (e *Engine) RunCombat(ctx context.Context, gs *state.GameState, doctrine string) (*CombatResult, error) {
	if _, err := e.pending(gs, events.TypeCombat); err != nil {
		return nil, err
	}
	gs.SetDoctrine(doctrine)
	report := e.resolver.Run(ctx, gs.Agents, gs.Encounter, gs.Doctrine)
	return e.combatResult(gs, report.Rounds), nil
}

func (e *Engine) combatResult(gs *state.GameState, rounds []combat.RoundReport) *CombatResult {
	enc := gs.Encounter
	res := &CombatResult{
		Rounds:   rounds,
		Status:   enc.Status,
		Resolved: enc.Resolved(),
		Victory:  enc.Victory(),
		Enemies:  enc.Enemies,
	}
	if enc.Resolved() {
		gs.RecordHistory(combatSummary(gs.PendingEvent, enc))
		gs.PendingEvent = nil
		gs.Encounter = nil
		e.logger.Info("Combat resolved", "session_id", gs.ID, "status", enc.Status, "rounds", enc.Round)
	}
	res.GameOver = gs.IsGameOver()
	gs.Touch()
	return res
}

// pending returns the pending event if it has type t.
func (e *Engine) pending(gs *state.GameState, t events.Type) (*events.GeneratedEvent, error) {
	if gs.IsGameOver() {
		return nil, ErrGameOver
	}
	ev := gs.PendingEvent
	if ev == nil {
		return nil, ErrNoPendingEvent
	}
	if ev.Type != t {
		return nil, fmt.Errorf("%w: pending event is %s", ErrWrongEventType, ev.Type)
	}
	if t == events.TypeCombat && gs.Encounter == nil {
		return nil, fmt.Errorf("%w: combat event has no encounter", ErrNoPendingEvent)
	}
	return ev, nil
}

func combatSummary(ev *events.GeneratedEvent, enc *combat.Encounter) string {
	names := make([]string, 0, len(enc.Enemies))
	for _, en := range enc.Enemies {
		names = append(names, en.Name)
	}
	lead := ""
	if ev != nil {
		lead = events.Summary(ev) + " "
	}
	return fmt.Sprintf("%sThe party fought %s and met %s after %d rounds.",
		lead, strings.Join(names, ", "), enc.Status, enc.Round)
}
