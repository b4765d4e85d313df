// Package events picks, generates and describes the events a party faces.
package events

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// DefaultEnemies is the encounter used when a combat event names no enemies.
var DefaultEnemies = []agentai.EnemySpec{
	{Name: "Bandit Cutthroat", Type: "bandit"},
	{Name: "Bandit Lookout", Type: "bandit"},
}

// GeneratedEvent is one event presented to the party.
type GeneratedEvent struct {
	ID          string              `json:"id"`
	Type        Type                `json:"type"`
	Difficulty  Difficulty          `json:"difficulty"`
	TemplateID  string              `json:"template_id"`
	Description string              `json:"description"`
	Challenge   string              `json:"challenge,omitempty"`
	Enemies     []agentai.EnemySpec `json:"enemies,omitempty"`
	Fallback    bool                `json:"fallback"`
}

// Text is the event as agents and judges read it.
func (e *GeneratedEvent) Text() string {
	if e.Challenge == "" || e.Challenge == e.Description {
		return e.Description
	}
	return e.Description + "\n\nChallenge: " + e.Challenge
}

// Request is the party context an event is generated for.
type Request struct {
	Party      []*actor.Agent
	History    []string
	EventCount int
}

// Generator produces the next event for a party.
type Generator struct {
	ai         *agentai.AgentAI
	enemyTypes []string
	rng        roll.Source
	logger     *slog.Logger
}

// NewGenerator returns a Generator. enemyTypes lists the types a combat event
// may ask for.
func NewGenerator(ai *agentai.AgentAI, enemyTypes []string, rng roll.Source, logger *slog.Logger) *Generator {
	return &Generator{ai: ai, enemyTypes: enemyTypes, rng: rng, logger: logger}
}

// Next rolls a type and difficulty, draws a template from sel and asks the
// model to flesh it out.
func (g *Generator) Next(ctx context.Context, sel *Selector, req Request) (*GeneratedEvent, error) {
	typ := PickType(req.EventCount, g.rng)
	diff := PickDifficulty(req.EventCount, g.rng)
	tpl, err := sel.GetRandomTemplate(typ, diff)
	if err != nil {
		return nil, err
	}

	res := g.ai.GenerateEvent(ctx, agentai.EventRequest{
		Party:      req.Party,
		History:    req.History,
		Seed:       tpl.Seed,
		Type:       string(typ),
		Difficulty: string(diff),
		EnemyTypes: g.enemyTypes,
	})

	ev := &GeneratedEvent{
		ID:          uuid.New().String(),
		Type:        typ,
		Difficulty:  diff,
		TemplateID:  tpl.ID,
		Description: res.Value.Description,
		Challenge:   res.Value.Challenge,
		Fallback:    res.Degraded(),
	}
	if typ == TypeCombat {
		ev.Challenge = ""
		ev.Enemies = res.Value.Enemies
		if len(ev.Enemies) == 0 {
			ev.Enemies = append([]agentai.EnemySpec(nil), DefaultEnemies...)
		}
	}

	g.logger.Info("Generated event",
		"event_id", ev.ID,
		"type", ev.Type,
		"difficulty", ev.Difficulty,
		"template", ev.TemplateID,
		"fallback", ev.Fallback,
		"enemies", len(ev.Enemies))
	return ev, nil
}

// Summary is a one-line history entry for an event.
func Summary(ev *GeneratedEvent) string {
	d := strings.TrimSpace(ev.Description)
	if i := strings.IndexAny(d, ".!?"); i > 0 {
		d = d[:i+1]
	}
	return d
}
