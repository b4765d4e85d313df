// Package state holds the per-session game state. A GameState is the single
// owner of the agent roster; judgement results reach agents only through it.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

// HistoryLimit is how many history entries are kept as model context.
const HistoryLimit = 5

// MaxPartySize bounds the roster.
const MaxPartySize = 6

// ErrNoAgents is returned when a party would be empty.
var ErrNoAgents = errors.New("party needs at least one agent")

// GameState is the current state of one game session.
type GameState struct {
	ID            uuid.UUID              `json:"id"`
	Agents        []*actor.Agent         `json:"agents"`
	Doctrine      string                 `json:"doctrine"`
	EventCount    int                    `json:"event_count"`
	CombatCount   int                    `json:"combat_count"`
	History       []string               `json:"history"`
	PendingEvent  *events.GeneratedEvent `json:"pending_event,omitempty"`
	Encounter     *combat.Encounter      `json:"encounter,omitempty"`
	UsedTemplates []string               `json:"used_templates,omitempty"`
	GameOver      bool                   `json:"game_over"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// New rolls a fresh party. Names must be unique and non-blank.
func New(names []string, rng roll.Source) (*GameState, error) {
	gs := &GameState{ID: uuid.New()}
	if err := gs.roll(names, rng); err != nil {
		return nil, err
	}
	return gs, nil
}

// Reset starts a new game with the same session id and agent names.
func (gs *GameState) Reset(rng roll.Source) error {
	names := make([]string, 0, len(gs.Agents))
	for _, a := range gs.Agents {
		names = append(names, a.Name)
	}
	return gs.roll(names, rng)
}

func (gs *GameState) roll(names []string, rng roll.Source) error {
	if len(names) == 0 {
		return ErrNoAgents
	}
	if len(names) > MaxPartySize {
		return fmt.Errorf("party of %d exceeds the limit of %d", len(names), MaxPartySize)
	}
	seen := make(map[string]bool, len(names))
	agents := make([]*actor.Agent, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return fmt.Errorf("agent name must not be blank")
		}
		if seen[n] {
			return fmt.Errorf("duplicate agent name %q", n)
		}
		seen[n] = true
		agents = append(agents, actor.NewAgent(n, rng))
	}

	now := time.Now().UTC()
	gs.Agents = agents
	gs.Doctrine = ""
	gs.EventCount = 0
	gs.CombatCount = 0
	gs.History = make([]string, 0, HistoryLimit)
	gs.PendingEvent = nil
	gs.Encounter = nil
	gs.UsedTemplates = nil
	gs.GameOver = false
	gs.CreatedAt = now
	gs.UpdatedAt = now
	return nil
}

// Names returns the roster's names in order.
func (gs *GameState) Names() []string {
	names := make([]string, len(gs.Agents))
	for i, a := range gs.Agents {
		names[i] = a.Name
	}
	return names
}

// LivingAgents returns the agents still alive, in roster order.
func (gs *GameState) LivingAgents() []*actor.Agent {
	return actor.Living(gs.Agents)
}

// Agent finds an agent by name.
func (gs *GameState) Agent(name string) *actor.Agent {
	for _, a := range gs.Agents {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// SetDoctrine records the doctrine for the current event or round.
func (gs *GameState) SetDoctrine(d string) {
	gs.Doctrine = strings.TrimSpace(d)
}

// AppliedResult reports what a judgement did to one agent.
type AppliedResult struct {
	Name        string           `json:"name"`
	Outcome     string           `json:"outcome"`
	StatChange  actor.StatChange `json:"stat_change"`
	HPBefore    int              `json:"hp_before"`
	HPAfter     int              `json:"hp_after"`
	MindBefore  int              `json:"mind_before"`
	MindAfter   int              `json:"mind_after"`
	TraumaAdded string           `json:"trauma_added,omitempty"`
	Feedback    string           `json:"feedback"`
}

// ApplyJudgement applies judged stat changes and trauma in roster order.
// Results for unknown or dead agents are ignored.
func (gs *GameState) ApplyJudgement(j agentai.Judgement) []AppliedResult {
	applied := make([]AppliedResult, 0, len(j.Results))
	for _, a := range gs.Agents {
		if !a.IsAlive() {
			continue
		}
		r, ok := j.Result(a.Name)
		if !ok {
			continue
		}
		out := AppliedResult{
			Name:       a.Name,
			Outcome:    r.Outcome,
			StatChange: r.StatChange,
			HPBefore:   a.HP,
			MindBefore: a.Mind,
			Feedback:   r.Feedback,
		}
		a.ModifyStats(r.StatChange)
		var added []string
		for _, t := range r.Trauma {
			if a.AddTrauma(t) {
				added = append(added, strings.TrimSpace(t))
			}
		}
		out.TraumaAdded = strings.Join(added, ", ")
		out.HPAfter = a.HP
		out.MindAfter = a.Mind
		applied = append(applied, out)
	}
	gs.IsGameOver()
	return applied
}

// RecordHistory appends an entry, keeping the last HistoryLimit.
func (gs *GameState) RecordHistory(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	gs.History = append(gs.History, entry)
	if len(gs.History) > HistoryLimit {
		gs.History = append([]string(nil), gs.History[len(gs.History)-HistoryLimit:]...)
	}
}

// IsGameOver reports, and latches, whether the whole party is dead.
func (gs *GameState) IsGameOver() bool {
	if !actor.AnyAlive(gs.Agents) {
		gs.GameOver = true
	}
	return gs.GameOver
}

// Touch bumps UpdatedAt.
func (gs *GameState) Touch() {
	gs.UpdatedAt = time.Now().UTC()
}
