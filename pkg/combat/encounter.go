// Package combat runs turn-based fights between the party and a group of
// enemies.
package combat

import "github.com/jwebster45206/doctrine-engine/pkg/actor"

// Status is where an encounter is in its round cycle.
type Status string

const (
	StatusAwaitingDoctrine Status = "awaiting_doctrine"
	StatusAgentPhase       Status = "agent_phase"
	StatusEnemyPhase       Status = "enemy_phase"
	StatusVictory          Status = "victory"
	StatusDefeat           Status = "defeat"
)

// LogEntry records one action taken during a round.
type LogEntry struct {
	Round     int    `json:"round"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Amount    int    `json:"amount"`
	Success   bool   `json:"success"`
	Narrative string `json:"narrative,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// Encounter is one fight. It is created when a combat event starts and
// discarded once resolved.
type Encounter struct {
	Enemies []*actor.Enemy `json:"enemies"`
	Round   int            `json:"round"`
	Status  Status         `json:"status"`
	Log     []LogEntry     `json:"log"`
}

// NewEncounter starts a fight waiting for the first doctrine.
func NewEncounter(enemies []*actor.Enemy) *Encounter {
	return &Encounter{
		Enemies: enemies,
		Status:  StatusAwaitingDoctrine,
		Log:     make([]LogEntry, 0),
	}
}

// Resolved reports whether the fight is over.
func (e *Encounter) Resolved() bool {
	return e.Status == StatusVictory || e.Status == StatusDefeat
}

// Victory reports whether the party won.
func (e *Encounter) Victory() bool {
	return e.Status == StatusVictory
}

// settle resolves the encounter once either side has no living members.
// Victory requires at least one living agent.
func (e *Encounter) settle(agents []*actor.Agent) bool {
	switch {
	case !actor.AnyAlive(agents):
		e.Status = StatusDefeat
	case !actor.AnyEnemyAlive(e.Enemies):
		e.Status = StatusVictory
	}
	return e.Resolved()
}
