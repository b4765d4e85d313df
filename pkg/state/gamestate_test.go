package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

func TestNew(t *testing.T) {
	gs, err := New([]string{"Aria", "Borin", "Cass"}, roll.Seeded(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(gs.Agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(gs.Agents))
	}
	for _, a := range gs.Agents {
		if a.MaxHP < actor.MinMaxHP || a.MaxHP > actor.MaxMaxHP {
			t.Errorf("%s max hp %d out of range", a.Name, a.MaxHP)
		}
		if a.HP != a.MaxHP {
			t.Errorf("%s should start at full hp", a.Name)
		}
	}
	if gs.CreatedAt.IsZero() || gs.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestNew_InvalidNames(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"empty", nil},
		{"blank", []string{"Aria", "  "}},
		{"duplicate", []string{"Aria", "Aria"}},
		{"too many", []string{"a", "b", "c", "d", "e", "f", "g"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.names, roll.Fixed(0)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReset(t *testing.T) {
	gs, err := New([]string{"Aria", "Borin"}, roll.Fixed(0))
	if err != nil {
		t.Fatal(err)
	}
	id := gs.ID
	gs.EventCount = 4
	gs.CombatCount = 2
	gs.RecordHistory("something happened")
	gs.PendingEvent = &events.GeneratedEvent{ID: "x"}
	gs.Encounter = combat.NewEncounter(nil)
	gs.UsedTemplates = []string{"wolf-pack"}
	gs.Agents[0].HP = 0
	gs.IsGameOver()

	if err := gs.Reset(roll.Fixed(0)); err != nil {
		t.Fatal(err)
	}
	if gs.ID != id {
		t.Error("reset should keep the session id")
	}
	if gs.EventCount != 0 || gs.CombatCount != 0 || len(gs.History) != 0 {
		t.Error("counters and history should be cleared")
	}
	if gs.PendingEvent != nil || gs.Encounter != nil || gs.UsedTemplates != nil {
		t.Error("pending event, encounter and used templates should be cleared")
	}
	if gs.Agents[0].Name != "Aria" || !gs.Agents[0].IsAlive() {
		t.Error("agents should be re-rolled with the same names")
	}
}

func TestApplyJudgement(t *testing.T) {
	gs := &GameState{Agents: []*actor.Agent{
		{Name: "Aria", HP: 90, MaxHP: 100, Mind: 5, Trauma: []string{}},
		{Name: "Borin", HP: 4, MaxHP: 100, Mind: 2, Trauma: []string{"Fear of heights"}},
		{Name: "Cass", HP: 0, MaxHP: 100, Mind: 3, Trauma: []string{}},
	}}
	j := agentai.Judgement{
		Summary: "Mixed results.",
		Results: []agentai.AgentResult{
			{Name: "Borin", Outcome: "bad", StatChange: actor.StatChange{HP: -5, Mind: -5}, Trauma: agentai.TraumaList{"Fear of heights"}},
			{Name: "Aria", Outcome: "good", StatChange: actor.StatChange{HP: 3, Mind: 1}},
			{Name: "Cass", Outcome: "good", StatChange: actor.StatChange{HP: 5}},
			{Name: "Nobody", Outcome: "good", StatChange: actor.StatChange{HP: 5}},
		},
	}

	applied := gs.ApplyJudgement(j)
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied results, got %d", len(applied))
	}
	if applied[0].Name != "Aria" || applied[1].Name != "Borin" {
		t.Errorf("results should follow roster order, got %s, %s", applied[0].Name, applied[1].Name)
	}

	aria, borin, cass := gs.Agents[0], gs.Agents[1], gs.Agents[2]
	if aria.HP != 93 || aria.Mind != 6 {
		t.Errorf("aria = %d/%d, want 93/6", aria.HP, aria.Mind)
	}
	if borin.HP != 0 || borin.Mind != actor.StatFloor {
		t.Errorf("borin = %d/%d, want 0/%d", borin.HP, borin.Mind, actor.StatFloor)
	}
	if len(borin.Trauma) != 1 || applied[1].TraumaAdded != "" {
		t.Errorf("repeat trauma should not be added again: %v", borin.Trauma)
	}
	if cass.HP != 0 {
		t.Error("dead agents are not revived by a judgement")
	}
	if gs.GameOver {
		t.Error("game is not over while Aria lives")
	}
}

func TestApplyJudgement_MultipleTraumas(t *testing.T) {
	gs := &GameState{Agents: []*actor.Agent{
		{Name: "Aria", HP: 50, MaxHP: 100, Mind: 5, Trauma: []string{"Nightmares"}},
	}}
	j := agentai.Judgement{Results: []agentai.AgentResult{
		{Name: "Aria", Outcome: "bad", StatChange: actor.StatChange{HP: -3}, Trauma: agentai.TraumaList{"Fear of heights", "Nightmares", "Shaking hands"}},
	}}

	applied := gs.ApplyJudgement(j)
	if len(applied) != 1 {
		t.Fatalf("expected 1 applied result, got %d", len(applied))
	}
	want := []string{"Nightmares", "Fear of heights", "Shaking hands"}
	if got := gs.Agents[0].Trauma; !reflect.DeepEqual(got, want) {
		t.Errorf("trauma = %v, want %v", got, want)
	}
	if applied[0].TraumaAdded != "Fear of heights, Shaking hands" {
		t.Errorf("trauma_added = %q", applied[0].TraumaAdded)
	}
}

func TestRecordHistory(t *testing.T) {
	gs := &GameState{}
	for i := 1; i <= 7; i++ {
		gs.RecordHistory(fmt.Sprintf("event %d", i))
	}
	gs.RecordHistory("   ")
	if len(gs.History) != HistoryLimit {
		t.Fatalf("expected %d entries, got %d", HistoryLimit, len(gs.History))
	}
	if gs.History[0] != "event 3" || gs.History[4] != "event 7" {
		t.Errorf("unexpected history window: %v", gs.History)
	}
}

func TestGameState_JSONRoundTrip(t *testing.T) {
	gs, err := New([]string{"Aria"}, roll.Fixed(0.5))
	if err != nil {
		t.Fatal(err)
	}
	gs.Encounter = combat.NewEncounter([]*actor.Enemy{{Name: "Grik", HP: 5, MaxHP: 20}})

	data, err := json.Marshal(gs)
	if err != nil {
		t.Fatal(err)
	}
	var back GameState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != gs.ID || back.Agents[0].MaxHP != gs.Agents[0].MaxHP {
		t.Error("round trip lost data")
	}
	if back.Encounter == nil || back.Encounter.Enemies[0].Name != "Grik" {
		t.Error("encounter should survive serialization")
	}
}
