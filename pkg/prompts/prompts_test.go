package prompts

import (
	"strings"
	"testing"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
)

func testAgent() *actor.Agent {
	return &actor.Agent{
		Name:           "Aria",
		HP:             70,
		MaxHP:          100,
		Attack:         5,
		Mind:           4,
		Personality:    "Bold and loud",
		Flaw:           "Afraid of the dark",
		SignatureSkill: "Flame Lance",
		Trauma:         []string{"Lost her brother"},
	}
}

func TestPersonality(t *testing.T) {
	p := Personality("Borin")
	for _, want := range []string{"Borin", `"personality"`, `"flaw"`, `"signatureSkill"`} {
		if !strings.Contains(p, want) {
			t.Errorf("personality prompt missing %q", want)
		}
	}
}

func TestEventDecision(t *testing.T) {
	history := []string{"first", "second", "third", "fourth"}
	p := EventDecision(testAgent(), "A bridge ahead is damaged.", "Cross quickly", history)

	tests := []struct {
		want string
		in   bool
	}{
		{"A bridge ahead is damaged.", true},
		{"Cross quickly", true},
		{"MUST attempt", true},
		{"immediately fatal", true},
		{"Afraid of the dark", true},
		{"Lost her brother", true},
		{"HP: 70/100", true},
		{"- second", true},
		{"- fourth", true},
		{"- first", false},
		{`"reasoning"`, true},
	}
	for _, tt := range tests {
		if got := strings.Contains(p, tt.want); got != tt.in {
			t.Errorf("Contains(%q) = %v, want %v", tt.want, got, tt.in)
		}
	}
}

func TestEventDecision_NoDoctrine(t *testing.T) {
	p := EventDecision(testAgent(), "event", "  ", nil)
	if !strings.Contains(p, "No orders were given") {
		t.Error("expected the no-doctrine placeholder")
	}
	if !strings.Contains(p, "start of the journey") {
		t.Error("expected the empty-history placeholder")
	}
}

func TestCombatAction(t *testing.T) {
	enemies := []*actor.Enemy{
		{Name: "Grik", Type: "goblin", HP: 12, MaxHP: 20},
		{Name: "Snarl", Type: "wolf", HP: 0, MaxHP: 18},
	}
	allies := []*actor.Agent{testAgent(), {Name: "Borin", HP: 0, MaxHP: 90}}
	p := CombatAction(testAgent(), enemies, allies, "Focus the goblin")

	for _, want := range []string{
		"0. Grik the goblin: HP 12/20",
		"1. Snarl the wolf: HP 0/18 (defeated)",
		"1. Borin: HP 0/90 (down)",
		"Focus the goblin",
		"attack|defend|heal|special",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("combat prompt missing %q", want)
		}
	}
}

func TestEventGeneration(t *testing.T) {
	party := []*actor.Agent{testAgent()}

	normal := EventGeneration(party, []string{"The party rested."}, "A bridge ahead is damaged", "normal", "easy", nil)
	if !strings.Contains(normal, `"challenge"`) || strings.Contains(normal, `"enemies"`) {
		t.Error("normal event prompt should ask for a challenge, not enemies")
	}
	if !strings.Contains(normal, "The party rested.") {
		t.Error("expected history in event prompt")
	}

	combat := EventGeneration(party, nil, "Ambush at dusk", "combat", "hard", []string{"goblin", "wolf"})
	if !strings.Contains(combat, `"enemies"`) || !strings.Contains(combat, "goblin, wolf") {
		t.Error("combat event prompt should list enemy types")
	}
}

func TestJudgeEvent(t *testing.T) {
	p := JudgeEvent("A bridge ahead is damaged.", []ActionEntry{
		{Name: "Aria", Action: "Runs across", Reasoning: "Orders are orders"},
	}, "Cross quickly")

	for _, want := range []string{"50%", "30%", "20%", "Aria: Runs across", "Orders are orders", "Cross quickly", `"statChange"`} {
		if !strings.Contains(p, want) {
			t.Errorf("judge prompt missing %q", want)
		}
	}
	if strings.Contains(p, "%!") {
		t.Error("judge prompt has a formatting error")
	}
}

func TestJudgeCombatAction(t *testing.T) {
	p := JudgeCombatAction(testAgent(), "special", "It is weak to fire", "Grik the goblin (HP 12/20)", 9)
	for _, want := range []string{"Aria uses their signature skill (Flame Lance)", "Grik the goblin", "about 9", `"damage": 9`} {
		if !strings.Contains(p, want) {
			t.Errorf("combat judge prompt missing %q", want)
		}
	}
}
