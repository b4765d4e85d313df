// Package prompts builds the natural-language prompts sent to the LLM. Every
// function is pure: no network, no state, same input gives the same text.
package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
)

// DecisionHistoryLimit is how many history entries an event decision sees.
const DecisionHistoryLimit = 3

// ActionEntry is one agent's declared action, as fed to the event judge.
type ActionEntry struct {
	Name      string
	Action    string
	Reasoning string
}

const personalityPrompt = `You are designing a member of an adventuring party in a dark fantasy RPG.
The character's name is %s.

Invent a distinct personality for them. Keep each field to one short sentence.
- personality: how they think and behave
- flaw: a weakness that could make them disobey orders or fail under pressure
- signatureSkill: the name and a short description of their special ability

Respond ONLY with JSON in this exact shape:
{"personality": "...", "flaw": "...", "signatureSkill": "..."}`

// Personality asks for a {personality, flaw, signatureSkill} triple.
func Personality(name string) string {
	return fmt.Sprintf(personalityPrompt, name)
}

const doctrinePolicy = `### Doctrine policy
The doctrine is a direct order from the party's commander. You MUST attempt to carry it out.
You may deviate ONLY if one of these is true:
1. Following it would be immediately fatal to you.
2. It is psychologically impossible for you given your flaw.
3. Circumstances have changed so that the order no longer makes sense.
If you deviate, your reasoning MUST say which exception applies and why.`

// EventDecision asks an agent what it does about an event.
func EventDecision(a *actor.Agent, eventText, doctrine string, history []string) string {
	var sb strings.Builder
	sb.WriteString("You are roleplaying one member of an adventuring party.\n\n")
	sb.WriteString("### You\n")
	sb.WriteString(AgentSnapshot(a))
	sb.WriteString("\n\n### Recent events\n")
	recent := lastN(history, DecisionHistoryLimit)
	if len(recent) == 0 {
		sb.WriteString("Nothing yet; this is the start of the journey.\n")
	}
	for _, h := range recent {
		sb.WriteString("- " + h + "\n")
	}
	sb.WriteString("\n### Current situation\n")
	sb.WriteString(eventText)
	sb.WriteString("\n\n### Doctrine\n")
	sb.WriteString(doctrineOrNone(doctrine))
	sb.WriteString("\n\n")
	sb.WriteString(doctrinePolicy)
	sb.WriteString("\n\nDescribe what you do in one or two sentences, in character.\n")
	sb.WriteString(`Respond ONLY with JSON: {"action": "what you do", "reasoning": "why, in your own voice"}`)
	return sb.String()
}

// CombatAction asks an agent to pick one of attack, defend, heal or special.
// Enemies and allies are listed with the indices the model must use.
func CombatAction(a *actor.Agent, enemies []*actor.Enemy, allies []*actor.Agent, doctrine string) string {
	var sb strings.Builder
	sb.WriteString("You are in turn-based combat as one member of an adventuring party.\n\n")
	sb.WriteString("### You\n")
	sb.WriteString(AgentSnapshot(a))
	sb.WriteString("\n\n### Enemies\n")
	for i, e := range enemies {
		status := ""
		if !e.IsAlive() {
			status = " (defeated)"
		} else if e.IsDefending {
			status = " (defending)"
		}
		fmt.Fprintf(&sb, "%d. %s the %s: HP %d/%d%s\n", i, e.Name, e.Type, e.HP, e.MaxHP, status)
	}
	sb.WriteString("\n### Allies\n")
	for i, ally := range allies {
		status := ""
		if !ally.IsAlive() {
			status = " (down)"
		}
		fmt.Fprintf(&sb, "%d. %s: HP %d/%d%s\n", i, ally.Name, ally.HP, ally.MaxHP, status)
	}
	sb.WriteString("\n### Doctrine\n")
	sb.WriteString(doctrineOrNone(doctrine))
	sb.WriteString("\n\n")
	sb.WriteString(doctrinePolicy)
	sb.WriteString(`

### Actions
- attack: strike an enemy. target is the enemy's number.
- defend: halve the next damage you take. target is "self".
- heal: restore HP using your mind. target is an ally's number or "self".
- special: use your signature skill on an enemy for heavy damage. target is the enemy's number.

Respond ONLY with JSON: {"action": "attack|defend|heal|special", "target": 0, "reasoning": "..."}`)
	return sb.String()
}

// EventGeneration asks for a new event inspired by a template seed. For
// combat events the model also proposes enemies from enemyTypes.
func EventGeneration(party []*actor.Agent, history []string, seed, eventType, difficulty string, enemyTypes []string) string {
	var sb strings.Builder
	sb.WriteString("You are the game master of a dark fantasy RPG. Create the next event for the party.\n\n")
	sb.WriteString("### Party\n")
	for _, a := range party {
		state := "alive"
		if !a.IsAlive() {
			state = "dead"
		}
		fmt.Fprintf(&sb, "- %s (%s, HP %d/%d): %s\n", a.Name, state, a.HP, a.MaxHP, a.Personality)
	}
	sb.WriteString("\n### Story so far\n")
	if len(history) == 0 {
		sb.WriteString("The journey has just begun.\n")
	}
	for _, h := range history {
		sb.WriteString("- " + h + "\n")
	}
	fmt.Fprintf(&sb, "\n### Inspiration\n%s\n\n", seed)
	fmt.Fprintf(&sb, "Event type: %s. Difficulty: %s.\n", eventType, difficulty)
	sb.WriteString("Write a vivid description of two to four sentences. Do not decide what the party does.\n")

	if eventType == "combat" {
		fmt.Fprintf(&sb, "Choose one to three enemies. Each enemy type MUST be one of: %s.\n", strings.Join(enemyTypes, ", "))
		sb.WriteString(`Respond ONLY with JSON: {"description": "...", "enemies": [{"name": "...", "type": "..."}]}`)
		return sb.String()
	}
	sb.WriteString(`Respond ONLY with JSON: {"description": "...", "challenge": "the problem the party must solve"}`)
	return sb.String()
}

const judgeEventPrompt = `You are the impartial judge of a dark fantasy RPG.

### Event
%s

### Doctrine given by the commander
%s

### What each party member did
%s
### Grading
Grade each member on:
- Doctrine adherence (50%%): did they follow the order, or justify a valid exception?
- Effectiveness (30%%): did the action help resolve the event?
- Risk management (20%%): did they avoid needless danger?

Outcomes and rewards:
- good: statChange between +1 and +3 for hp and/or mind
- neutral: statChange of 0
- bad: statChange between -3 and -5 for hp and/or mind, and optionally a short trauma
Use the members' exact names.

Respond ONLY with JSON:
{"summary": "one or two sentences describing what happened",
 "results": [{"name": "...", "outcome": "good|neutral|bad", "statChange": {"hp": 0, "mind": 0}, "trauma": "optional", "feedback": "one sentence"}]}`

// JudgeEvent asks for a graded outcome per agent.
func JudgeEvent(eventText string, actions []ActionEntry, doctrine string) string {
	var sb strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&sb, "- %s: %s\n  Reasoning: %s\n", a.Name, a.Action, a.Reasoning)
	}
	return fmt.Sprintf(judgeEventPrompt, eventText, doctrineOrNone(doctrine), sb.String())
}

const judgeCombatPrompt = `You are the combat referee of a dark fantasy RPG.

%s uses %s.
Target: %s
Their reasoning: %s
Expected damage if it lands: about %d.

Decide whether it succeeds and narrate it in one sentence. Damage should stay close to the expected value.
Respond ONLY with JSON: {"success": true, "damage": %d, "narrative": "...", "bonus": "optional short effect"}`

// JudgeCombatAction asks whether a single attack or special lands.
func JudgeCombatAction(a *actor.Agent, action, reasoning, targetInfo string, expectedDamage int) string {
	name := action
	if action == "special" && a.SignatureSkill != "" {
		name = "their signature skill (" + a.SignatureSkill + ")"
	}
	return fmt.Sprintf(judgeCombatPrompt, a.Name, name, targetInfo, reasoning, expectedDamage, expectedDamage)
}

// AgentSnapshot renders an agent's stats and character for prompts.
func AgentSnapshot(a *actor.Agent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", a.Name)
	fmt.Fprintf(&sb, "HP: %d/%d, Attack: %d, Mind: %d\n", a.HP, a.MaxHP, a.Attack, a.Mind)
	fmt.Fprintf(&sb, "Personality: %s\n", orUnknown(a.Personality))
	fmt.Fprintf(&sb, "Flaw: %s\n", orUnknown(a.Flaw))
	fmt.Fprintf(&sb, "Signature skill: %s\n", orUnknown(a.SignatureSkill))
	if len(a.Trauma) > 0 {
		fmt.Fprintf(&sb, "Trauma: %s", strings.Join(a.Trauma, "; "))
	} else {
		sb.WriteString("Trauma: none")
	}
	return sb.String()
}

func doctrineOrNone(d string) string {
	if strings.TrimSpace(d) == "" {
		return "No orders were given. Act on your own judgement."
	}
	return d
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
