package agentai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

// Combat verbs an agent may choose.
const (
	ActionAttack  = "attack"
	ActionDefend  = "defend"
	ActionHeal    = "heal"
	ActionSpecial = "special"
)

// Judgement outcomes.
const (
	OutcomeGood    = "good"
	OutcomeNeutral = "neutral"
	OutcomeBad     = "bad"
)

// MaxStatDelta bounds each judged stat change in either direction.
const MaxStatDelta = 5

// Personality is the LLM-authored character of an agent.
type Personality struct {
	Personality    string `json:"personality"`
	Flaw           string `json:"flaw"`
	SignatureSkill string `json:"signatureSkill"`
}

func (p *Personality) validate() error {
	p.Personality = strings.TrimSpace(p.Personality)
	p.Flaw = strings.TrimSpace(p.Flaw)
	p.SignatureSkill = strings.TrimSpace(p.SignatureSkill)
	switch {
	case p.Personality == "":
		return &llm.ValidationError{Field: "personality", Reason: "missing"}
	case p.Flaw == "":
		return &llm.ValidationError{Field: "flaw", Reason: "missing"}
	case p.SignatureSkill == "":
		return &llm.ValidationError{Field: "signatureSkill", Reason: "missing"}
	}
	return nil
}

// EventDecision is what one agent does about a normal event.
type EventDecision struct {
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
}

func (d *EventDecision) validate() error {
	d.Action = strings.TrimSpace(d.Action)
	if d.Action == "" {
		return &llm.ValidationError{Field: "action", Reason: "missing"}
	}
	return nil
}

// Target is a combat target: an index into the enemy (or ally) list, or the
// acting agent itself.
type Target struct {
	Self  bool
	Index int
}

// SelfTarget targets the acting agent.
var SelfTarget = Target{Self: true}

// IndexTarget targets the i-th entry of a list.
func IndexTarget(i int) Target { return Target{Index: i} }

func (t Target) String() string {
	if t.Self {
		return "self"
	}
	return strconv.Itoa(t.Index)
}

// MarshalJSON writes "self" or the index.
func (t Target) MarshalJSON() ([]byte, error) {
	if t.Self {
		return []byte(`"self"`), nil
	}
	return []byte(strconv.Itoa(t.Index)), nil
}

// UnmarshalJSON accepts a number, a numeric string, "self", or null.
func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Target{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "self" || s == "" {
			*t = Target{Self: s == "self"}
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("target %q is neither an index nor \"self\"", s)
		}
		*t = Target{Index: n}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*t = Target{Index: int(f)}
	return nil
}

// CombatAction is one agent's chosen move for a combat turn.
type CombatAction struct {
	Action    string `json:"action"`
	Target    Target `json:"target"`
	Reasoning string `json:"reasoning"`
}

func (c *CombatAction) validate() error {
	c.Action = strings.ToLower(strings.TrimSpace(c.Action))
	switch c.Action {
	case ActionAttack, ActionDefend, ActionHeal, ActionSpecial:
	default:
		return &llm.ValidationError{Field: "action", Value: c.Action, Reason: "must be attack, defend, heal or special"}
	}
	if !c.Target.Self && c.Target.Index < 0 {
		return &llm.ValidationError{Field: "target", Value: c.Target.String(), Reason: "negative index"}
	}
	return nil
}

// AgentResult is the judged outcome for one agent.
type AgentResult struct {
	Name       string           `json:"name"`
	Outcome    string           `json:"outcome"`
	StatChange actor.StatChange `json:"statChange"`
	Trauma     TraumaList       `json:"trauma,omitempty"`
	Feedback   string           `json:"feedback"`
}

// Judgement is the judged outcome of a normal event.
type Judgement struct {
	Summary string        `json:"summary"`
	Results []AgentResult `json:"results"`
}

// validate rejects empty results and unknown outcomes, then clamps every stat
// delta into [-MaxStatDelta, MaxStatDelta].
func (j *Judgement) validate() error {
	if len(j.Results) == 0 {
		return &llm.ValidationError{Field: "results", Reason: "empty"}
	}
	for i := range j.Results {
		r := &j.Results[i]
		r.Name = strings.TrimSpace(r.Name)
		r.Outcome = strings.ToLower(strings.TrimSpace(r.Outcome))
		if r.Name == "" {
			return &llm.ValidationError{Field: "results.name", Reason: "missing"}
		}
		switch r.Outcome {
		case OutcomeGood, OutcomeNeutral, OutcomeBad:
		default:
			return &llm.ValidationError{Field: "results.outcome", Value: r.Outcome, Reason: "must be good, neutral or bad"}
		}
		r.StatChange.HP = clampDelta(r.StatChange.HP)
		r.StatChange.Mind = clampDelta(r.StatChange.Mind)
		r.Trauma = r.Trauma.normalize()
	}
	return nil
}

// Result looks up the judged result for name.
func (j Judgement) Result(name string) (AgentResult, bool) {
	for _, r := range j.Results {
		if r.Name == name {
			return r, true
		}
	}
	return AgentResult{}, false
}

// FlexString decodes a JSON string, number or bool into text. Models are
// inconsistent about the type of free-form fields like "bonus".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// TraumaList holds the traumas handed to one agent. It decodes from null, a
// single string or an array of strings.
type TraumaList []string

func (t *TraumaList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []FlexString
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		out := make(TraumaList, 0, len(list))
		for _, s := range list {
			out = append(out, string(s))
		}
		*t = out
		return nil
	}
	var s FlexString
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = TraumaList{string(s)}
	return nil
}

// normalize trims every entry and drops blanks.
func (t TraumaList) normalize() TraumaList {
	var out TraumaList
	for _, s := range t {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CombatJudgement is the referee's ruling on one attack or special.
type CombatJudgement struct {
	Success   bool       `json:"success"`
	Damage    float64    `json:"damage"`
	Narrative string     `json:"narrative"`
	Bonus     FlexString `json:"bonus,omitempty"`
}

func (c *CombatJudgement) validate() error {
	if c.Damage < 0 {
		return &llm.ValidationError{Field: "damage", Value: strconv.FormatFloat(c.Damage, 'f', -1, 64), Reason: "negative"}
	}
	c.Narrative = strings.TrimSpace(c.Narrative)
	return nil
}

// EnemySpec is an enemy suggested by the event generator.
type EnemySpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// EventDraft is the generator's raw proposal for an event.
type EventDraft struct {
	Description string      `json:"description"`
	Challenge   string      `json:"challenge,omitempty"`
	Enemies     []EnemySpec `json:"enemies,omitempty"`
}

func (d *EventDraft) validate() error {
	d.Description = strings.TrimSpace(d.Description)
	if d.Description == "" {
		return &llm.ValidationError{Field: "description", Reason: "missing"}
	}
	return nil
}

func clampDelta(n int) int {
	return max(-MaxStatDelta, min(MaxStatDelta, n))
}
