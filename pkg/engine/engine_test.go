package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedBackend answers each kind of prompt with a fixed reply.
func scriptedBackend() *llm.MockBackend {
	mock := llm.NewMockBackend()
	mock.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		switch {
		case strings.Contains(prompt, "designing a member"):
			return `{"personality":"Calm","flaw":"Stubborn","signatureSkill":"Iron Wall"}`, nil
		case strings.Contains(prompt, "game master") && strings.Contains(prompt, "Event type: combat"):
			return `{"description":"A goblin leaps out.","enemies":[{"name":"grik","type":"goblin"}]}`, nil
		case strings.Contains(prompt, "game master"):
			return `{"description":"A bridge sways.","challenge":"Cross it."}`, nil
		case strings.Contains(prompt, "roleplaying one member"):
			return `{"action":"Crosses carefully","reasoning":"Orders"}`, nil
		case strings.Contains(prompt, "impartial judge"):
			return `{"summary":"They crossed.","results":[
				{"name":"Aria","outcome":"good","statChange":{"hp":2,"mind":1},"feedback":"Nice"},
				{"name":"Borin","outcome":"bad","statChange":{"hp":-4,"mind":0},"trauma":"Vertigo","feedback":"Slipped"}]}`, nil
		case strings.Contains(prompt, "combat referee"):
			return `{"success":true,"damage":6,"narrative":"Hit."}`, nil
		case strings.Contains(prompt, "turn-based combat"):
			return `{"action":"attack","target":0,"reasoning":"Charge"}`, nil
		}
		return "", errors.New("unexpected prompt")
	}
	return mock
}

func TestNewGame(t *testing.T) {
	e := New(scriptedBackend(), roll.Fixed(0), quietLogger())
	gs, err := e.NewGame(context.Background(), []string{"Aria", "Borin", "Cass"})
	require.NoError(t, err)

	require.Len(t, gs.Agents, 3)
	for _, a := range gs.Agents {
		assert.Equal(t, "Calm", a.Personality, a.Name)
		assert.Equal(t, "Iron Wall", a.SignatureSkill, a.Name)
	}

	_, err = e.NewGame(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewGame_BackendDown(t *testing.T) {
	mock := llm.NewMockBackend()
	mock.SetGenerateError(errors.New("offline"))
	e := New(mock, roll.Fixed(0), quietLogger())

	gs, err := e.NewGame(context.Background(), []string{"Aria"})
	require.NoError(t, err)
	assert.Equal(t, "Steady and pragmatic", gs.Agents[0].Personality)
}

func TestEventCycle(t *testing.T) {
	e := New(scriptedBackend(), roll.Fixed(0), quietLogger())
	ctx := context.Background()
	gs, err := e.NewGame(ctx, []string{"Aria", "Borin", "Cass"})
	require.NoError(t, err)

	_, err = e.ResolveEvent(ctx, gs, "Cross")
	assert.ErrorIs(t, err, ErrNoPendingEvent)

	ev, err := e.NextEvent(ctx, gs)
	require.NoError(t, err)
	assert.Equal(t, events.TypeNormal, ev.Type)
	assert.Equal(t, 1, gs.EventCount)
	assert.Len(t, gs.UsedTemplates, 1)

	_, err = e.NextEvent(ctx, gs)
	assert.ErrorIs(t, err, ErrEventPending)

	_, err = e.CombatRound(ctx, gs, "Attack")
	assert.ErrorIs(t, err, ErrWrongEventType)

	aria, borin := gs.Agents[0], gs.Agents[1]
	ariaHP, borinHP := aria.HP, borin.HP

	report, err := e.ResolveEvent(ctx, gs, "  Cross the bridge one at a time  ")
	require.NoError(t, err)
	assert.Equal(t, "Cross the bridge one at a time", report.Doctrine)
	assert.Len(t, report.Decisions, 3)
	assert.Equal(t, "They crossed.", report.Summary)
	assert.False(t, report.JudgementFallback)
	require.Len(t, report.Results, 2)

	// Agents start at full HP, so the +2 is clamped away.
	assert.Equal(t, ariaHP, aria.HP)
	assert.Equal(t, borinHP-4, borin.HP)
	assert.Equal(t, []string{"Vertigo"}, borin.Trauma)

	assert.Nil(t, gs.PendingEvent)
	assert.Equal(t, []string{"They crossed."}, gs.History)
	assert.False(t, report.GameOver)
}

func TestCombatCycle(t *testing.T) {
	e := New(scriptedBackend(), roll.Fixed(0), quietLogger())
	ctx := context.Background()
	gs, err := e.NewGame(ctx, []string{"Aria", "Borin", "Cass"})
	require.NoError(t, err)
	gs.EventCount = 1 // past the guaranteed normal opener

	ev, err := e.NextEvent(ctx, gs)
	require.NoError(t, err)
	require.Equal(t, events.TypeCombat, ev.Type)
	require.NotNil(t, gs.Encounter)
	require.Len(t, gs.Encounter.Enemies, 1)
	assert.Equal(t, "Grik", gs.Encounter.Enemies[0].Name)
	assert.Equal(t, 1, gs.CombatCount)

	_, err = e.ResolveEvent(ctx, gs, "")
	assert.ErrorIs(t, err, ErrWrongEventType)

	// Goblin has 20 HP; three hits of 6 leave it at 2.
	first, err := e.CombatRound(ctx, gs, "Focus the goblin")
	require.NoError(t, err)
	assert.False(t, first.Resolved)
	assert.Equal(t, combat.StatusAwaitingDoctrine, first.Status)
	assert.Equal(t, 2, first.Enemies[0].HP)

	result, err := e.RunCombat(ctx, gs, "Finish it")
	require.NoError(t, err)
	assert.True(t, result.Victory)
	assert.Equal(t, combat.StatusVictory, result.Status)
	assert.Nil(t, gs.PendingEvent)
	assert.Nil(t, gs.Encounter)
	require.Len(t, gs.History, 1)
	assert.Contains(t, gs.History[0], "Grik")
	assert.Contains(t, gs.History[0], "victory")

	_, err = e.RunCombat(ctx, gs, "")
	assert.ErrorIs(t, err, ErrNoPendingEvent)
}

func TestGameOverBlocksEverything(t *testing.T) {
	e := New(scriptedBackend(), roll.Fixed(0), quietLogger())
	ctx := context.Background()
	gs, err := e.NewGame(ctx, []string{"Aria"})
	require.NoError(t, err)
	gs.Agents[0].HP = 0

	_, err = e.NextEvent(ctx, gs)
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = e.ResolveEvent(ctx, gs, "")
	assert.ErrorIs(t, err, ErrGameOver)
	assert.True(t, gs.GameOver)

	require.NoError(t, e.ResetGame(ctx, gs))
	assert.False(t, gs.GameOver)
	assert.True(t, gs.Agents[0].IsAlive())
	assert.Equal(t, "Calm", gs.Agents[0].Personality)
}
