package runner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/doctrine-engine/internal/handlers"
	"github.com/jwebster45206/doctrine-engine/internal/storage"
	"github.com/jwebster45206/doctrine-engine/pkg/engine"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	backend := llm.NewMockBackend()
	backend.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		switch {
		case strings.Contains(prompt, "designing a member"):
			return `{"personality":"Calm","flaw":"Stubborn","signatureSkill":"Iron Wall"}`, nil
		case strings.Contains(prompt, "game master") && strings.Contains(prompt, "Event type: combat"):
			return `{"description":"A goblin leaps out.","enemies":[{"name":"grik","type":"goblin"}]}`, nil
		case strings.Contains(prompt, "game master"):
			return `{"description":"A bridge sways over the gorge.","challenge":"Cross it."}`, nil
		case strings.Contains(prompt, "roleplaying one member"):
			return `{"action":"Crosses carefully","reasoning":"Orders"}`, nil
		case strings.Contains(prompt, "impartial judge"):
			return `{"summary":"They crossed.","results":[{"name":"Aria","outcome":"good","statChange":{"hp":0,"mind":1},"feedback":"Nice"}]}`, nil
		case strings.Contains(prompt, "combat referee"):
			return `{"success":true,"damage":9,"narrative":"A clean hit."}`, nil
		case strings.Contains(prompt, "turn-based combat"):
			return `{"action":"attack","target":0,"reasoning":"Charge"}`, nil
		}
		return "", errors.New("unexpected prompt")
	}

	eng := engine.New(backend, roll.Fixed(0), logger)
	sessions := handlers.NewSessionHandler(eng, storage.NewMemoryStore(0), backend, []string{"Aria", "Borin", "Cass"}, logger)
	mux := http.NewServeMux()
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func ptr[T any](v T) *T { return &v }

func TestRunSuite_Playthrough(t *testing.T) {
	server := testServer(t)
	r := NewRunner(server.URL + "/")

	suite := TestSuite{
		Name:  "bridge then goblin",
		Party: []string{"Aria", "Borin"},
		Steps: []TestStep{
			{Name: "resolve too early", Action: ActionResolve, ExpectStatus: http.StatusConflict,
				Expectations: Expectations{ResponseContains: []string{"no pending event"}}},
			{Name: "draw", Action: ActionEvent, Expectations: Expectations{
				EventCount: ptr(1), PendingType: ptr("normal"), ResponseContains: []string{"bridge"}}},
			{Name: "resolve", Action: ActionResolve, Doctrine: "Protect each other", Expectations: Expectations{
				PendingEvent: ptr(false), Doctrine: ptr("Protect each other"), MinHistory: ptr(1), ResponseRegex: "^They"}},
			{Name: "ambush", Action: ActionEvent, Expectations: Expectations{
				PendingType: ptr("combat"), InCombat: ptr(true), CombatCount: ptr(1)}},
			{Name: "fight", Action: ActionCombatRun, Expectations: Expectations{
				InCombat: ptr(false), GameOver: ptr(false), MinAlive: ptr(1), ResponseContains: []string{"clean hit"}}},
			{Name: "reset", Action: ActionReset, Expectations: Expectations{EventCount: ptr(0), PartySize: ptr(2)}},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, result.Results, len(suite.Steps))
	for _, step := range result.Results {
		assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
	}
	assert.True(t, result.Results[5].IsReset)
}

func TestRunSuite_ErrorHandlingModes(t *testing.T) {
	server := testServer(t)
	suite := TestSuite{
		Name: "failing",
		Steps: []TestStep{
			{Name: "wrong count", Action: ActionEvent, Expectations: Expectations{EventCount: ptr(7)}},
			{Name: "second draw conflicts", Action: ActionEvent, ExpectStatus: http.StatusConflict},
		},
	}

	r := NewRunner(server.URL)
	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.ErrorContains(t, err, "expected event_count 7, got 1")
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[1].Success)

	r.ErrorHandlingMode = ErrorHandlingExit
	result, err = r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.Len(t, result.Results, 1)
}

func TestRunSuite_DoctrineOverride(t *testing.T) {
	server := testServer(t)
	r := NewRunner(server.URL)
	r.DoctrineOverride = "Run"

	result, err := r.RunSuite(context.Background(), TestSuite{
		Name: "override",
		Steps: []TestStep{
			{Action: ActionEvent},
			{Action: ActionResolve, Doctrine: "Stay", Expectations: Expectations{Doctrine: ptr("Run")}},
		},
	})
	require.NoError(t, err, "%+v", result.Results)
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	write("a.json", `{"name":"a","steps":[{"action":"event"}]}`)
	write("b.json", `{"name":"b","steps":[{"action":"reset"},{"action":"combat_round"}]}`)
	write("inner.json", `{"name":"inner","cases":["b.json"]}`)
	seq := write("all.json", `{"name":"all","cases":["a.json","inner.json"]}`)

	jobs, err := LoadTestSuiteWithExpansion(seq, dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
	assert.Len(t, jobs[1].Suite.Steps, 2)

	bad := write("bad.json", `{"name":"bad","steps":[{"action":"dance"}]}`)
	_, err = LoadTestSuite(bad)
	assert.ErrorContains(t, err, `unknown action "dance"`)

	missing := write("missing.json", `{"name":"missing","cases":["nope.json"]}`)
	_, err = LoadTestSuiteWithExpansion(missing, dir)
	assert.ErrorContains(t, err, "nope.json")
}
