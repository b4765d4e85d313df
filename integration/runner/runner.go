package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/internal/handlers"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes playthrough suites against a running doctrine-engine API.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	DoctrineOverride  string // If set, replaces the doctrine of every resolve and combat step
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 5 * time.Minute},
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	for i, step := range suite.Steps {
		switch step.Action {
		case ActionEvent, ActionResolve, ActionCombatRound, ActionCombatRun, ActionReset, ActionPlay:
		default:
			return TestSuite{}, fmt.Errorf("%s: step %d has unknown action %q", filename, i, step.Action)
		}
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates a fresh session and executes every step against it.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	var created state.GameState
	if _, err := r.call(ctx, http.MethodPost, "/v1/sessions", handlers.CreateSessionRequest{Names: suite.Party}, &created); err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.SessionID = created.ID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, created.ID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a single step, retrying once when the request times out.
func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	result := r.executeStep(ctx, id, step)
	var netErr net.Error
	if result.Error != nil && errors.As(result.Error, &netErr) && netErr.Timeout() {
		r.Logger("    Timeout detected, retrying step: %s", step.Name)
		return r.executeStep(ctx, id, step)
	}
	return result
}

func (r *Runner) executeStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name, IsReset: step.Action == ActionReset}

	doctrine := step.Doctrine
	if r.DoctrineOverride != "" {
		doctrine = r.DoctrineOverride
	}

	status, text, err := r.perform(ctx, id, step.Action, doctrine)
	result.ResponseText = text
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	want := step.ExpectStatus
	if want == 0 {
		want = http.StatusOK
	}
	if status != want {
		result.Error = fmt.Errorf("expected status %d, got %d: %s", want, status, text)
		result.Duration = time.Since(start)
		return result
	}

	var gs state.GameState
	if _, err := r.call(ctx, http.MethodGet, sessionPath(id, ""), nil, &gs); err != nil {
		result.Error = fmt.Errorf("failed to get session after step: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := checkExpectations(step.Expectations, &gs, text); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// perform calls the endpoint for action and returns the status with the
// narrative text of the response. Non-2xx bodies are returned as text.
func (r *Runner) perform(ctx context.Context, id uuid.UUID, action, doctrine string) (int, string, error) {
	body := handlers.DoctrineRequest{Doctrine: doctrine}
	if action == ActionPlay {
		var gs state.GameState
		if _, err := r.call(ctx, http.MethodGet, sessionPath(id, ""), nil, &gs); err != nil {
			return 0, "", fmt.Errorf("failed to get session: %w", err)
		}
		action = ActionResolve
		if gs.Encounter != nil {
			action = ActionCombatRun
		}
	}
	switch action {
	case ActionEvent:
		var resp handlers.NextEventResponse
		status, err := r.call(ctx, http.MethodPost, sessionPath(id, "events"), nil, &resp)
		if err != nil || resp.Event == nil {
			return status, errorText(err), unlessStatus(err)
		}
		return status, resp.Event.Description, nil
	case ActionResolve:
		var resp handlers.EventResolveResponse
		status, err := r.call(ctx, http.MethodPost, sessionPath(id, "events/resolve"), body, &resp)
		if err != nil || resp.Report == nil {
			return status, errorText(err), unlessStatus(err)
		}
		return status, resp.Report.Summary, nil
	case ActionCombatRound, ActionCombatRun:
		path := "combat/round"
		if action == ActionCombatRun {
			path = "combat/run"
		}
		var resp handlers.CombatResponse
		status, err := r.call(ctx, http.MethodPost, sessionPath(id, path), body, &resp)
		if err != nil || resp.Result == nil {
			return status, errorText(err), unlessStatus(err)
		}
		var lines []string
		for _, round := range resp.Result.Rounds {
			for _, entry := range round.Entries {
				if entry.Narrative != "" {
					lines = append(lines, entry.Narrative)
				}
			}
		}
		return status, strings.Join(lines, "\n"), nil
	case ActionReset:
		status, err := r.call(ctx, http.MethodPost, sessionPath(id, "reset"), nil, nil)
		return status, "[SESSION RESET]", unlessStatus(err)
	}
	return 0, "", fmt.Errorf("unknown action %q", action)
}

// statusError is an API answer outside 2xx. It is a valid step outcome
// when the step expects that status.
type statusError struct {
	msg string
}

func (e *statusError) Error() string { return e.msg }

func unlessStatus(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return nil
	}
	return err
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *Runner) call(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr handlers.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, &statusError{msg: apiErr.Error}
		}
		return resp.StatusCode, &statusError{msg: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func sessionPath(id uuid.UUID, action string) string {
	p := "/v1/sessions/" + id.String()
	if action != "" {
		p += "/" + action
	}
	return p
}

// checkExpectations validates the expectations against the session after a step.
func checkExpectations(exp Expectations, gs *state.GameState, responseText string) error {
	if exp.EventCount != nil && gs.EventCount != *exp.EventCount {
		return fmt.Errorf("expected event_count %d, got %d", *exp.EventCount, gs.EventCount)
	}
	if exp.CombatCount != nil && gs.CombatCount != *exp.CombatCount {
		return fmt.Errorf("expected combat_count %d, got %d", *exp.CombatCount, gs.CombatCount)
	}
	if exp.PendingEvent != nil && (gs.PendingEvent != nil) != *exp.PendingEvent {
		return fmt.Errorf("expected pending_event %t, got %t", *exp.PendingEvent, gs.PendingEvent != nil)
	}
	if exp.PendingType != nil {
		if gs.PendingEvent == nil {
			return fmt.Errorf("expected pending %s event, got none", *exp.PendingType)
		}
		if string(gs.PendingEvent.Type) != *exp.PendingType {
			return fmt.Errorf("expected pending %s event, got %s", *exp.PendingType, gs.PendingEvent.Type)
		}
	}
	if exp.InCombat != nil && (gs.Encounter != nil) != *exp.InCombat {
		return fmt.Errorf("expected in_combat %t, got %t", *exp.InCombat, gs.Encounter != nil)
	}
	if exp.GameOver != nil && gs.GameOver != *exp.GameOver {
		return fmt.Errorf("expected game_over %t, got %t", *exp.GameOver, gs.GameOver)
	}
	if exp.Doctrine != nil && gs.Doctrine != *exp.Doctrine {
		return fmt.Errorf("expected doctrine %q, got %q", *exp.Doctrine, gs.Doctrine)
	}
	if exp.PartySize != nil && len(gs.Agents) != *exp.PartySize {
		return fmt.Errorf("expected party of %d, got %d", *exp.PartySize, len(gs.Agents))
	}
	if exp.MinAlive != nil && len(gs.LivingAgents()) < *exp.MinAlive {
		return fmt.Errorf("expected at least %d living agents, got %d", *exp.MinAlive, len(gs.LivingAgents()))
	}
	if exp.MinHistory != nil && len(gs.History) < *exp.MinHistory {
		return fmt.Errorf("expected at least %d history entries, got %d", *exp.MinHistory, len(gs.History))
	}

	lowerResponse := strings.ToLower(responseText)
	for _, expectedText := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
		}
	}
	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}
	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}

	return nil
}
