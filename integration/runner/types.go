package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions. Each maps to one session endpoint.
const (
	ActionEvent       = "event"
	ActionResolve     = "resolve"
	ActionCombatRound = "combat_round"
	ActionCombatRun   = "combat_run"
	ActionReset       = "reset"
	// ActionPlay resolves the pending event whatever its type.
	ActionPlay = "play"
)

// TestSuite defines a complete playthrough scenario.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Party []string   `json:"party,omitempty"` // Used for regular tests; empty means server defaults
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one call against the session plus the state expected afterwards.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	Doctrine     string       `json:"doctrine,omitempty"`
	ExpectStatus int          `json:"expect_status,omitempty"` // 0 means 200
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes.
type Expectations struct {
	EventCount   *int    `json:"event_count,omitempty"`
	CombatCount  *int    `json:"combat_count,omitempty"`
	PendingEvent *bool   `json:"pending_event,omitempty"`
	PendingType  *string `json:"pending_type,omitempty"`
	InCombat     *bool   `json:"in_combat,omitempty"`
	GameOver     *bool   `json:"game_over,omitempty"`
	Doctrine     *string `json:"doctrine,omitempty"`
	PartySize    *int    `json:"party_size,omitempty"`
	MinAlive     *int    `json:"min_alive,omitempty"`
	MinHistory   *int    `json:"min_history,omitempty"`

	// Response analysis runs against the narrative text the step produced.
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsReset      bool
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	SessionID uuid.UUID
}
