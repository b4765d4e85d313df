package llm

import (
	"context"
	"sync"
)

// MockBackend is a Backend for tests. Behavior is controlled through the func
// fields; every call is recorded.
type MockBackend struct {
	GenerateFunc   func(ctx context.Context, prompt string, jsonMode bool) (string, error)
	PingFunc       func(ctx context.Context) error
	ListModelsFunc func(ctx context.Context) ([]string, error)

	// Track calls for testing
	GenerateCalls []GenerateCall
	PingCalls     int

	mu sync.Mutex // protects all fields above
}

// GenerateCall records one Generate invocation.
type GenerateCall struct {
	Prompt   string
	JSONMode bool
}

// Ensure MockBackend implements Backend
var _ Backend = (*MockBackend)(nil)

// NewMockBackend creates a mock that answers every prompt with "{}".
func NewMockBackend() *MockBackend {
	return &MockBackend{
		GenerateCalls: make([]GenerateCall, 0),
	}
}

func (m *MockBackend) Name() string { return "mock" }

// Generate mocks a completion
func (m *MockBackend) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Prompt: prompt, JSONMode: jsonMode})
	fn := m.GenerateFunc
	m.mu.Unlock()

	// fn runs unlocked so concurrent fan-out tests do not serialize on the mock.
	if fn != nil {
		return fn(ctx, prompt, jsonMode)
	}
	return "{}", nil
}

// Ping mocks a health check
func (m *MockBackend) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	fn := m.PingFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// ListModels mocks model listing
func (m *MockBackend) ListModels(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	fn := m.ListModelsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return []string{"mock-model"}, nil
}

// SetResponse makes every Generate call return text.
func (m *MockBackend) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		return text, nil
	}
}

// SetGenerateError makes every Generate call fail with err.
func (m *MockBackend) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		return "", err
	}
}

// SetPingError makes Ping fail with err.
func (m *MockBackend) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingFunc = func(ctx context.Context) error {
		return err
	}
}

// Calls returns a copy of the recorded Generate calls.
func (m *MockBackend) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateCall, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}

// Reset clears all call tracking
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([]GenerateCall, 0)
	m.PingCalls = 0
}
