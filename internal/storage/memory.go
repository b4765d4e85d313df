package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions are stored as JSON so a
// loaded GameState never aliases one held by another request.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	pingError error
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store. A ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[uuid.UUID]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetPingError makes Ping fail with err; nil restores success.
func (m *MemoryStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, gs *state.GameState) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[gs.ID] = memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.sessions, id)
		return nil, nil
	}
	var gs state.GameState
	if err := json.Unmarshal(entry.data, &gs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &gs, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
