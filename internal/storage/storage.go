// Package storage keeps game sessions between requests.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/internal/config"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

// Store defines session persistence.
type Store interface {
	// Ping tests the backing connection
	Ping(ctx context.Context) error

	// Close releases the backing connection
	Close() error

	// Save stores gs under gs.ID and refreshes its TTL
	Save(ctx context.Context, gs *state.GameState) error

	// Load retrieves a session. Returns nil, nil if it does not exist or has expired
	Load(ctx context.Context, id uuid.UUID) (*state.GameState, error)

	// Delete removes a session. Deleting a missing session is not an error
	Delete(ctx context.Context, id uuid.UUID) error
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

// New builds the store selected by configuration.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage {
	case config.StorageMemory, "":
		return NewMemoryStore(cfg.SessionTTL), nil
	case config.StorageRedis:
		return NewRedisStore(cfg.RedisURL, cfg.SessionTTL, logger)
	default:
		return nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
	}
}
