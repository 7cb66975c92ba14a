// Package redisstore keeps state snapshots in Redis so several processes can
// share one shopping list store.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/state"
)

// KeyPrefix namespaces every snapshot key.
const KeyPrefix = "agno:state:"

// Config holds the connection parameters.
type Config struct {
	Address  string
	Password string
	DB       int
	// TTL expires snapshots; zero keeps them forever.
	TTL    time.Duration
	Logger logging.Logger
}

// Store implements state.Persister on a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

var _ state.Persister = (*Store)(nil)

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.TTL, cfg.Logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Store{client: client, ttl: ttl, logger: logger}
}

// Key returns the Redis key for a snapshot name.
func Key(name string) string { return KeyPrefix + name }

// SaveState implements state.Persister.
func (s *Store) SaveState(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, Key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", name, err)
	}

	s.logger.Debug("redisstore.save", "name", name, "bytes", len(data))

	return nil
}

// LoadState implements state.Persister.
func (s *Store) LoadState(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis %s: %w", name, state.ErrSnapshotNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", name, err)
	}

	return data, nil
}

// DeleteState removes a snapshot.
func (s *Store) DeleteState(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, Key(name)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", name, err)
	}

	return nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }
