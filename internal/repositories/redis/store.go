// Package redis persists quote state in Redis with a sliding expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quotedesk/checkout/internal/repositories"
)

const defaultKeyPrefix = "quote:session:"

// commander is the subset of the go-redis client used by the store.
type commander interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Config controls connection and key layout.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Store implements repositories.QuoteStateStore on Redis string keys.
type Store struct {
	client commander
	closer func() error
	prefix string
	ttl    time.Duration
}

var _ repositories.QuoteStateStore = (*Store)(nil)

// NewStore dials Redis lazily; the first command establishes the connection.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis store: address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := newStore(client, cfg.KeyPrefix, cfg.TTL)
	store.closer = client.Close
	return store, nil
}

func newStore(client commander, prefix string, ttl time.Duration) *Store {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Load fetches the payload, mapping a missing key to repositories.ErrNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %s: %w", sessionID, err)
	}
	return payload, nil
}

// Save writes the payload and refreshes its expiry.
func (s *Store) Save(ctx context.Context, sessionID string, payload []byte) error {
	if err := s.client.Set(ctx, s.key(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the key.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis store: del %s: %w", sessionID, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
