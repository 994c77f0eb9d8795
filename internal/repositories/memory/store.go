// Package memory keeps quote state in process memory. State does not survive restarts.
package memory

import (
	"context"
	"sync"

	"github.com/quotedesk/checkout/internal/repositories"
)

// Store is a concurrency-safe in-memory QuoteStateStore.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ repositories.QuoteStateStore = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns a copy of the stored payload or repositories.ErrNotFound.
func (s *Store) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.data[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Save stores a copy of payload.
func (s *Store) Save(_ context.Context, sessionID string, payload []byte) error {
	s.mu.Lock()
	s.data[sessionID] = append([]byte(nil), payload...)
	s.mu.Unlock()
	return nil
}

// Delete removes the session; missing sessions are ignored.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len reports the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
