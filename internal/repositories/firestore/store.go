// Package firestore persists quote state as Firestore documents keyed by session id.
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/quotedesk/checkout/internal/platform/firestore"
	"github.com/quotedesk/checkout/internal/repositories"
)

const defaultCollection = "quoteSessions"

type quoteStateDocument struct {
	Payload   []byte    `firestore:"payload"`
	UpdatedAt time.Time `firestore:"updatedAt"`
	ExpiresAt time.Time `firestore:"expiresAt,omitempty"`
}

// Store implements repositories.QuoteStateStore on a Firestore collection.
type Store struct {
	provider   *pfirestore.Provider
	collection string
	ttl        time.Duration
	now        func() time.Time
}

var _ repositories.QuoteStateStore = (*Store)(nil)

// NewStore constructs a Firestore-backed quote state store. The expiresAt field
// is meant to back a Firestore TTL policy on the collection.
func NewStore(provider *pfirestore.Provider, collection string, ttl time.Duration) (*Store, error) {
	if provider == nil {
		return nil, errors.New("quote state store requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultCollection
	}
	return &Store{provider: provider, collection: collection, ttl: ttl, now: time.Now}, nil
}

func (s *Store) doc(ctx context.Context, sessionID string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(sessionID), nil
}

// Load reads the stored payload.
func (s *Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	ref, err := s.doc(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, pfirestore.WrapError("quoteState.get", err)
	}
	var doc quoteStateDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, pfirestore.WrapError("quoteState.decode", err)
	}
	if !doc.ExpiresAt.IsZero() && s.now().After(doc.ExpiresAt) {
		return nil, repositories.ErrNotFound
	}
	return doc.Payload, nil
}

// Save overwrites the session document.
func (s *Store) Save(ctx context.Context, sessionID string, payload []byte) error {
	ref, err := s.doc(ctx, sessionID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	doc := quoteStateDocument{Payload: payload, UpdatedAt: now}
	if s.ttl > 0 {
		doc.ExpiresAt = now.Add(s.ttl)
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("quoteState.set", err)
	}
	return nil
}

// Delete removes the session document. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	ref, err := s.doc(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("quoteState.delete", err)
	}
	return nil
}

// Ping verifies the client can be created and the collection queried.
func (s *Store) Ping(ctx context.Context) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	iter := client.Collection(s.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("quoteState.ping", err)
	}
	return nil
}
