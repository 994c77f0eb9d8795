package repositories

import (
	"context"
	"errors"

	"github.com/quotedesk/checkout/internal/domain"
)

// ErrNotFound is returned when no quote state is stored for a session.
var ErrNotFound = errors.New("repositories: not found")

// QuoteStateStore is the durable key-value store holding serialised quote state per wizard session.
type QuoteStateStore interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
