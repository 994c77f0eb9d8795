package services

import (
	"context"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/domain"
)

// CatalogResolver is the catalog/pricing contract the wizard resolves selections against.
// catalog.Client and catalog.Static implement it.
type CatalogResolver interface {
	ListLanguages(ctx context.Context) ([]string, error)
	ListCertifications(ctx context.Context, tier domain.ServiceTier, pair domain.LanguagePair) (catalog.Certifications, error)
	GetPricing(ctx context.Context, pair domain.LanguagePair, priority domain.Priority, certification string) (domain.PricingQuote, error)
}

// languageInvalidator is implemented by resolvers that cache the language list.
// catalog.CachedResolver implements it.
type languageInvalidator interface {
	InvalidateLanguages()
}

// Recorder receives wizard-level metrics. observability.Metrics implements it.
type Recorder interface {
	StaleDiscarded(kind string)
	CheckoutSession(processor, outcome string)
	PersistFailed(op string)
	SetActiveWizards(n int)
}

type nopRecorder struct{}

func (nopRecorder) StaleDiscarded(string)          {}
func (nopRecorder) CheckoutSession(string, string) {}
func (nopRecorder) PersistFailed(string)           {}
func (nopRecorder) SetActiveWizards(int)           {}

// statePersister is the asynchronous sink for quote snapshots.
type statePersister interface {
	Enqueue(sessionID string, payload []byte)
	EnqueueDelete(sessionID string)
}

// checkoutCreator is the Checkout Handoff used by the wizard.
type checkoutCreator interface {
	CreateSession(ctx context.Context, order CheckoutOrder) (CheckoutResult, error)
}

func noopLogger(context.Context, string, map[string]any) {}
