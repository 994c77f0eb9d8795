package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/quotedesk/checkout/internal/domain"
)

// Backend is the full catalog surface, implemented by Client and Static.
type Backend interface {
	LanguageLister
	ListCertifications(ctx context.Context, tier domain.ServiceTier, pair domain.LanguagePair) (Certifications, error)
	GetPricing(ctx context.Context, pair domain.LanguagePair, priority domain.Priority, certification string) (domain.PricingQuote, error)
}

// CachedResolver serves the language list from a process-wide LanguageCache and passes
// certification and pricing lookups straight to the backend.
type CachedResolver struct {
	backend   Backend
	languages *LanguageCache
}

// NewCachedResolver wraps backend with a language cache of the given ttl.
func NewCachedResolver(backend Backend, ttl time.Duration, recorder Recorder) (*CachedResolver, error) {
	if backend == nil {
		return nil, errors.New("catalog: backend is required")
	}
	return &CachedResolver{backend: backend, languages: NewLanguageCache(backend, ttl, recorder)}, nil
}

// ListLanguages returns the cached language list.
func (r *CachedResolver) ListLanguages(ctx context.Context) ([]string, error) {
	return r.languages.ListLanguages(ctx)
}

// ListCertifications delegates to the backend.
func (r *CachedResolver) ListCertifications(ctx context.Context, tier domain.ServiceTier, pair domain.LanguagePair) (Certifications, error) {
	return r.backend.ListCertifications(ctx, tier, pair)
}

// GetPricing delegates to the backend.
func (r *CachedResolver) GetPricing(ctx context.Context, pair domain.LanguagePair, priority domain.Priority, certification string) (domain.PricingQuote, error) {
	return r.backend.GetPricing(ctx, pair, priority, certification)
}

// InvalidateLanguages drops the cached language list.
func (r *CachedResolver) InvalidateLanguages() {
	r.languages.Invalidate()
}
