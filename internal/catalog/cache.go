package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LanguageLister is the slice of the catalog the language cache wraps.
type LanguageLister interface {
	ListLanguages(ctx context.Context) ([]string, error)
}

// LanguageCache shares one language list across all wizard sessions for ttl. Concurrent misses
// collapse into a single upstream call; failures are never cached.
type LanguageCache struct {
	next     LanguageLister
	ttl      time.Duration
	now      func() time.Time
	recorder Recorder

	group     singleflight.Group
	mu        sync.RWMutex
	languages []string
	expires   time.Time
}

// NewLanguageCache wraps next. A non-positive ttl disables caching but keeps call collapsing.
func NewLanguageCache(next LanguageLister, ttl time.Duration, recorder Recorder) *LanguageCache {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &LanguageCache{next: next, ttl: ttl, now: time.Now, recorder: recorder}
}

// ListLanguages returns the cached list or fetches a fresh one.
func (c *LanguageCache) ListLanguages(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if c.languages != nil && c.now().Before(c.expires) {
		out := append([]string(nil), c.languages...)
		c.mu.RUnlock()
		c.recorder.CatalogCall(endpointLanguages, "cache_hit")
		return out, nil
	}
	c.mu.RUnlock()

	ch := c.group.DoChan(endpointLanguages, func() (any, error) {
		langs, err := c.next.ListLanguages(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.languages = append([]string(nil), langs...)
			c.expires = c.now().Add(c.ttl)
			c.mu.Unlock()
		}
		return langs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]string(nil), res.Val.([]string)...), nil
	}
}

// Invalidate drops the cached list so the next call goes upstream.
func (c *LanguageCache) Invalidate() {
	c.mu.Lock()
	c.languages = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}
