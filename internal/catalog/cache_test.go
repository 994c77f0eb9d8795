package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingLister struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (l *countingLister) ListLanguages(context.Context) ([]string, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}
	return []string{"english", "french"}, nil
}

func TestLanguageCacheServesWithinTTL(t *testing.T) {
	lister := &countingLister{}
	cache := NewLanguageCache(lister, time.Minute, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := cache.ListLanguages(context.Background()); err != nil {
			t.Fatalf("ListLanguages returned error: %v", err)
		}
	}
	if got := lister.calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cache.ListLanguages(context.Background()); err != nil {
		t.Fatalf("ListLanguages returned error: %v", err)
	}
	if got := lister.calls.Load(); got != 2 {
		t.Fatalf("expected refresh after expiry, got %d calls", got)
	}

	cache.Invalidate()
	if _, err := cache.ListLanguages(context.Background()); err != nil {
		t.Fatalf("ListLanguages returned error: %v", err)
	}
	if got := lister.calls.Load(); got != 3 {
		t.Fatalf("expected refresh after invalidate, got %d calls", got)
	}
}

func TestLanguageCacheDoesNotCacheFailures(t *testing.T) {
	lister := &countingLister{err: errors.New("down")}
	cache := NewLanguageCache(lister, time.Minute, nil)
	for i := 0; i < 2; i++ {
		if _, err := cache.ListLanguages(context.Background()); err == nil {
			t.Fatalf("expected error")
		}
	}
	if got := lister.calls.Load(); got != 2 {
		t.Fatalf("expected every failure to retry upstream, got %d calls", got)
	}
}

func TestLanguageCacheCollapsesConcurrentMisses(t *testing.T) {
	lister := &countingLister{gate: make(chan struct{})}
	cache := NewLanguageCache(lister, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ListLanguages(context.Background()); err != nil {
				t.Errorf("ListLanguages returned error: %v", err)
			}
		}()
	}
	for lister.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(lister.gate)
	wg.Wait()

	if got := lister.calls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}
}
