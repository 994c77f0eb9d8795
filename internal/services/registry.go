package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/quotedesk/checkout/internal/repositories"
)

const (
	defaultIdleTTL     = 2 * time.Hour
	defaultLoadTimeout = 3 * time.Second
)

// WizardRegistryDeps wires the registry.
type WizardRegistryDeps struct {
	Wizard      WizardDeps
	Store       repositories.QuoteStateStore
	IdleTTL     time.Duration
	LoadTimeout time.Duration
}

// WizardRegistry owns one Wizard per session. Wizards are created lazily and rehydrated from the
// store; unreadable snapshots start from defaults.
type WizardRegistry struct {
	deps        WizardDeps
	store       repositories.QuoteStateStore
	idleTTL     time.Duration
	loadTimeout time.Duration

	mu      sync.Mutex
	wizards map[string]*Wizard
}

// NewWizardRegistry validates dependencies and returns an empty registry.
func NewWizardRegistry(deps WizardRegistryDeps) (*WizardRegistry, error) {
	wizardDeps, err := deps.Wizard.withDefaults()
	if err != nil {
		return nil, err
	}
	idleTTL := deps.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	loadTimeout := deps.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &WizardRegistry{
		deps:        wizardDeps,
		store:       deps.Store,
		idleTTL:     idleTTL,
		loadTimeout: loadTimeout,
		wizards:     make(map[string]*Wizard),
	}, nil
}

// Get returns the wizard for sessionID, rehydrating it on first use.
func (r *WizardRegistry) Get(ctx context.Context, sessionID string) (*Wizard, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("wizard registry: session id is required")
	}

	r.mu.Lock()
	if w, ok := r.wizards[sessionID]; ok {
		r.mu.Unlock()
		return w, nil
	}
	r.mu.Unlock()

	state, restored := r.load(ctx, sessionID)
	w, err := NewWizard(sessionID, state, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.wizards[sessionID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.wizards[sessionID] = w
	count := len(r.wizards)
	r.mu.Unlock()

	r.deps.Metrics.SetActiveWizards(count)
	if restored {
		w.Resume(ctx)
	}
	return w, nil
}

func (r *WizardRegistry) load(ctx context.Context, sessionID string) (QuoteState, bool) {
	card := r.deps.Engine.RateCard()
	if r.store == nil {
		return NewQuoteState(card), false
	}
	loadCtx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()

	payload, err := r.store.Load(loadCtx, sessionID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			r.deps.Metrics.PersistFailed("load")
			r.deps.Logger(ctx, "rehydrate_failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
		}
		return NewQuoteState(card), false
	}
	snap, err := DecodeSnapshot(payload)
	if err != nil {
		r.deps.Logger(ctx, "rehydrate_failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
		return NewQuoteState(card), false
	}
	r.deps.Logger(ctx, "wizard_rehydrated", map[string]any{"sessionId": sessionID, "schemaVersion": snap.SchemaVersion})
	return RestoreQuoteState(snap, card), true
}

// Sweep evicts wizards idle for longer than the idle TTL. Their persisted state is kept.
func (r *WizardRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	var evicted []*Wizard
	for id, w := range r.wizards {
		if now.Sub(w.LastActive()) > r.idleTTL {
			evicted = append(evicted, w)
			delete(r.wizards, id)
		}
	}
	count := len(r.wizards)
	r.mu.Unlock()

	for _, w := range evicted {
		w.Close()
	}
	if len(evicted) > 0 {
		r.deps.Metrics.SetActiveWizards(count)
	}
	return len(evicted)
}

// Run sweeps idle wizards every interval until ctx ends.
func (r *WizardRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.deps.Clock()); n > 0 {
				r.deps.Logger(ctx, "wizards_evicted", map[string]any{"count": n})
			}
		}
	}
}

// Len reports the number of live wizards.
func (r *WizardRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}

// Close cancels in-flight calls on every wizard.
func (r *WizardRegistry) Close() {
	r.mu.Lock()
	wizards := make([]*Wizard, 0, len(r.wizards))
	for _, w := range r.wizards {
		wizards = append(wizards, w)
	}
	r.mu.Unlock()
	for _, w := range wizards {
		w.Close()
	}
}
