package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

var testNow = time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC)

type fakeResolver struct {
	mu             sync.Mutex
	languages      []string
	languagesErr   error
	certifications map[string]catalog.Certifications
	certErr        error
	prices         map[string]domain.PricingQuote
	priceErrs      map[string]error
	blockPricing   map[string]chan struct{}
	blockCerts     map[string]chan struct{}
	blockLanguages chan struct{}
	hangPricing    bool

	languageCalls int
	certCalls     int
	priceCalls    int
	invalidations int
	certPairs     []domain.LanguagePair
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		languages:      []string{"english", "french", "japanese", "portuguese"},
		certifications: map[string]catalog.Certifications{},
		prices:         map[string]domain.PricingQuote{},
		priceErrs:      map[string]error{},
		blockPricing:   map[string]chan struct{}{},
		blockCerts:     map[string]chan struct{}{},
	}
}

func pairKey(pair domain.LanguagePair) string {
	return strings.ToLower(pair.From + "|" + pair.To)
}

func priceKey(pair domain.LanguagePair, priority domain.Priority, cert string) string {
	return strings.ToLower(pair.From + "|" + pair.To + "|" + string(priority) + "|" + cert)
}

func (f *fakeResolver) ListLanguages(context.Context) ([]string, error) {
	f.mu.Lock()
	f.languageCalls++
	block := f.blockLanguages
	err := f.languagesErr
	languages := append([]string(nil), f.languages...)
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return languages, nil
}

func (f *fakeResolver) ListCertifications(_ context.Context, _ domain.ServiceTier, pair domain.LanguagePair) (catalog.Certifications, error) {
	f.mu.Lock()
	f.certCalls++
	f.certPairs = append(f.certPairs, pair)
	block := f.blockCerts[pairKey(pair)]
	err := f.certErr
	result := f.certifications[pairKey(pair)]
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return catalog.Certifications{}, err
	}
	return result, nil
}

func (f *fakeResolver) InvalidateLanguages() {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
}

func (f *fakeResolver) GetPricing(ctx context.Context, pair domain.LanguagePair, priority domain.Priority, cert string) (domain.PricingQuote, error) {
	f.mu.Lock()
	f.priceCalls++
	key := priceKey(pair, priority, cert)
	block := f.blockPricing[key]
	quote, ok := f.prices[key]
	err := f.priceErrs[key]
	hang := f.hangPricing
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return domain.PricingQuote{}, ctx.Err()
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return domain.PricingQuote{}, err
	}
	if !ok {
		return domain.PricingQuote{}, &catalog.PricingUnavailableError{}
	}
	return quote, nil
}

func (f *fakeResolver) pairsRequested() []domain.LanguagePair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LanguagePair(nil), f.certPairs...)
}

func (f *fakeResolver) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.languageCalls, f.certCalls, f.priceCalls
}

type fakeRecorder struct {
	mu        sync.Mutex
	stale     map[string]int
	checkouts map[string]int
	persist   map[string]int
	active    int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{stale: map[string]int{}, checkouts: map[string]int{}, persist: map[string]int{}}
}

func (r *fakeRecorder) StaleDiscarded(kind string) {
	r.mu.Lock()
	r.stale[kind]++
	r.mu.Unlock()
}

func (r *fakeRecorder) CheckoutSession(processor, outcome string) {
	r.mu.Lock()
	r.checkouts[processor+"/"+outcome]++
	r.mu.Unlock()
}

func (r *fakeRecorder) PersistFailed(op string) {
	r.mu.Lock()
	r.persist[op]++
	r.mu.Unlock()
}

func (r *fakeRecorder) SetActiveWizards(n int) {
	r.mu.Lock()
	r.active = n
	r.mu.Unlock()
}

func (r *fakeRecorder) staleCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale[kind]
}

type recordingPersister struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{saved: map[string][]byte{}}
}

func (p *recordingPersister) Enqueue(sessionID string, payload []byte) {
	p.mu.Lock()
	p.saved[sessionID] = append([]byte(nil), payload...)
	p.mu.Unlock()
}

func (p *recordingPersister) EnqueueDelete(sessionID string) {
	p.mu.Lock()
	delete(p.saved, sessionID)
	p.deleted = append(p.deleted, sessionID)
	p.mu.Unlock()
}

type fakeCheckout struct {
	mu     sync.Mutex
	calls  []CheckoutOrder
	result CheckoutResult
	err    error
}

func (c *fakeCheckout) CreateSession(_ context.Context, order CheckoutOrder) (CheckoutResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, order)
	if c.err != nil {
		return CheckoutResult{}, c.err
	}
	return c.result, nil
}

func (c *fakeCheckout) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type wizardFixture struct {
	wizard    *Wizard
	resolver  *fakeResolver
	recorder  *fakeRecorder
	persister *recordingPersister
	checkout  *fakeCheckout
}

func newWizardFixture(t *testing.T, resolver *fakeResolver, opts ...func(*WizardDeps)) wizardFixture {
	t.Helper()
	fx := wizardFixture{
		resolver:  resolver,
		recorder:  newFakeRecorder(),
		persister: newRecordingPersister(),
		checkout:  &fakeCheckout{result: CheckoutResult{SessionID: "cs_test_1", Provider: "processor", RedirectURL: "https://pay.example/cs_test_1"}},
	}
	deps := WizardDeps{
		Resolver:  resolver,
		Engine:    pricing.NewEngine(pricing.DefaultRateCard()),
		Checkout:  fx.checkout,
		Persister: fx.persister,
		Metrics:   fx.recorder,
		Clock:     func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	w, err := NewWizard("sess-1", NewQuoteState(pricing.DefaultRateCard()), deps)
	if err != nil {
		t.Fatalf("NewWizard returned error: %v", err)
	}
	fx.wizard = w
	return fx
}

func settle(t *testing.T, w *Wizard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Settle(ctx); err != nil {
		t.Fatalf("wizard did not settle: %v", err)
	}
}

func loadLanguages(t *testing.T, w *Wizard) {
	t.Helper()
	w.LoadLanguages(context.Background())
	settle(t, w)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// englishFrench configures scenario A of the catalog: direct route, single "standard" option, 10 per page.
func englishFrench(r *fakeResolver) {
	pair := domain.LanguagePair{From: "english", To: "french"}
	r.certifications[pairKey(pair)] = catalog.Certifications{Options: []string{"standard"}, Route: domain.RouteDirect}
	r.prices[priceKey(pair, domain.PriorityNormal, "standard")] = domain.PricingQuote{PricePerPage: dec("10"), Route: domain.RouteDirect}
	r.prices[priceKey(pair, domain.PriorityExpress, "standard")] = domain.PricingQuote{PricePerPage: dec("15"), Route: domain.RouteDirect}
}

func nullDec(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(v))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
