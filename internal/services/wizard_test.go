package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

func chooseEnglishFrench(t *testing.T, fx wizardFixture) {
	t.Helper()
	ctx := context.Background()
	loadLanguages(t, fx.wizard)
	if err := fx.wizard.SetLanguages(ctx, strPtr("English"), strPtr("french")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	settle(t, fx.wizard)
}

func TestWizardScenarioDirectRoute(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)

	if err := fx.wizard.SetPages(context.Background(), "3"); err != nil {
		t.Fatalf("SetPages returned error: %v", err)
	}
	view := fx.wizard.View()
	if view.Certification != "standard" {
		t.Fatalf("expected first certification to be selected, got %q", view.Certification)
	}
	if view.Estimate.Route != "direct" || view.Estimate.Total != "30.00" {
		t.Fatalf("unexpected estimate %+v", view.Estimate)
	}
	if view.Estimate.FirstLegPrice != "" || view.Estimate.RouteNotice != "" {
		t.Fatalf("direct route must not show legs: %+v", view.Estimate)
	}
	if view.FromLang != "english" || view.FromLabel != "English" {
		t.Fatalf("expected canonical language with title-cased label, got %q %q", view.FromLang, view.FromLabel)
	}
}

func TestWizardScenarioCrossRoute(t *testing.T) {
	resolver := newFakeResolver()
	pair := domain.LanguagePair{From: "japanese", To: "portuguese"}
	resolver.certifications[pairKey(pair)] = catalog.Certifications{Options: []string{"standard"}, Route: domain.RouteCross}
	resolver.prices[priceKey(pair, domain.PriorityNormal, "standard")] = domain.PricingQuote{
		PricePerPage:   dec("17"),
		Route:          domain.RouteCross,
		FirstLegPrice:  nullDec("8"),
		SecondLegPrice: nullDec("9"),
	}
	fx := newWizardFixture(t, resolver)
	ctx := context.Background()
	loadLanguages(t, fx.wizard)
	if err := fx.wizard.SetLanguages(ctx, strPtr("japanese"), strPtr("portuguese")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	if err := fx.wizard.SetPages(ctx, "2"); err != nil {
		t.Fatalf("SetPages returned error: %v", err)
	}
	settle(t, fx.wizard)

	est := fx.wizard.View().Estimate
	if est.Total != "34.00" {
		t.Fatalf("expected 34.00, got %s", est.Total)
	}
	if est.FirstLegPrice != "8.00" || est.SecondLegPrice != "9.00" {
		t.Fatalf("expected both legs displayed, got %+v", est)
	}
	if est.RouteNotice == "" {
		t.Fatalf("expected intermediary language notice for cross route")
	}
}

func TestWizardScenarioPhysicalCopyNeedsStreet(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	ctx := context.Background()
	if err := fx.wizard.SetEmail(ctx, "client@example.com"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}
	if err := fx.wizard.Next(ctx); err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if err := fx.wizard.SetOptions(ctx, OptionsUpdate{PhysicalCopy: boolPtr(true)}); err != nil {
		t.Fatalf("SetOptions returned error: %v", err)
	}
	settle(t, fx.wizard)
	_, certCalls, priceCalls := resolver.counts()

	err := fx.wizard.Next(ctx)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "address.street" {
		t.Fatalf("expected street validation error, got %v", err)
	}
	view := fx.wizard.View()
	if view.Stage != string(domain.StageSelectOptions) {
		t.Fatalf("expected to stay on options stage, got %s", view.Stage)
	}
	if view.MessageKind != string(MessageValidation) || view.CanAdvance {
		t.Fatalf("expected validation message and blocked navigation, got %+v", view)
	}
	if _, c, p := resolver.counts(); c != certCalls || p != priceCalls {
		t.Fatalf("gate failure must not call the catalog")
	}

	if err := fx.wizard.SetAddress(ctx, domain.DeliveryAddress{Street: "1 Main St", City: "Pune"}); err != nil {
		t.Fatalf("SetAddress returned error: %v", err)
	}
	if err := fx.wizard.Next(ctx); err != nil {
		t.Fatalf("expected to advance once street is set, got %v", err)
	}
	if got := fx.wizard.View().Order.Address.Country; got != domain.DefaultCountry {
		t.Fatalf("expected default country, got %q", got)
	}
}

func TestWizardScenarioPricingDeclined(t *testing.T) {
	resolver := newFakeResolver()
	pair := domain.LanguagePair{From: "english", To: "french"}
	resolver.certifications[pairKey(pair)] = catalog.Certifications{Options: []string{"standard"}, Route: domain.RouteDirect}
	resolver.priceErrs[priceKey(pair, domain.PriorityNormal, "standard")] = &catalog.PricingUnavailableError{Reason: "unsupported pair"}
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	ctx := context.Background()
	if err := fx.wizard.SetEmail(ctx, "client@example.com"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}

	view := fx.wizard.View()
	if view.Estimate.Total != "0.00" {
		t.Fatalf("expected zero total, got %s", view.Estimate.Total)
	}
	if view.Message != "unsupported pair" || view.MessageKind != string(MessagePricingUnavailable) {
		t.Fatalf("expected verbatim reason, got %q (%s)", view.Message, view.MessageKind)
	}

	err := fx.wizard.Next(ctx)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "unsupported pair" {
		t.Fatalf("expected navigation blocked with server reason, got %v", err)
	}
	if fx.wizard.View().Stage != string(domain.StageChooseService) {
		t.Fatalf("expected to stay on first stage")
	}
}

func TestWizardPricingDeclinedWithoutReasonUsesGenericMessage(t *testing.T) {
	resolver := newFakeResolver()
	pair := domain.LanguagePair{From: "english", To: "french"}
	resolver.certifications[pairKey(pair)] = catalog.Certifications{Options: []string{"standard"}}
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)

	if got := fx.wizard.View().Message; got != messagePricingUnavailable {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestWizardScenarioInvalidEmail(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	ctx := context.Background()
	if err := fx.wizard.SetEmail(ctx, "not-an-email"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}

	if fx.wizard.View().CanAdvance {
		t.Fatalf("expected advance to be disabled for invalid email")
	}
	err := fx.wizard.Next(ctx)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := fx.wizard.Checkout(ctx); !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected checkout to be rejected, got %v", err)
	}
	if fx.checkout.callCount() != 0 {
		t.Fatalf("checkout handoff must not be called")
	}
}

func TestWizardRejectsSameLanguagePairWithoutCallingCatalog(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	ctx := context.Background()
	loadLanguages(t, fx.wizard)

	if err := fx.wizard.SetLanguages(ctx, strPtr("english"), strPtr("English")); !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if err := fx.wizard.SetLanguages(ctx, strPtr("english"), nil); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	if err := fx.wizard.SetLanguages(ctx, nil, strPtr("english")); !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	settle(t, fx.wizard)
	if _, certCalls, priceCalls := resolver.counts(); certCalls != 0 || priceCalls != 0 {
		t.Fatalf("expected no catalog calls, got certifications=%d pricing=%d", certCalls, priceCalls)
	}
}

func TestWizardRejectsLanguagesBeforeListLoaded(t *testing.T) {
	fx := newWizardFixture(t, newFakeResolver())
	err := fx.wizard.SetLanguages(context.Background(), strPtr("english"), strPtr("french"))
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestWizardLanguagesLoadOnceAndReloadOnRequest(t *testing.T) {
	resolver := newFakeResolver()
	resolver.languagesErr = errors.New("503")
	fx := newWizardFixture(t, resolver)
	loadLanguages(t, fx.wizard)

	view := fx.wizard.View()
	if view.LanguagesReady || view.MessageKind != string(MessageCatalogUnavailable) {
		t.Fatalf("expected catalog unavailable, got %+v", view)
	}
	if view.Message != messageLanguagesFailed {
		t.Fatalf("unexpected message %q", view.Message)
	}

	loadLanguages(t, fx.wizard)
	if calls, _, _ := resolver.counts(); calls != 1 {
		t.Fatalf("expected no automatic retry, got %d calls", calls)
	}

	resolver.mu.Lock()
	resolver.languagesErr = nil
	resolver.mu.Unlock()
	fx.wizard.ReloadLanguages(context.Background())
	settle(t, fx.wizard)

	view = fx.wizard.View()
	if !view.LanguagesReady || len(view.Languages) != 4 || view.Message != "" {
		t.Fatalf("expected languages after reload, got %+v", view)
	}
	resolver.mu.Lock()
	invalidations := resolver.invalidations
	resolver.mu.Unlock()
	if invalidations != 1 {
		t.Fatalf("expected reload to invalidate the cached list once, got %d", invalidations)
	}
}

type countingBackend struct {
	*catalog.Static
	mu    sync.Mutex
	calls int
}

func (b *countingBackend) ListLanguages(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.Static.ListLanguages(ctx)
}

func TestWizardReloadBypassesSharedLanguageCache(t *testing.T) {
	backend := &countingBackend{Static: catalog.NewStatic()}
	resolver, err := catalog.NewCachedResolver(backend, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCachedResolver returned error: %v", err)
	}
	w, err := NewWizard("sess-1", NewQuoteState(pricing.DefaultRateCard()), WizardDeps{Resolver: resolver})
	if err != nil {
		t.Fatalf("NewWizard returned error: %v", err)
	}
	loadLanguages(t, w)
	w.ReloadLanguages(context.Background())
	settle(t, w)

	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected reload to reach the backend, got %d calls", calls)
	}
}

func TestWizardReloadDropsLanguagesNoLongerListed(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)

	resolver.mu.Lock()
	resolver.languages = []string{"english", "japanese"}
	resolver.mu.Unlock()
	fx.wizard.ReloadLanguages(context.Background())
	settle(t, fx.wizard)

	view := fx.wizard.View()
	if view.FromLang != "english" || view.ToLang != "" {
		t.Fatalf("expected target cleared after reload, got from=%q to=%q", view.FromLang, view.ToLang)
	}
	if view.Certification != "" || view.Estimate.Total != "0.00" {
		t.Fatalf("expected resolved values cleared, got %+v", view)
	}
}

func TestWizardNoCertificationsForPair(t *testing.T) {
	resolver := newFakeResolver()
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)

	view := fx.wizard.View()
	if view.Certification != "" || len(view.Certifications) != 0 {
		t.Fatalf("expected no certification, got %+v", view)
	}
	if view.Message != messageNoCertifications {
		t.Fatalf("expected no-certifications message, got %q", view.Message)
	}
	if _, _, priceCalls := resolver.counts(); priceCalls != 0 {
		t.Fatalf("pricing must be skipped without a certification")
	}

	err := fx.wizard.SetCertification(context.Background(), "standard")
	if !errors.Is(err, ErrNoCertificationsForPair) {
		t.Fatalf("expected ErrNoCertificationsForPair, got %v", err)
	}
	if view := fx.wizard.View(); view.MessageKind != string(MessageNoCertifications) {
		t.Fatalf("expected no-certifications message kind, got %q", view.MessageKind)
	}
}

func TestWizardCertificationFailureIsNotRetriedAutomatically(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	resolver.certErr = errors.New("timeout")
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	ctx := context.Background()

	if got := fx.wizard.View().Message; got != messageCertificationsFailed {
		t.Fatalf("unexpected message %q", got)
	}
	if err := fx.wizard.SetEmail(ctx, "client@example.com"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}
	settle(t, fx.wizard)
	if _, certCalls, _ := resolver.counts(); certCalls != 1 {
		t.Fatalf("unrelated input must not retry, got %d calls", certCalls)
	}

	resolver.mu.Lock()
	resolver.certErr = nil
	resolver.mu.Unlock()
	if err := fx.wizard.SetLanguages(ctx, strPtr("english"), strPtr("french")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	settle(t, fx.wizard)
	if _, certCalls, _ := resolver.counts(); certCalls != 2 {
		t.Fatalf("re-selecting the pair should retry, got %d calls", certCalls)
	}
	if view := fx.wizard.View(); view.Certification != "standard" || view.Estimate.Total != "10.00" {
		t.Fatalf("expected recovery after retry, got %+v", view)
	}
}

func TestWizardDiscardsStalePricing(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	pair := domain.LanguagePair{From: "english", To: "french"}
	release := make(chan struct{})
	resolver.blockPricing[priceKey(pair, domain.PriorityNormal, "standard")] = release
	fx := newWizardFixture(t, resolver)
	ctx := context.Background()
	loadLanguages(t, fx.wizard)

	if err := fx.wizard.SetLanguages(ctx, strPtr("english"), strPtr("french")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	waitFor(t, func() bool { _, _, p := resolver.counts(); return p == 1 })

	if err := fx.wizard.SetPriority(ctx, "express"); err != nil {
		t.Fatalf("SetPriority returned error: %v", err)
	}
	waitFor(t, func() bool { _, _, p := resolver.counts(); return p == 2 })
	close(release)
	settle(t, fx.wizard)

	view := fx.wizard.View()
	if view.Estimate.PricePerPage != "15.00" || view.Delivery.Priority != "express" {
		t.Fatalf("expected express price to win, got %+v", view.Estimate)
	}
	if fx.recorder.staleCount("pricing") != 1 {
		t.Fatalf("expected one stale pricing response, got %d", fx.recorder.staleCount("pricing"))
	}
}

func TestWizardDiscardsStaleCertifications(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	english := domain.LanguagePair{From: "english", To: "french"}
	japanese := domain.LanguagePair{From: "japanese", To: "portuguese"}
	resolver.certifications[pairKey(japanese)] = catalog.Certifications{Options: []string{"sworn"}, Route: domain.RouteCross}
	resolver.prices[priceKey(japanese, domain.PriorityNormal, "sworn")] = domain.PricingQuote{
		Route:          domain.RouteCross,
		FirstLegPrice:  nullDec("8"),
		SecondLegPrice: nullDec("9"),
	}
	release := make(chan struct{})
	resolver.blockCerts[pairKey(english)] = release
	fx := newWizardFixture(t, resolver)
	ctx := context.Background()
	loadLanguages(t, fx.wizard)

	if err := fx.wizard.SetLanguages(ctx, strPtr("english"), strPtr("french")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	waitFor(t, func() bool { _, c, _ := resolver.counts(); return c == 1 })

	if err := fx.wizard.SetLanguages(ctx, strPtr("japanese"), strPtr("portuguese")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	waitFor(t, func() bool { _, c, _ := resolver.counts(); return c == 2 })
	close(release)
	settle(t, fx.wizard)

	view := fx.wizard.View()
	if len(view.Certifications) != 1 || view.Certifications[0] != "sworn" || view.Certification != "sworn" {
		t.Fatalf("expected only the current pair's options, got %+v", view.Certifications)
	}
	if fx.recorder.staleCount("certifications") != 1 {
		t.Fatalf("expected one stale certification response, got %d", fx.recorder.staleCount("certifications"))
	}
	if view.Estimate.Total != "17.00" {
		t.Fatalf("expected cross route total 17.00, got %s", view.Estimate.Total)
	}
}

func TestWizardResolveTimeoutEndsHungPricing(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	resolver.hangPricing = true
	fx := newWizardFixture(t, resolver, func(d *WizardDeps) { d.ResolveTimeout = 50 * time.Millisecond })
	chooseEnglishFrench(t, fx)

	view := fx.wizard.View()
	if view.MessageKind != string(MessageCatalogUnavailable) || view.Message != messagePricingFailed {
		t.Fatalf("expected pricing failure after timeout, got kind=%q message=%q", view.MessageKind, view.Message)
	}
	if view.Estimate.Total != "0.00" {
		t.Fatalf("expected no total, got %s", view.Estimate.Total)
	}
}

func TestWizardIdenticalInputsDoNotRefetch(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	first := fx.wizard.View()

	if err := fx.wizard.SetLanguages(context.Background(), strPtr("english"), strPtr("french")); err != nil {
		t.Fatalf("SetLanguages returned error: %v", err)
	}
	settle(t, fx.wizard)
	second := fx.wizard.View()
	if _, certCalls, priceCalls := resolver.counts(); certCalls != 1 || priceCalls != 1 {
		t.Fatalf("expected resolved keys to be reused, got certifications=%d pricing=%d", certCalls, priceCalls)
	}
	if first.Certification != second.Certification || first.Estimate.Total != second.Estimate.Total {
		t.Fatalf("expected identical results, got %+v and %+v", first.Estimate, second.Estimate)
	}
}

func TestWizardBackKeepsSelections(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	ctx := context.Background()
	if err := fx.wizard.SetEmail(ctx, "client@example.com"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}
	if err := fx.wizard.Next(ctx); err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	before := fx.wizard.View()
	if err := fx.wizard.Back(ctx); err != nil {
		t.Fatalf("Back returned error: %v", err)
	}
	settle(t, fx.wizard)
	after := fx.wizard.View()
	if after.Stage != string(domain.StageChooseService) {
		t.Fatalf("expected first stage, got %s", after.Stage)
	}
	if after.Estimate != before.Estimate || after.Certification != before.Certification || after.Email != before.Email {
		t.Fatalf("back navigation changed selections")
	}
	if _, certCalls, priceCalls := resolver.counts(); certCalls != 1 || priceCalls != 1 {
		t.Fatalf("back navigation must not recompute")
	}
	if err := fx.wizard.Back(ctx); !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected error going back from first stage, got %v", err)
	}
}

func TestWizardTierChangeInvalidatesCertification(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)

	if err := fx.wizard.SetService(context.Background(), "Certified"); err != nil {
		t.Fatalf("SetService returned error: %v", err)
	}
	settle(t, fx.wizard)
	if _, certCalls, _ := resolver.counts(); certCalls != 2 {
		t.Fatalf("expected certifications to be refetched for the new tier, got %d", certCalls)
	}
	if err := fx.wizard.SetService(context.Background(), "premium"); !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected unknown tier to be rejected, got %v", err)
	}
}

func driveToPayment(t *testing.T, fx wizardFixture) {
	t.Helper()
	chooseEnglishFrench(t, fx)
	ctx := context.Background()
	steps := []func() error{
		func() error { return fx.wizard.SetPages(ctx, "2") },
		func() error { return fx.wizard.SetEmail(ctx, "Client@Example.com") },
		func() error { return fx.wizard.Next(ctx) },
		func() error {
			return fx.wizard.SetOptions(ctx, OptionsUpdate{TranslationTier: strPtr("Professional"), Apostille: boolPtr(true)})
		},
		func() error { return fx.wizard.Next(ctx) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
	}
}

func TestWizardCheckoutSuccessResetsState(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	driveToPayment(t, fx)

	result, err := fx.wizard.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if result.SessionID != "cs_test_1" {
		t.Fatalf("unexpected result %+v", result)
	}
	order := fx.checkout.calls[0]
	if !order.Total.Equal(dec("50")) {
		t.Fatalf("expected menu total 20*2+0+10 = 50, got %s", order.Total)
	}
	if order.Email != "Client@Example.com" || order.FromLanguage != "english" || order.CertificationType != "standard" || order.Pages != 2 {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.Metadata["apostille"] != "true" || order.Metadata["translationTier"] != "Professional" {
		t.Fatalf("unexpected metadata %+v", order.Metadata)
	}

	view := fx.wizard.View()
	if view.Stage != string(domain.StageChooseService) || view.FromLang != "" || view.Email != "" {
		t.Fatalf("expected state reset after checkout, got %+v", view)
	}
	if len(fx.persister.deleted) != 1 || fx.persister.deleted[0] != "sess-1" {
		t.Fatalf("expected persisted state to be deleted, got %v", fx.persister.deleted)
	}
}

func TestWizardCheckoutFailureKeepsState(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	fx.checkout.err = errors.New("processor 500")
	driveToPayment(t, fx)

	_, err := fx.wizard.Checkout(context.Background())
	if !errors.Is(err, ErrCheckoutFailure) {
		t.Fatalf("expected ErrCheckoutFailure, got %v", err)
	}
	view := fx.wizard.View()
	if view.Message != messageCheckoutFailed || view.Stage != string(domain.StagePayment) {
		t.Fatalf("expected single failure message on payment stage, got %+v", view)
	}
	if fx.checkout.callCount() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", fx.checkout.callCount())
	}
}

func TestWizardPersistsSnapshotOnMutation(t *testing.T) {
	resolver := newFakeResolver()
	englishFrench(resolver)
	fx := newWizardFixture(t, resolver)
	chooseEnglishFrench(t, fx)
	if err := fx.wizard.SetPages(context.Background(), "abc"); err != nil {
		t.Fatalf("SetPages returned error: %v", err)
	}

	fx.persister.mu.Lock()
	payload := fx.persister.saved["sess-1"]
	fx.persister.mu.Unlock()
	var snap map[string]any
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("invalid snapshot: %v", err)
	}
	for _, key := range []string{"service", "fromLang", "toLang", "priority", "numPages", "email", "schemaVersion"} {
		if _, ok := snap[key]; !ok {
			t.Fatalf("snapshot missing %q: %v", key, snap)
		}
	}
	if snap["numPages"] != "1" || snap["certification"] != "standard" {
		t.Fatalf("unexpected snapshot %v", snap)
	}
}

func TestWizardDeliveryView(t *testing.T) {
	fx := newWizardFixture(t, newFakeResolver())
	view := fx.wizard.View()
	if view.Delivery.Date != "2025-04-03" || view.Delivery.Display != "Thursday, April 3" || view.Delivery.Label != "NORMAL (72h)" {
		t.Fatalf("unexpected delivery %+v", view.Delivery)
	}
	if view.Order.TranslationTier != "Standard" || view.Order.CertificationType != string(domain.MenuCertificationNAATI) {
		t.Fatalf("unexpected menu defaults %+v", view.Order)
	}
	if view.Order.Total != "15.00" {
		t.Fatalf("expected one standard page, got %s", view.Order.Total)
	}
}
