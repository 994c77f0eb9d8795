package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

const defaultResolveTimeout = 8 * time.Second

// WizardDeps are shared by every wizard in a registry.
type WizardDeps struct {
	Resolver       CatalogResolver
	Engine         *pricing.Engine
	Checkout       checkoutCreator
	Persister      statePersister
	Metrics        Recorder
	Logger         func(ctx context.Context, event string, fields map[string]any)
	Clock          func() time.Time
	ResolveTimeout time.Duration
}

func (d WizardDeps) withDefaults() (WizardDeps, error) {
	if d.Resolver == nil {
		return d, errors.New("wizard: catalog resolver is required")
	}
	if d.Engine == nil {
		d.Engine = pricing.NewEngine(pricing.DefaultRateCard())
	}
	if d.Persister == nil {
		d.Persister = discardPersister{}
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = noopLogger
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.ResolveTimeout <= 0 {
		d.ResolveTimeout = defaultResolveTimeout
	}
	return d, nil
}

type discardPersister struct{}

func (discardPersister) Enqueue(string, []byte) {}
func (discardPersister) EnqueueDelete(string)   {}

type languageStatus int

const (
	languagesIdle languageStatus = iota
	languagesLoading
	languagesLoaded
	languagesFailed
)

// resolveScope marks which resolutions a user action may re-attempt after an earlier failure.
type resolveScope uint8

const (
	scopeNone           resolveScope = 0
	scopeCertifications resolveScope = 1 << iota
	scopePricing
)

type userMessage struct {
	kind MessageKind
	text string
}

// keyedMessage is only shown while the resolution key it was produced for is current.
type keyedMessage struct {
	key string
	userMessage
}

// OptionsUpdate carries the menu fields to change; nil fields are left as they are.
type OptionsUpdate struct {
	TranslationTier *string
	Certification   *string
	Apostille       *bool
	PhysicalCopy    *bool
}

// Wizard drives one customer's quote through ChooseService, SelectOptions and Payment. All state is
// guarded by mu; catalog calls run outside the lock and only apply results whose generation is still
// current.
type Wizard struct {
	id   string
	deps WizardDeps

	mu         sync.Mutex
	state      QuoteState
	lastActive time.Time

	languages  []string
	langStatus languageStatus
	langReady  bool
	langGen    uint64
	langCancel context.CancelFunc
	langMsg    userMessage

	certGen       uint64
	certInflight  string
	certCancel    context.CancelFunc
	certFailedKey string
	certMsg       keyedMessage

	priceGen       uint64
	priceInflight  string
	priceCancel    context.CancelFunc
	priceFailedKey string
	priceMsg       keyedMessage

	actionMsg       userMessage
	checkoutPending bool

	pending int
	idle    chan struct{}
}

// NewWizard constructs a wizard for sessionID over state. Nothing is resolved until the language list
// has loaded; a rehydrated pair is checked against that list first.
func NewWizard(sessionID string, state QuoteState, deps WizardDeps) (*Wizard, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Wizard{id: sessionID, deps: deps, state: state, lastActive: deps.Clock()}, nil
}

// ID returns the session id.
func (w *Wizard) ID() string { return w.id }

// LastActive reports when the wizard last handled a call.
func (w *Wizard) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Resume starts loading the language list for a rehydrated state. Certifications and pricing follow
// once the restored pair has been checked against it.
func (w *Wizard) Resume(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.langStatus == languagesIdle {
		w.startLanguagesLocked(ctx)
	}
}

// LoadLanguages fetches the language list once. Later calls are no-ops; use ReloadLanguages to retry.
func (w *Wizard) LoadLanguages(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if w.langStatus != languagesIdle {
		return
	}
	w.startLanguagesLocked(ctx)
}

// ReloadLanguages refetches the language list on user request, bypassing any shared cache.
func (w *Wizard) ReloadLanguages(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if inv, ok := w.deps.Resolver.(languageInvalidator); ok {
		inv.InvalidateLanguages()
	}
	w.startLanguagesLocked(ctx)
}

// SetService changes the service tier.
func (w *Wizard) SetService(ctx context.Context, raw string) error {
	return w.mutate(ctx, scopeCertifications|scopePricing, func(st *QuoteState) error {
		tier, ok := domain.ParseServiceTier(raw)
		if !ok {
			return invalid("service", "Please choose a valid service")
		}
		st.SetTier(tier)
		return nil
	})
}

// SetLanguages changes either side of the pair. Nil leaves a side unchanged; an empty string clears it.
// Both sides must come from the loaded language list and differ from each other.
func (w *Wizard) SetLanguages(ctx context.Context, from, to *string) error {
	return w.mutate(ctx, scopeCertifications|scopePricing, func(st *QuoteState) error {
		if w.langStatus != languagesLoaded {
			return fmt.Errorf("%w: language list is not loaded", ErrCatalogUnavailable)
		}
		pair := st.Pair()
		if from != nil {
			canonical, ok := w.knownLanguageLocked(*from)
			if !ok {
				return invalid("fromLang", "Please choose a source language from the list")
			}
			pair.From = canonical
		}
		if to != nil {
			canonical, ok := w.knownLanguageLocked(*to)
			if !ok {
				return invalid("toLang", "Please choose a target language from the list")
			}
			pair.To = canonical
		}
		if pair.Complete() && !pair.Valid() {
			return invalid("languages", "Source and target languages must be different")
		}
		st.SetPair(pair)
		return nil
	})
}

// SetPriority changes the turnaround priority.
func (w *Wizard) SetPriority(ctx context.Context, raw string) error {
	return w.mutate(ctx, scopePricing, func(st *QuoteState) error {
		priority, ok := domain.ParsePriority(raw)
		if !ok {
			return invalid("priority", "Please choose normal or express priority")
		}
		st.SetPriority(priority)
		return nil
	})
}

// SetCertification selects one of the resolved certification options.
func (w *Wizard) SetCertification(ctx context.Context, certification string) error {
	return w.mutate(ctx, scopePricing, func(st *QuoteState) error {
		if msg, ok := w.activeCertMessageLocked(); ok && msg.kind == MessageNoCertifications {
			return ErrNoCertificationsForPair
		}
		_, err := st.SetCertification(certification)
		return err
	})
}

// SetPages stores the page count. Zero, negative and non-numeric input becomes 1.
func (w *Wizard) SetPages(ctx context.Context, raw string) error {
	return w.mutate(ctx, scopeNone, func(st *QuoteState) error {
		st.SetPages(pricing.NormalizePages(raw))
		return nil
	})
}

// SetEmail stores the email address. Its shape is checked when leaving the first stage.
func (w *Wizard) SetEmail(ctx context.Context, email string) error {
	return w.mutate(ctx, scopeNone, func(st *QuoteState) error {
		st.SetEmail(email)
		return nil
	})
}

// SetDocuments replaces the attached file list.
func (w *Wizard) SetDocuments(ctx context.Context, files []string) error {
	return w.mutate(ctx, scopeNone, func(st *QuoteState) error {
		st.SetDocuments(files)
		return nil
	})
}

// SetOptions updates the menu-priced selections.
func (w *Wizard) SetOptions(ctx context.Context, update OptionsUpdate) error {
	card := w.deps.Engine.RateCard()
	return w.mutate(ctx, scopeNone, func(st *QuoteState) error {
		if update.TranslationTier != nil {
			tier := domain.TranslationTier(strings.TrimSpace(*update.TranslationTier))
			if _, ok := card.TranslationRate(tier); !ok {
				return invalid("translationTier", "Please choose a valid translation tier")
			}
			st.SetTranslationTier(tier)
		}
		if update.Certification != nil {
			cert := domain.MenuCertification(strings.TrimSpace(*update.Certification))
			if _, ok := card.CertificationFee(cert); !ok {
				return invalid("certificationType", "Please choose a valid certification type")
			}
			st.SetMenuCertification(cert)
		}
		services := st.Services()
		if update.Apostille != nil {
			services.Apostille = *update.Apostille
		}
		if update.PhysicalCopy != nil {
			services.PhysicalCopy = *update.PhysicalCopy
		}
		st.SetServices(services)
		return nil
	})
}

// SetAddress replaces the delivery address.
func (w *Wizard) SetAddress(ctx context.Context, addr domain.DeliveryAddress) error {
	return w.mutate(ctx, scopeNone, func(st *QuoteState) error {
		st.SetAddress(addr)
		return nil
	})
}

// Next advances one stage if the current stage's gate passes. A failed gate changes nothing but the
// message.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()

	stage := w.state.Stage()
	if stage == domain.StagePayment {
		return w.rejectLocked(invalid("stage", "Use checkout to complete the order"))
	}
	if ve := w.gateLocked(stage); ve != nil {
		return w.rejectLocked(ve)
	}
	next := domain.StageSelectOptions
	if stage == domain.StageSelectOptions {
		next = domain.StagePayment
	}
	w.state.SetStage(next)
	w.actionMsg = userMessage{}
	w.persistLocked(ctx)
	w.deps.Logger(ctx, "wizard_advanced", map[string]any{"sessionId": w.id, "stage": string(next)})
	return nil
}

// Back returns to the previous stage with selections unchanged and nothing recomputed.
func (w *Wizard) Back(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()

	prev := domain.StageChooseService
	switch w.state.Stage() {
	case domain.StageChooseService:
		return w.rejectLocked(invalid("stage", "Already at the first step"))
	case domain.StagePayment:
		prev = domain.StageSelectOptions
	}
	w.state.SetStage(prev)
	w.actionMsg = userMessage{}
	w.persistLocked(ctx)
	return nil
}

// Reset discards the quote and its persisted snapshot. The loaded language list is kept.
func (w *Wizard) Reset(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	w.resetLocked()
	w.deps.Persister.EnqueueDelete(w.id)
	w.deps.Logger(ctx, "wizard_reset", map[string]any{"sessionId": w.id})
}

// Checkout hands the finalised quote to the payment processor. The state is discarded only when a
// session reference comes back. A failure leaves the state intact and sets a single message.
func (w *Wizard) Checkout(ctx context.Context) (CheckoutResult, error) {
	w.mu.Lock()
	w.touchLocked()
	if w.deps.Checkout == nil {
		w.mu.Unlock()
		return CheckoutResult{}, fmt.Errorf("%w: checkout is not configured", ErrCheckoutFailure)
	}
	if w.state.Stage() != domain.StagePayment {
		err := w.rejectLocked(invalid("stage", "Please complete the previous steps before checkout"))
		w.mu.Unlock()
		return CheckoutResult{}, err
	}
	if w.checkoutPending {
		err := w.rejectLocked(invalid("checkout", "Checkout is already in progress"))
		w.mu.Unlock()
		return CheckoutResult{}, err
	}
	if ve := w.gateLocked(domain.StagePayment); ve != nil {
		err := w.rejectLocked(ve)
		w.mu.Unlock()
		return CheckoutResult{}, err
	}
	breakdown, err := w.deps.Engine.MenuPriced(w.state.MenuSelection(), w.state.Pages())
	if err != nil {
		verr := w.rejectLocked(invalid("options", "The selected options cannot be priced"))
		w.mu.Unlock()
		return CheckoutResult{}, errors.Join(verr, err)
	}
	order := w.orderLocked(breakdown)
	w.checkoutPending = true
	w.mu.Unlock()

	result, err := w.deps.Checkout.CreateSession(ctx, order)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkoutPending = false
	if err != nil {
		w.actionMsg = userMessage{kind: MessageCheckoutFailure, text: messageCheckoutFailed}
		if !errors.Is(err, ErrCheckoutFailure) {
			err = fmt.Errorf("%w: %w", ErrCheckoutFailure, err)
		}
		return CheckoutResult{}, err
	}
	w.resetLocked()
	w.deps.Persister.EnqueueDelete(w.id)
	return result, nil
}

// Settle waits until no catalog call is in flight, or ctx ends.
func (w *Wizard) Settle(ctx context.Context) error {
	for {
		w.mu.Lock()
		if w.pending == 0 {
			w.mu.Unlock()
			return nil
		}
		idle := w.idle
		w.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels every in-flight call. Late results are discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLanguagesLocked()
	w.cancelCertificationsLocked()
	w.cancelPricingLocked()
}

func (w *Wizard) mutate(ctx context.Context, scope resolveScope, fn func(st *QuoteState) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if err := fn(&w.state); err != nil {
		return w.rejectLocked(err)
	}
	w.actionMsg = userMessage{}
	w.persistLocked(ctx)
	w.scheduleLocked(ctx, scope)
	return nil
}

func (w *Wizard) rejectLocked(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		w.actionMsg = userMessage{kind: MessageValidation, text: ve.Message}
	case errors.Is(err, ErrCatalogUnavailable):
		w.actionMsg = userMessage{kind: MessageCatalogUnavailable, text: "Languages are not available yet. Please reload the language list."}
	case errors.Is(err, ErrNoCertificationsForPair):
		w.actionMsg = userMessage{kind: MessageNoCertifications, text: messageNoCertifications}
	}
	return err
}

// gateLocked evaluates the gates for leaving stage, preferring the catalog's own pricing message when
// the price is what blocks.
func (w *Wizard) gateLocked(stage domain.Stage) *ValidationError {
	est := w.state.Estimate(w.deps.Engine)
	ve := gateFor(&w.state, est.Total, stage)
	if ve == nil || ve.Field != "price" {
		return ve
	}
	if w.priceInflight != "" {
		return invalid("price", "The price is still being calculated")
	}
	if msg, ok := w.activePriceMessageLocked(); ok {
		return invalid("price", msg.text)
	}
	return ve
}

func (w *Wizard) knownLanguageLocked(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	for _, lang := range w.languages {
		if strings.EqualFold(lang, raw) {
			return lang, true
		}
	}
	return "", false
}

func (w *Wizard) touchLocked() {
	w.lastActive = w.deps.Clock()
}

func (w *Wizard) persistLocked(ctx context.Context) {
	payload, err := json.Marshal(w.state.Snapshot())
	if err != nil {
		w.deps.Logger(ctx, "persist_encode_failed", map[string]any{"sessionId": w.id, "error": err.Error()})
		return
	}
	w.deps.Persister.Enqueue(w.id, payload)
}

func (w *Wizard) resetLocked() {
	w.cancelCertificationsLocked()
	w.cancelPricingLocked()
	w.state = NewQuoteState(w.deps.Engine.RateCard())
	w.certFailedKey, w.priceFailedKey = "", ""
	w.certMsg, w.priceMsg = keyedMessage{}, keyedMessage{}
	w.actionMsg = userMessage{}
}

func (w *Wizard) orderLocked(breakdown pricing.MenuBreakdown) CheckoutOrder {
	st := &w.state
	services := st.Services()
	return CheckoutOrder{
		SessionID:         w.id,
		Email:             st.Email(),
		FromLanguage:      st.Pair().From,
		ToLanguage:        st.Pair().To,
		CertificationType: st.Certification(),
		Priority:          string(st.Priority()),
		Pages:             st.Pages(),
		Total:             breakdown.Total,
		Metadata: map[string]string{
			"serviceTier":       string(st.Tier()),
			"translationRoute":  string(st.Route()),
			"translationTier":   string(st.TranslationTier()),
			"menuCertification": string(st.MenuCertification()),
			"apostille":         strconv.FormatBool(services.Apostille),
			"physicalCopy":      strconv.FormatBool(services.PhysicalCopy),
			"documents":         strconv.Itoa(len(st.Documents())),
			"deliveryCountry":   st.Address().Country,
		},
	}
}

func (w *Wizard) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), w.deps.ResolveTimeout)
}

func (w *Wizard) beginCallLocked() {
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
}

func (w *Wizard) endCallLocked() {
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
}

// scheduleLocked starts whichever resolutions the current keys need. A key that failed before is only
// retried when scope says the user touched its inputs. Nothing starts before the first language list.
func (w *Wizard) scheduleLocked(ctx context.Context, scope resolveScope) {
	if !w.langReady {
		return
	}
	certKey := w.state.CertificationKey()
	switch {
	case !w.state.NeedsCertifications():
		w.cancelCertificationsLocked()
	case certKey == w.certInflight:
	case certKey == w.certFailedKey && scope&scopeCertifications == 0:
		w.cancelCertificationsLocked()
	default:
		w.startCertificationsLocked(ctx, certKey)
	}

	priceKey := w.state.PricingKey()
	switch {
	case !w.state.NeedsPricing():
		w.cancelPricingLocked()
	case priceKey == w.priceInflight:
	case priceKey == w.priceFailedKey && scope&scopePricing == 0:
		w.cancelPricingLocked()
	default:
		w.startPricingLocked(ctx, priceKey)
	}
}

func (w *Wizard) startLanguagesLocked(ctx context.Context) {
	w.cancelLanguagesLocked()
	callCtx, cancel := w.callContext(ctx)
	gen := w.langGen
	w.langCancel = cancel
	w.langStatus = languagesLoading
	w.beginCallLocked()
	go w.resolveLanguages(callCtx, cancel, gen)
}

func (w *Wizard) resolveLanguages(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()
	languages, err := w.deps.Resolver.ListLanguages(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.endCallLocked()
	if gen != w.langGen {
		w.deps.Metrics.StaleDiscarded("languages")
		return
	}
	w.langCancel = nil
	if err != nil {
		w.langStatus = languagesFailed
		w.langMsg = userMessage{kind: MessageCatalogUnavailable, text: messageLanguagesFailed}
		w.deps.Logger(ctx, "languages_failed", map[string]any{"sessionId": w.id, "error": err.Error()})
		return
	}
	w.languages = languages
	w.langStatus = languagesLoaded
	w.langReady = true
	w.langMsg = userMessage{}
	w.revalidatePairLocked(ctx)
	w.scheduleLocked(ctx, scopeCertifications|scopePricing)
}

// revalidatePairLocked keeps the selected pair within the current language list. Sides the list no
// longer contains are cleared, as is a target equal to the source.
func (w *Wizard) revalidatePairLocked(ctx context.Context) {
	current := w.state.Pair()
	pair := current
	if canonical, ok := w.knownLanguageLocked(pair.From); ok {
		pair.From = canonical
	} else {
		pair.From = ""
	}
	if canonical, ok := w.knownLanguageLocked(pair.To); ok {
		pair.To = canonical
	} else {
		pair.To = ""
	}
	if pair.Complete() && !pair.Valid() {
		pair.To = ""
	}
	preferred := w.state.Certification()
	if preferred == "" {
		preferred = w.state.preferredCertification
	}
	if !w.state.SetPair(pair) {
		return
	}
	if strings.EqualFold(pair.From, current.From) && strings.EqualFold(pair.To, current.To) {
		w.state.preferredCertification = preferred
	}
	w.deps.Logger(ctx, "language_pair_revalidated", map[string]any{
		"sessionId": w.id,
		"from":      current.From,
		"to":        current.To,
		"keptFrom":  pair.From,
		"keptTo":    pair.To,
	})
	w.persistLocked(ctx)
}

func (w *Wizard) cancelLanguagesLocked() {
	w.langGen++
	if w.langCancel != nil {
		w.langCancel()
		w.langCancel = nil
	}
	if w.langStatus == languagesLoading {
		w.langStatus = languagesIdle
	}
}

func (w *Wizard) startCertificationsLocked(ctx context.Context, key string) {
	w.cancelCertificationsLocked()
	callCtx, cancel := w.callContext(ctx)
	gen := w.certGen
	w.certInflight = key
	w.certCancel = cancel
	tier, pair := w.state.Tier(), w.state.Pair()
	w.beginCallLocked()
	go w.resolveCertifications(callCtx, cancel, gen, key, tier, pair)
}

func (w *Wizard) resolveCertifications(ctx context.Context, cancel context.CancelFunc, gen uint64, key string, tier domain.ServiceTier, pair domain.LanguagePair) {
	defer cancel()
	result, err := w.deps.Resolver.ListCertifications(ctx, tier, pair)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.endCallLocked()
	if gen != w.certGen {
		w.deps.Metrics.StaleDiscarded("certifications")
		return
	}
	w.certInflight = ""
	w.certCancel = nil
	if err != nil {
		w.certFailedKey = key
		w.certMsg = keyedMessage{key: key, userMessage: userMessage{
			kind: MessageCatalogUnavailable,
			text: messageCertificationsFailed,
		}}
		w.deps.Logger(ctx, "certifications_failed", map[string]any{
			"sessionId": w.id,
			"tier":      string(tier),
			"from":      pair.From,
			"to":        pair.To,
			"error":     err.Error(),
		})
		return
	}
	if !w.state.ApplyCertifications(key, result) {
		w.deps.Metrics.StaleDiscarded("certifications")
		return
	}
	w.certFailedKey = ""
	w.certMsg = keyedMessage{}
	if len(result.Options) == 0 {
		w.certMsg = keyedMessage{key: key, userMessage: userMessage{kind: MessageNoCertifications, text: messageNoCertifications}}
		w.deps.Logger(ctx, "certifications_empty", map[string]any{
			"sessionId": w.id,
			"from":      pair.From,
			"to":        pair.To,
			"error":     ErrNoCertificationsForPair.Error(),
		})
	}
	w.persistLocked(ctx)
	w.scheduleLocked(ctx, scopePricing)
}

func (w *Wizard) cancelCertificationsLocked() {
	if w.certInflight == "" {
		return
	}
	w.certGen++
	w.certInflight = ""
	if w.certCancel != nil {
		w.certCancel()
		w.certCancel = nil
	}
}

func (w *Wizard) startPricingLocked(ctx context.Context, key string) {
	w.cancelPricingLocked()
	callCtx, cancel := w.callContext(ctx)
	gen := w.priceGen
	w.priceInflight = key
	w.priceCancel = cancel
	pair, priority, cert := w.state.Pair(), w.state.Priority(), w.state.Certification()
	w.beginCallLocked()
	go w.resolvePricing(callCtx, cancel, gen, key, pair, priority, cert)
}

func (w *Wizard) resolvePricing(ctx context.Context, cancel context.CancelFunc, gen uint64, key string, pair domain.LanguagePair, priority domain.Priority, cert string) {
	defer cancel()
	quote, err := w.deps.Resolver.GetPricing(ctx, pair, priority, cert)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.endCallLocked()
	if gen != w.priceGen {
		w.deps.Metrics.StaleDiscarded("pricing")
		return
	}
	w.priceInflight = ""
	w.priceCancel = nil

	fields := map[string]any{
		"sessionId":     w.id,
		"from":          pair.From,
		"to":            pair.To,
		"priority":      string(priority),
		"certification": cert,
	}
	switch {
	case errors.Is(err, catalog.ErrPricingUnavailable):
		var declined *catalog.PricingUnavailableError
		reason := ""
		if errors.As(err, &declined) {
			reason = declined.Reason
		}
		if !w.state.MarkPricingDeclined(key) {
			w.deps.Metrics.StaleDiscarded("pricing")
			return
		}
		w.priceFailedKey = ""
		msg := (&PricingUnavailableError{Reason: reason}).Message()
		w.priceMsg = keyedMessage{key: key, userMessage: userMessage{kind: MessagePricingUnavailable, text: msg}}
		fields["reason"] = reason
		w.deps.Logger(ctx, "pricing_declined", fields)
	case err != nil:
		w.priceFailedKey = key
		w.priceMsg = keyedMessage{key: key, userMessage: userMessage{
			kind: MessageCatalogUnavailable,
			text: messagePricingFailed,
		}}
		fields["error"] = err.Error()
		w.deps.Logger(ctx, "pricing_failed", fields)
	default:
		if !w.state.ApplyPricing(key, quote) {
			w.deps.Metrics.StaleDiscarded("pricing")
			return
		}
		w.priceFailedKey = ""
		w.priceMsg = keyedMessage{}
	}
}

func (w *Wizard) cancelPricingLocked() {
	if w.priceInflight == "" {
		return
	}
	w.priceGen++
	w.priceInflight = ""
	if w.priceCancel != nil {
		w.priceCancel()
		w.priceCancel = nil
	}
}

func (w *Wizard) activeCertMessageLocked() (userMessage, bool) {
	if w.certMsg.text == "" || w.certMsg.key != w.state.CertificationKey() {
		return userMessage{}, false
	}
	return w.certMsg.userMessage, true
}

func (w *Wizard) activePriceMessageLocked() (userMessage, bool) {
	if w.priceMsg.text == "" || w.priceMsg.key != w.state.PricingKey() {
		return userMessage{}, false
	}
	return w.priceMsg.userMessage, true
}

// currentMessageLocked picks the single message shown to the user: the latest action outcome first,
// then resolution problems for the current keys.
func (w *Wizard) currentMessageLocked() userMessage {
	if w.actionMsg.text != "" {
		return w.actionMsg
	}
	if msg, ok := w.activeCertMessageLocked(); ok {
		return msg
	}
	if msg, ok := w.activePriceMessageLocked(); ok {
		return msg
	}
	return w.langMsg
}
