package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/platform/httpx"
	"github.com/quotedesk/checkout/internal/platform/requestctx"
	"github.com/quotedesk/checkout/internal/services"
)

const defaultSettleTimeout = 10 * time.Second

type wizardProvider interface {
	Get(ctx context.Context, sessionID string) (*services.Wizard, error)
}

// WizardHandlers exposes the quote wizard over JSON. Every response carries the current view.
type WizardHandlers struct {
	wizards       wizardProvider
	sanitizer     textSanitizer
	settleTimeout time.Duration
}

// WizardOption customises WizardHandlers.
type WizardOption func(*WizardHandlers)

// WithSettleTimeout bounds how long a response waits for in-flight catalog calls before rendering.
func WithSettleTimeout(d time.Duration) WizardOption {
	return func(h *WizardHandlers) {
		if d > 0 {
			h.settleTimeout = d
		}
	}
}

// NewWizardHandlers constructs wizard handlers over the session registry.
func NewWizardHandlers(wizards wizardProvider, opts ...WizardOption) *WizardHandlers {
	h := &WizardHandlers{
		wizards:       wizards,
		sanitizer:     newTextSanitizer(),
		settleTimeout: defaultSettleTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers wizard endpoints against the provided router.
func (h *WizardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/wizard", func(rt chi.Router) {
		rt.Get("/", h.getWizard)
		rt.Post("/languages:reload", h.reloadLanguages)
		rt.Put("/service", h.setService)
		rt.Put("/languages", h.setLanguages)
		rt.Put("/priority", h.setPriority)
		rt.Put("/certification", h.setCertification)
		rt.Put("/pages", h.setPages)
		rt.Put("/email", h.setEmail)
		rt.Put("/documents", h.setDocuments)
		rt.Put("/options", h.setOptions)
		rt.Put("/address", h.setAddress)
		rt.Post("/next", h.next)
		rt.Post("/back", h.back)
		rt.Post("/reset", h.reset)
		rt.Post("/checkout", h.checkout)
	})
}

type serviceRequest struct {
	Tier string `json:"tier"`
}

type languagesRequest struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

type priorityRequest struct {
	Priority string `json:"priority"`
}

type certificationRequest struct {
	Certification string `json:"certification"`
}

type pagesRequest struct {
	Pages json.RawMessage `json:"pages"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type documentsRequest struct {
	Files []string `json:"files"`
}

type optionsRequest struct {
	TranslationTier *string `json:"translationTier"`
	Certification   *string `json:"certification"`
	Apostille       *bool   `json:"apostille"`
	PhysicalCopy    *bool   `json:"physicalCopy"`
}

type checkoutResponse struct {
	SessionID   string `json:"sessionId"`
	Provider    string `json:"provider,omitempty"`
	RedirectURL string `json:"redirectUrl"`
}

func (h *WizardHandlers) getWizard(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		wiz.LoadLanguages(ctx)
		return nil
	})
}

func (h *WizardHandlers) reloadLanguages(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		wiz.ReloadLanguages(ctx)
		return nil
	})
}

func (h *WizardHandlers) setService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetService(ctx, req.Tier)
	})
}

func (h *WizardHandlers) setLanguages(w http.ResponseWriter, r *http.Request) {
	var req languagesRequest
	if !h.decode(w, r, &req) {
		return
	}
	from, to := h.sanitizer.CleanPtr(req.From), h.sanitizer.CleanPtr(req.To)
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetLanguages(ctx, from, to)
	})
}

func (h *WizardHandlers) setPriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetPriority(ctx, req.Priority)
	})
}

func (h *WizardHandlers) setCertification(w http.ResponseWriter, r *http.Request) {
	var req certificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	cert := h.sanitizer.Clean(req.Certification)
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetCertification(ctx, cert)
	})
}

func (h *WizardHandlers) setPages(w http.ResponseWriter, r *http.Request) {
	var req pagesRequest
	if !h.decode(w, r, &req) {
		return
	}
	raw := pagesText(req.Pages)
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetPages(ctx, raw)
	})
}

// pagesText accepts either a JSON string or a JSON number; anything else becomes "" and is
// normalised to one page by the wizard.
func pagesText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

func (h *WizardHandlers) setEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	email := h.sanitizer.Clean(req.Email)
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetEmail(ctx, email)
	})
}

func (h *WizardHandlers) setDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	names := make([]string, 0, len(req.Files))
	for _, name := range req.Files {
		names = append(names, h.sanitizer.Clean(name))
	}
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetDocuments(ctx, names)
	})
}

func (h *WizardHandlers) setOptions(w http.ResponseWriter, r *http.Request) {
	var req optionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	update := services.OptionsUpdate{
		TranslationTier: h.sanitizer.CleanPtr(req.TranslationTier),
		Certification:   h.sanitizer.CleanPtr(req.Certification),
		Apostille:       req.Apostille,
		PhysicalCopy:    req.PhysicalCopy,
	}
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetOptions(ctx, update)
	})
}

func (h *WizardHandlers) setAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveryAddress
	if !h.decode(w, r, &req) {
		return
	}
	addr := domain.DeliveryAddress{
		Street:    h.sanitizer.Clean(req.Street),
		Apartment: h.sanitizer.Clean(req.Apartment),
		City:      h.sanitizer.Clean(req.City),
		State:     h.sanitizer.Clean(req.State),
		Postcode:  h.sanitizer.Clean(req.Postcode),
		Country:   h.sanitizer.Clean(req.Country),
	}
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.SetAddress(ctx, addr)
	})
}

func (h *WizardHandlers) next(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.Next(ctx)
	})
}

func (h *WizardHandlers) back(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		return wiz.Back(ctx)
	})
}

func (h *WizardHandlers) reset(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(ctx context.Context, wiz *services.Wizard) error {
		wiz.Reset(ctx)
		return nil
	})
}

func (h *WizardHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	result, err := wiz.Checkout(ctx)
	if err != nil {
		h.writeFailure(ctx, w, wiz, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{
		SessionID:   result.SessionID,
		Provider:    result.Provider,
		RedirectURL: result.RedirectURL,
	})
}

func (h *WizardHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	return true
}

func (h *WizardHandlers) lookup(w http.ResponseWriter, r *http.Request) (*services.Wizard, bool) {
	ctx := r.Context()
	if h.wizards == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "quote wizard is not configured", http.StatusServiceUnavailable))
		return nil, false
	}
	sessionID := requestctx.SessionID(ctx)
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a quote session is required", http.StatusUnauthorized))
		return nil, false
	}
	wiz, err := h.wizards.Get(ctx, sessionID)
	if err != nil {
		requestctx.Logger(ctx).Error("wizard lookup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "unable to open quote session", http.StatusInternalServerError))
		return nil, false
	}
	return wiz, true
}

func (h *WizardHandlers) withWizard(w http.ResponseWriter, r *http.Request, fn func(context.Context, *services.Wizard) error) {
	ctx := r.Context()
	wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := fn(ctx, wiz); err != nil {
		h.writeFailure(ctx, w, wiz, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.settledView(ctx, wiz))
}

// settledView waits briefly for in-flight catalog calls so the response reflects their results.
// On timeout the view is returned with its loading flags set.
func (h *WizardHandlers) settledView(ctx context.Context, wiz *services.Wizard) services.View {
	settleCtx, cancel := context.WithTimeout(ctx, h.settleTimeout)
	defer cancel()
	_ = wiz.Settle(settleCtx)
	return wiz.View()
}

func (h *WizardHandlers) writeFailure(ctx context.Context, w http.ResponseWriter, wiz *services.Wizard, err error) {
	view := wiz.View()
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		details := map[string]any{"view": view}
		if ve.Field != "" {
			details["field"] = ve.Field
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", ve.Message, http.StatusUnprocessableEntity).WithDetails(details))
	case errors.Is(err, services.ErrCatalogUnavailable):
		message := view.Message
		if message == "" {
			message = "The language catalog is not available yet"
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", message, http.StatusServiceUnavailable).WithDetails(map[string]any{"view": view}))
	case errors.Is(err, services.ErrNoCertificationsForPair):
		httpx.WriteError(ctx, w, httpx.NewError("no_certifications", view.Message, http.StatusUnprocessableEntity).WithDetails(map[string]any{"view": view}))
	case errors.Is(err, services.ErrCheckoutFailure):
		requestctx.Logger(ctx).Warn("checkout failed", zap.Error(err))
		message := view.Message
		if message == "" {
			message = "Something went wrong while initiating payment."
		}
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", message, http.StatusBadGateway).WithDetails(map[string]any{"view": view}))
	default:
		requestctx.Logger(ctx).Error("wizard operation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
