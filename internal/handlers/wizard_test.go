package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/platform/requestctx"
	"github.com/quotedesk/checkout/internal/pricing"
	"github.com/quotedesk/checkout/internal/repositories/memory"
	"github.com/quotedesk/checkout/internal/services"
)

type stubCheckout struct {
	mu     sync.Mutex
	orders []services.CheckoutOrder
	err    error
}

func (s *stubCheckout) CreateSession(_ context.Context, order services.CheckoutOrder) (services.CheckoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	if s.err != nil {
		return services.CheckoutResult{}, s.err
	}
	return services.CheckoutResult{SessionID: "cs_test_1", Provider: "stripe", RedirectURL: "https://pay.example/cs_test_1"}, nil
}

type wizardHarness struct {
	router   chi.Router
	checkout *stubCheckout
	store    *memory.Store
}

func fixedSession(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), id)))
		})
	}
}

func newWizardHarness(t *testing.T) *wizardHarness {
	t.Helper()
	store := memory.NewStore()
	checkout := &stubCheckout{}
	registry, err := services.NewWizardRegistry(services.WizardRegistryDeps{
		Wizard: services.WizardDeps{
			Resolver: catalog.NewStatic(),
			Engine:   pricing.NewEngine(pricing.DefaultRateCard()),
			Checkout: checkout,
			Clock:    func() time.Time { return time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC) },
		},
		Store: store,
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	handlers := NewWizardHandlers(registry, WithSettleTimeout(2*time.Second))
	router := NewRouter(
		WithAPIMiddlewares(fixedSession("01HZX5J8Q7F3N2M4K6P8R0T2V4")),
		WithWizardRoutes(handlers.Routes),
	)
	return &wizardHarness{router: router, checkout: checkout, store: store}
}

func (h *wizardHarness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

func TestWizardHandlersHappyPathToCheckout(t *testing.T) {
	h := newWizardHarness(t)

	rec, view := h.do(t, http.MethodGet, "/api/v1/wizard/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, view["languagesReady"])
	require.Equal(t, "choose_service", view["stage"])

	rec, view = h.do(t, http.MethodPut, "/api/v1/wizard/languages", `{"from":"English","to":"french"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "english", view["fromLang"])
	require.Equal(t, "standard", view["certification"])
	estimate := view["estimate"].(map[string]any)
	require.Equal(t, "10.00", estimate["total"])

	rec, view = h.do(t, http.MethodPut, "/api/v1/wizard/pages", `{"pages":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(3), view["numPages"])
	require.Equal(t, "30.00", view["estimate"].(map[string]any)["total"])

	rec, _ = h.do(t, http.MethodPut, "/api/v1/wizard/email", `{"email":"client@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, view = h.do(t, http.MethodPost, "/api/v1/wizard/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "select_options", view["stage"])

	rec, view = h.do(t, http.MethodPost, "/api/v1/wizard/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "payment", view["stage"])

	rec, resp := h.do(t, http.MethodPost, "/api/v1/wizard/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "https://pay.example/cs_test_1", resp["redirectUrl"])
	require.Len(t, h.checkout.orders, 1)
	require.Equal(t, "client@example.com", h.checkout.orders[0].Email)
	require.Equal(t, "45", h.checkout.orders[0].Total.String())

	_, view = h.do(t, http.MethodGet, "/api/v1/wizard/", "")
	require.Equal(t, "choose_service", view["stage"])
	require.Equal(t, "", view["email"])
}

func TestWizardHandlersGateFailureReturnsViewAndField(t *testing.T) {
	h := newWizardHarness(t)
	h.do(t, http.MethodGet, "/api/v1/wizard/", "")
	h.do(t, http.MethodPut, "/api/v1/wizard/languages", `{"from":"english","to":"french"}`)

	rec, payload := h.do(t, http.MethodPost, "/api/v1/wizard/next", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "validation_failed", payload["error"])
	require.Equal(t, "email", payload["field"])
	view, ok := payload["view"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "choose_service", view["stage"])
	require.Equal(t, payload["message"], view["message"])
}

func TestWizardHandlersRejectsSameLanguagePair(t *testing.T) {
	h := newWizardHarness(t)
	h.do(t, http.MethodGet, "/api/v1/wizard/", "")

	rec, payload := h.do(t, http.MethodPut, "/api/v1/wizard/languages", `{"from":"french","to":"French"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "languages", payload["field"])
}

func TestWizardHandlersCheckoutFailureKeepsState(t *testing.T) {
	h := newWizardHarness(t)
	h.checkout.err = errors.New("provider down")
	h.do(t, http.MethodGet, "/api/v1/wizard/", "")
	h.do(t, http.MethodPut, "/api/v1/wizard/languages", `{"from":"english","to":"french"}`)
	h.do(t, http.MethodPut, "/api/v1/wizard/email", `{"email":"client@example.com"}`)
	h.do(t, http.MethodPost, "/api/v1/wizard/next", "")
	h.do(t, http.MethodPost, "/api/v1/wizard/next", "")

	rec, payload := h.do(t, http.MethodPost, "/api/v1/wizard/checkout", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "Something went wrong while initiating payment.", payload["message"])
	view := payload["view"].(map[string]any)
	require.Equal(t, "payment", view["stage"])
	require.Equal(t, "client@example.com", view["email"])
}

func TestWizardHandlersSanitizesFreeText(t *testing.T) {
	h := newWizardHarness(t)
	h.do(t, http.MethodGet, "/api/v1/wizard/", "")

	rec, view := h.do(t, http.MethodPut, "/api/v1/wizard/address", `{"street":"<b>12</b> Smith & Sons Lane","city":"Pune"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	addr := view["order"].(map[string]any)["address"].(map[string]any)
	require.Equal(t, "12 Smith & Sons Lane", addr["street"])
	require.Equal(t, "India", addr["country"])
}

func TestWizardHandlersBodyErrors(t *testing.T) {
	h := newWizardHarness(t)

	rec, payload := h.do(t, http.MethodPut, "/api/v1/wizard/email", `{"email":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", payload["error"])

	rec, _ = h.do(t, http.MethodPut, "/api/v1/wizard/email", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	huge := `{"email":"` + strings.Repeat("a", int(maxWizardBodySize)) + `"}`
	rec, _ = h.do(t, http.MethodPut, "/api/v1/wizard/email", huge)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWizardHandlersLanguagesRequireCatalog(t *testing.T) {
	h := newWizardHarness(t)

	rec, payload := h.do(t, http.MethodPut, "/api/v1/wizard/languages", `{"from":"english"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "catalog_unavailable", payload["error"])
}

func TestWizardHandlersRequireSession(t *testing.T) {
	registry, err := services.NewWizardRegistry(services.WizardRegistryDeps{
		Wizard: services.WizardDeps{Resolver: catalog.NewStatic(), Engine: pricing.NewEngine(pricing.DefaultRateCard())},
	})
	require.NoError(t, err)
	router := NewRouter(WithWizardRoutes(NewWizardHandlers(registry).Routes))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wizard/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPagesText(t *testing.T) {
	cases := map[string]string{
		`"4"`:   "4",
		`7`:     "7",
		`2.5`:   "2.5",
		`null`:  "",
		`true`:  "",
		`"abc"`: "abc",
	}
	for raw, want := range cases {
		require.Equal(t, want, pagesText(json.RawMessage(raw)), raw)
	}
}
