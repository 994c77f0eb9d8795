package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	defaultProcessorTimeout  = 10 * time.Second
	defaultRedirectTemplate  = "https://checkout.stripe.com/c/pay/{id}"
	idempotencyHeader        = "Idempotency-Key"
	processorSessionEndpoint = "create-checkout-session"
)

// ProcessorProviderConfig configures the hosted checkout processor client.
type ProcessorProviderConfig struct {
	BaseURL string
	// Offline mints local session ids without calling a processor. Only valid with an empty BaseURL.
	Offline bool
	// RedirectTemplate builds the customer redirect; "{id}" is replaced with the session id.
	RedirectTemplate string
	Timeout          time.Duration
	HTTPClient       *http.Client
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

// ProcessorProvider creates sessions through the processor's POST /create-checkout-session endpoint.
type ProcessorProvider struct {
	baseURL  string
	redirect string
	http     *http.Client
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewProcessorProvider constructs the processor client.
func NewProcessorProvider(cfg ProcessorProviderConfig) (*ProcessorProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	switch {
	case baseURL == "" && !cfg.Offline:
		return nil, errors.New("payments: processor base url is required")
	case baseURL != "" && cfg.Offline:
		return nil, errors.New("payments: offline processor cannot have a base url")
	case baseURL != "":
		if _, err := url.ParseRequestURI(baseURL); err != nil {
			return nil, fmt.Errorf("payments: invalid processor base url: %w", err)
		}
	}
	redirect := strings.TrimSpace(cfg.RedirectTemplate)
	if redirect == "" {
		redirect = defaultRedirectTemplate
	}
	if !strings.Contains(redirect, "{id}") {
		return nil, errors.New("payments: redirect template must contain {id}")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultProcessorTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ProcessorProvider{baseURL: baseURL, redirect: redirect, http: hc, logger: logger}, nil
}

type processorSessionBody struct {
	Amount            int64             `json:"amount"`
	Email             string            `json:"email"`
	FromLanguage      string            `json:"fromLanguage"`
	ToLanguage        string            `json:"toLanguage"`
	CertificationType string            `json:"certificationType"`
	Priority          string            `json:"priority"`
	Pages             int               `json:"pages"`
	Currency          string            `json:"currency,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type processorSessionPayload struct {
	ID    string `json:"id"`
	Error any    `json:"error"`
}

// CreateCheckoutSession posts the order and returns the processor's session id.
func (p *ProcessorProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p.baseURL == "" {
		id := "cs_local_" + ulid.Make().String()
		p.logger(ctx, "payments.processor.session.offline", map[string]any{"sessionId": id})
		return CheckoutSession{ID: id, RedirectURL: p.redirectURL(id)}, nil
	}

	payload, err := json.Marshal(processorSessionBody{
		Amount:            req.Amount,
		Email:             req.Email,
		FromLanguage:      req.FromLanguage,
		ToLanguage:        req.ToLanguage,
		CertificationType: req.CertificationType,
		Priority:          req.Priority,
		Pages:             req.Pages,
		Currency:          strings.ToLower(req.Currency),
		Metadata:          copyMetadata(req.Metadata),
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+processorSessionEndpoint, bytes.NewReader(payload))
	if err != nil {
		return CheckoutSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set(idempotencyHeader, key)
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payments: processor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return CheckoutSession{}, fmt.Errorf("payments: processor status %d: %s", resp.StatusCode, drainError(resp.Body))
	}

	var out processorSessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CheckoutSession{}, fmt.Errorf("payments: decode processor response: %w", err)
	}
	if out.Error != nil {
		return CheckoutSession{}, fmt.Errorf("payments: processor reported error: %v", out.Error)
	}
	id := strings.TrimSpace(out.ID)
	if id == "" {
		return CheckoutSession{}, errors.New("payments: processor returned no session id")
	}

	p.logger(ctx, "payments.processor.session.created", map[string]any{"sessionId": id, "amount": req.Amount})
	return CheckoutSession{ID: id, RedirectURL: p.redirectURL(id)}, nil
}

func (p *ProcessorProvider) redirectURL(id string) string {
	return strings.ReplaceAll(p.redirect, "{id}", url.PathEscape(id))
}

func drainError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
