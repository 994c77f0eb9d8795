package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Logger     func(ctx context.Context, event string, fields map[string]any)
	Sessions   stripeSessionAPI
}

// StripeProvider creates Stripe Checkout sessions directly.
type StripeProvider struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewStripeProvider constructs a StripeProvider. Sessions overrides the Stripe client for tests.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, errors.New("stripe: success and cancel urls are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeProvider{
		sessions:   sessions,
		successURL: strings.TrimSpace(cfg.SuccessURL),
		cancelURL:  strings.TrimSpace(cfg.CancelURL),
		logger:     logger,
	}, nil
}

// CreateCheckoutSession creates a payment-mode session with a single line item for the order total.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	metadata := copyMetadata(req.Metadata)
	if metadata == nil {
		metadata = make(map[string]string, 5)
	}
	metadata["fromLanguage"] = req.FromLanguage
	metadata["toLanguage"] = req.ToLanguage
	metadata["certificationType"] = req.CertificationType
	metadata["priority"] = req.Priority
	metadata["pages"] = strconv.Itoa(req.Pages)

	name := strings.TrimSpace(req.Description)
	if name == "" {
		name = fmt.Sprintf("Translation %s to %s", req.FromLanguage, req.ToLanguage)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(p.successURL),
		CancelURL:     stripe.String(p.cancelURL),
		CustomerEmail: stripe.String(req.Email),
		Metadata:      metadata,
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(metadata),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"amount":    req.Amount,
		"currency":  string(session.Currency),
	})
	return CheckoutSession{ID: session.ID, RedirectURL: session.URL}, nil
}
