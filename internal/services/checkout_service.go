package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quotedesk/checkout/internal/payments"
	"github.com/quotedesk/checkout/internal/pricing"
)

const (
	defaultCheckoutTimeout = 15 * time.Second
	defaultCurrency        = "usd"
	checkoutTracerName     = "github.com/quotedesk/checkout/internal/services"
)

// checkoutSessionManager abstracts payments.Manager for easier testing.
type checkoutSessionManager interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// CheckoutOrder is a finalised quote ready to be charged.
type CheckoutOrder struct {
	SessionID         string
	Email             string
	FromLanguage      string
	ToLanguage        string
	CertificationType string
	Priority          string
	Pages             int
	Total             decimal.Decimal
	Metadata          map[string]string
}

// CheckoutResult is the processor session the customer is redirected to.
type CheckoutResult struct {
	SessionID   string `json:"sessionId"`
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirectUrl"`
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Payments          checkoutSessionManager
	PreferredProvider string
	Currency          string
	Timeout           time.Duration
	IDGenerator       func() string
	Metrics           Recorder
	Logger            func(ctx context.Context, event string, fields map[string]any)
	Tracer            trace.Tracer
}

// CheckoutService performs the Checkout Handoff: one processor call per invocation, no retries.
type CheckoutService struct {
	payments  checkoutSessionManager
	preferred string
	currency  string
	timeout   time.Duration
	newID     func() string
	metrics   Recorder
	logger    func(context.Context, string, map[string]any)
	tracer    trace.Tracer
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultCheckoutTimeout
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(checkoutTracerName)
	}
	return &CheckoutService{
		payments:  deps.Payments,
		preferred: strings.TrimSpace(deps.PreferredProvider),
		currency:  currency,
		timeout:   timeout,
		newID:     idGen,
		metrics:   metrics,
		logger:    logger,
		tracer:    tracer,
	}, nil
}

// CreateSession requests a new processor session for order. Every call requests a fresh session.
// Failures are logged and returned wrapped in ErrCheckoutFailure.
func (s *CheckoutService) CreateSession(ctx context.Context, order CheckoutOrder) (CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.create_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	amount, err := pricing.MinorUnits(order.Total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "amount out of range")
		s.metrics.CheckoutSession(providerLabel(s.preferred), "error")
		s.logger(ctx, "checkout_rejected", map[string]any{"sessionId": order.SessionID, "total": order.Total.String()})
		return CheckoutResult{}, fmt.Errorf("%w: %w", ErrCheckoutFailure, err)
	}
	requestID := s.newID()
	span.SetAttributes(
		attribute.Int64("checkout.amount", amount),
		attribute.String("checkout.currency", s.currency),
		attribute.String("checkout.request_id", requestID),
	)

	metadata := make(map[string]string, len(order.Metadata)+2)
	for k, v := range order.Metadata {
		metadata[k] = v
	}
	metadata["quoteSession"] = order.SessionID
	metadata["checkoutRequest"] = requestID

	req := payments.CheckoutSessionRequest{
		Amount:            amount,
		Currency:          s.currency,
		Email:             strings.TrimSpace(order.Email),
		FromLanguage:      order.FromLanguage,
		ToLanguage:        order.ToLanguage,
		CertificationType: order.CertificationType,
		Priority:          order.Priority,
		Pages:             order.Pages,
		Description:       describeOrder(order),
		Metadata:          metadata,
		IdempotencyKey:    requestID,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	session, err := s.payments.CreateCheckoutSession(callCtx, payments.PaymentContext{PreferredProvider: s.preferred}, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout session failed")
		s.metrics.CheckoutSession(providerLabel(s.preferred), "error")
		s.logger(ctx, "checkout_failed", map[string]any{
			"sessionId": order.SessionID,
			"requestId": requestID,
			"amount":    amount,
			"error":     err.Error(),
		})
		return CheckoutResult{}, fmt.Errorf("%w: %w", ErrCheckoutFailure, err)
	}

	s.metrics.CheckoutSession(providerLabel(session.Provider), "created")
	s.logger(ctx, "checkout_session_created", map[string]any{
		"sessionId":         order.SessionID,
		"requestId":         requestID,
		"provider":          session.Provider,
		"checkoutSessionId": session.ID,
		"amount":            amount,
	})
	return CheckoutResult{SessionID: session.ID, Provider: session.Provider, RedirectURL: session.RedirectURL}, nil
}

func describeOrder(order CheckoutOrder) string {
	pages := strconv.Itoa(order.Pages) + " pages"
	if order.Pages == 1 {
		pages = "1 page"
	}
	return fmt.Sprintf("Translation %s to %s, %s, %s", order.FromLanguage, order.ToLanguage, order.CertificationType, pages)
}

func providerLabel(provider string) string {
	if provider == "" {
		return "default"
	}
	return provider
}
