package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrInvalidRequest is returned for requests a processor would reject outright.
	ErrInvalidRequest = errors.New("payments: invalid checkout request")
)

// CheckoutSessionRequest is the finalised order handed to a processor.
type CheckoutSessionRequest struct {
	// Amount is in minor currency units.
	Amount            int64
	Currency          string
	Email             string
	FromLanguage      string
	ToLanguage        string
	CertificationType string
	Priority          string
	Pages             int
	Description       string
	Metadata          map[string]string
	IdempotencyKey    string
}

// Validate rejects requests no processor can charge.
func (r CheckoutSessionRequest) Validate() error {
	switch {
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case strings.TrimSpace(r.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidRequest)
	case r.Pages < 1:
		return fmt.Errorf("%w: pages must be at least 1", ErrInvalidRequest)
	}
	return nil
}

// CheckoutSession is the processor's session reference and where to send the customer.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
}

// Provider creates chargeable sessions. Each call requests a new session.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// Manager routes checkout requests to a registered provider.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider sets the provider used when the caller expresses no preference.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.ToLower(strings.TrimSpace(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	registered := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		registered[key] = v
	}
	m := &Manager{providers: registered}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext carries provider selection hints.
type PaymentContext struct {
	PreferredProvider string
}

func (m *Manager) resolveProvider(pc PaymentContext) (string, Provider, error) {
	if key := strings.ToLower(strings.TrimSpace(pc.PreferredProvider)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, key)
	}
	if p, ok := m.providers[m.defaultProvider]; ok {
		return m.defaultProvider, p, nil
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// DefaultProvider reports the provider used when no preference is given.
func (m *Manager) DefaultProvider() string {
	key, _, err := m.resolveProvider(PaymentContext{})
	if err != nil {
		return ""
	}
	return key
}

// CreateCheckoutSession validates the request and delegates to the resolved provider.
func (m *Manager) CreateCheckoutSession(ctx context.Context, pc PaymentContext, req CheckoutSessionRequest) (CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return CheckoutSession{}, err
	}
	key, provider, err := m.resolveProvider(pc)
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	if strings.TrimSpace(session.ID) == "" {
		return CheckoutSession{}, fmt.Errorf("payments: %s returned an empty session id", key)
	}
	session.Provider = key
	return session, nil
}

func copyMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
