package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	calls   int
	lastReq CheckoutSessionRequest
	session CheckoutSession
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	f.calls++
	f.lastReq = req
	return f.session, f.err
}

func validRequest() CheckoutSessionRequest {
	return CheckoutSessionRequest{Amount: 3000, Currency: "usd", Email: "a@b.co", Pages: 2}
}

func TestManagerUsesPreferredProvider(t *testing.T) {
	processor := &fakeProvider{session: CheckoutSession{ID: "cs_processor"}}
	stripe := &fakeProvider{session: CheckoutSession{ID: "cs_stripe"}}
	mgr, err := NewManager(map[string]Provider{"processor": processor, "Stripe": stripe}, WithDefaultProvider("processor"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "stripe"}, validRequest())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != "stripe" || session.ID != "cs_stripe" {
		t.Fatalf("unexpected session %+v", session)
	}
	if processor.calls != 0 {
		t.Fatalf("expected default provider to remain unused")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	processor := &fakeProvider{session: CheckoutSession{ID: "cs_1"}}
	mgr, err := NewManager(map[string]Provider{"processor": processor})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if mgr.DefaultProvider() != "processor" {
		t.Fatalf("expected single provider to be the default, got %q", mgr.DefaultProvider())
	}
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, validRequest()); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one call, got %d", processor.calls)
	}
}

func TestManagerRejectsInvalidRequests(t *testing.T) {
	processor := &fakeProvider{session: CheckoutSession{ID: "cs_1"}}
	mgr, _ := NewManager(map[string]Provider{"processor": processor})

	req := validRequest()
	req.Amount = 0
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	req = validRequest()
	req.Email = " "
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty email, got %v", err)
	}
	if processor.calls != 0 {
		t.Fatalf("invalid requests must not reach the provider")
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	mgr, err := NewManager(map[string]Provider{"a": &fakeProvider{}, "b": &fakeProvider{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, validRequest()); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider without default, got %v", err)
	}
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "c"}, validRequest()); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider for unknown preference, got %v", err)
	}
}

func TestManagerRejectsEmptySessionID(t *testing.T) {
	mgr, _ := NewManager(map[string]Provider{"processor": &fakeProvider{}})
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, validRequest()); err == nil {
		t.Fatalf("expected error for empty session id")
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}
