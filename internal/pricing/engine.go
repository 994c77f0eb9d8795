package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/checkout/internal/domain"
)

var (
	// ErrUnknownTranslationTier is returned when the rate card has no rate for the chosen tier.
	ErrUnknownTranslationTier = errors.New("pricing: unknown translation tier")
	// ErrUnknownCertification is returned when the rate card has no fee for the chosen certification.
	ErrUnknownCertification = errors.New("pricing: unknown certification")
)

// Engine computes prices in the two independent modes: catalog-priced estimates and menu-priced orders.
type Engine struct {
	card RateCard
}

// NewEngine constructs an Engine over the supplied rate card.
func NewEngine(card RateCard) *Engine {
	return &Engine{card: card}
}

// RateCard exposes the menu rate card.
func (e *Engine) RateCard() RateCard {
	return e.card
}

// CatalogEstimate is the catalog-priced quote total with its per-leg breakdown.
type CatalogEstimate struct {
	Route        domain.TranslationRoute
	Pages        int
	PricePerPage decimal.Decimal
	// FirstLeg and SecondLeg are per-page leg prices, set only for cross routes.
	FirstLeg  decimal.NullDecimal
	SecondLeg decimal.NullDecimal
	Total     decimal.Decimal
}

// Priced reports whether the estimate carries a positive total.
func (c CatalogEstimate) Priced() bool {
	return c.Total.IsPositive()
}

// CatalogPriced derives the estimate from a resolved pricing quote. A nil quote yields a zero total.
// Cross routes with both legs are billed as the sum of the legs per page; a cross quote missing a leg
// falls back to the per-page rate.
func (e *Engine) CatalogPriced(quote *domain.PricingQuote, pages int) CatalogEstimate {
	pages = ClampPages(pages)
	est := CatalogEstimate{Route: domain.RouteDirect, Pages: pages, Total: decimal.Zero}
	if quote == nil {
		return est
	}
	est.Route = quote.Route
	est.PricePerPage = quote.PricePerPage
	n := decimal.NewFromInt(int64(pages))
	if quote.HasLegs() {
		est.FirstLeg = quote.FirstLegPrice
		est.SecondLeg = quote.SecondLegPrice
		est.Total = quote.FirstLegPrice.Decimal.Add(quote.SecondLegPrice.Decimal).Mul(n)
		return est
	}
	est.Total = quote.PricePerPage.Mul(n)
	return est
}

// MenuSelection is the set of inputs to menu-priced mode.
type MenuSelection struct {
	Tier          domain.TranslationTier
	Certification domain.MenuCertification
	Services      domain.AdditionalServices
}

// MenuBreakdown itemises a menu-priced order.
type MenuBreakdown struct {
	Pages               int
	TranslationRate     decimal.Decimal
	TranslationSubtotal decimal.Decimal
	CertificationFee    decimal.Decimal
	ApostilleFee        decimal.Decimal
	PhysicalCopyFee     decimal.Decimal
	Total               decimal.Decimal
}

// MenuPriced computes rate(tier) × pages + certification fee + selected add-on fees.
func (e *Engine) MenuPriced(sel MenuSelection, pages int) (MenuBreakdown, error) {
	pages = ClampPages(pages)
	rate, ok := e.card.TranslationRate(sel.Tier)
	if !ok {
		return MenuBreakdown{}, fmt.Errorf("%w: %q", ErrUnknownTranslationTier, sel.Tier)
	}
	certFee, ok := e.card.CertificationFee(sel.Certification)
	if !ok {
		return MenuBreakdown{}, fmt.Errorf("%w: %q", ErrUnknownCertification, sel.Certification)
	}

	b := MenuBreakdown{
		Pages:               pages,
		TranslationRate:     rate,
		TranslationSubtotal: rate.Mul(decimal.NewFromInt(int64(pages))),
		CertificationFee:    certFee,
		ApostilleFee:        decimal.Zero,
		PhysicalCopyFee:     decimal.Zero,
	}
	if sel.Services.Apostille {
		b.ApostilleFee = e.card.ApostilleFee
	}
	if sel.Services.PhysicalCopy {
		b.PhysicalCopyFee = e.card.PhysicalCopyFee
	}
	b.Total = b.TranslationSubtotal.Add(b.CertificationFee).Add(b.ApostilleFee).Add(b.PhysicalCopyFee)
	return b, nil
}
