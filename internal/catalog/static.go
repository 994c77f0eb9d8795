package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/checkout/internal/domain"
)

// Static is an in-process catalog used when no catalog service is configured. Pairs that do not
// involve English are routed via English (UK). Certified translations are only offered for pairs
// involving English.
type Static struct {
	languages []string
}

// NewStatic returns the built-in catalog.
func NewStatic() *Static {
	return &Static{languages: []string{
		"arabic", "chinese", "english", "french", "german", "hindi",
		"italian", "japanese", "korean", "portuguese", "russian", "spanish",
	}}
}

var (
	staticProfessional = []string{"standard", "notarised"}
	staticLimited      = []string{"NAATI certified", "sworn"}

	staticBase = map[domain.Priority]decimal.Decimal{
		domain.PriorityNormal:  decimal.NewFromInt(10),
		domain.PriorityExpress: decimal.NewFromInt(15),
	}
	staticSurcharge = map[string]decimal.Decimal{
		"standard":        decimal.Zero,
		"notarised":       decimal.NewFromInt(5),
		"NAATI certified": decimal.NewFromInt(8),
		"sworn":           decimal.NewFromInt(12),
	}
	// Leg prices are a fixed fraction of the direct price: 0.8 into English, 0.9 out of it.
	staticFirstLeg  = decimal.RequireFromString("0.8")
	staticSecondLeg = decimal.RequireFromString("0.9")
)

// ListLanguages returns a copy of the built-in language list.
func (s *Static) ListLanguages(context.Context) ([]string, error) {
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out, nil
}

// ListCertifications mirrors the professional/limited split of the remote catalog.
func (s *Static) ListCertifications(_ context.Context, tier domain.ServiceTier, pair domain.LanguagePair) (Certifications, error) {
	if !pair.Valid() || !s.known(pair.From) || !s.known(pair.To) {
		return Certifications{}, fmt.Errorf("catalog: invalid language pair %q -> %q", pair.From, pair.To)
	}
	route := routeFor(pair)
	if certificationsEndpoint(tier) == endpointCertificationsLimited {
		if route == domain.RouteCross {
			return Certifications{Options: []string{}, Route: route}, nil
		}
		return Certifications{Options: append([]string(nil), staticLimited...), Route: route}, nil
	}
	return Certifications{Options: append([]string(nil), staticProfessional...), Route: route}, nil
}

// GetPricing prices the tuple from the built-in table.
func (s *Static) GetPricing(_ context.Context, pair domain.LanguagePair, priority domain.Priority, certification string) (domain.PricingQuote, error) {
	if !pair.Valid() || !s.known(pair.From) || !s.known(pair.To) {
		return domain.PricingQuote{}, &PricingUnavailableError{Reason: "unsupported pair"}
	}
	base, ok := staticBase[priority]
	if !ok {
		return domain.PricingQuote{}, &PricingUnavailableError{Reason: "unsupported priority"}
	}
	surcharge, ok := staticSurcharge[certification]
	if !ok {
		return domain.PricingQuote{}, &PricingUnavailableError{}
	}
	direct := base.Add(surcharge)
	if routeFor(pair) == domain.RouteDirect {
		return domain.PricingQuote{PricePerPage: direct, Route: domain.RouteDirect}, nil
	}
	first := direct.Mul(staticFirstLeg)
	second := direct.Mul(staticSecondLeg)
	return domain.PricingQuote{
		PricePerPage:   first.Add(second),
		Route:          domain.RouteCross,
		FirstLegPrice:  decimal.NewNullDecimal(first),
		SecondLegPrice: decimal.NewNullDecimal(second),
	}, nil
}

func (s *Static) known(lang string) bool {
	lang = strings.TrimSpace(lang)
	for _, l := range s.languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

func routeFor(pair domain.LanguagePair) domain.TranslationRoute {
	if strings.EqualFold(pair.From, "english") || strings.EqualFold(pair.To, "english") {
		return domain.RouteDirect
	}
	return domain.RouteCross
}
