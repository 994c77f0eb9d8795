// Package catalog resolves languages, certification options, translation routes and per-page
// prices against the external catalog/pricing service.
package catalog

import (
	"errors"
	"fmt"

	"github.com/quotedesk/checkout/internal/domain"
)

var (
	// ErrUnavailable marks transport or server failures talking to the catalog service.
	ErrUnavailable = errors.New("catalog: unavailable")
	// ErrPricingUnavailable marks a pricing response with no usable per-page rate.
	ErrPricingUnavailable = errors.New("catalog: pricing unavailable")
)

// PricingUnavailableError carries the server-supplied reason, if any, for declining to price a selection.
type PricingUnavailableError struct {
	Reason string
}

func (e *PricingUnavailableError) Error() string {
	if e.Reason == "" {
		return ErrPricingUnavailable.Error()
	}
	return fmt.Sprintf("%s: %s", ErrPricingUnavailable.Error(), e.Reason)
}

// Is lets errors.Is match ErrPricingUnavailable.
func (e *PricingUnavailableError) Is(target error) bool {
	return target == ErrPricingUnavailable
}

// Certifications is the ordered certification list and translation route for a (tier, pair).
type Certifications struct {
	Options []string
	Route   domain.TranslationRoute
}

// Recorder receives one outcome per catalog call. observability.Metrics implements it.
type Recorder interface {
	CatalogCall(endpoint, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) CatalogCall(string, string) {}

const (
	endpointLanguages                  = "get-languages"
	endpointCertificationsProfessional = "get-certifications-professional"
	endpointCertificationsLimited      = "get-certifications-limited"
	endpointPricing                    = "get-pricing"
)

// certificationsEndpoint picks the certification list for a tier: Professional gets the full list,
// every other tier the limited one.
func certificationsEndpoint(tier domain.ServiceTier) string {
	if tier == domain.ServiceTierProfessional {
		return endpointCertificationsProfessional
	}
	return endpointCertificationsLimited
}
