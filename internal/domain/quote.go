package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceTier selects which catalog certification list applies to a quote.
type ServiceTier string

const (
	// ServiceTierProfessional is the standard translation tier for individual and business use.
	ServiceTierProfessional ServiceTier = "Professional"
	// ServiceTierCertified covers certified, sworn, notarised and legalised translations.
	ServiceTierCertified ServiceTier = "Certified"
)

// DefaultServiceTier is applied to fresh quotes.
const DefaultServiceTier = ServiceTierProfessional

// ParseServiceTier normalises user input into a known tier.
func ParseServiceTier(raw string) (ServiceTier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "professional":
		return ServiceTierProfessional, true
	case "certified":
		return ServiceTierCertified, true
	default:
		return "", false
	}
}

// Priority controls turnaround time and therefore the delivery window.
type Priority string

const (
	PriorityNormal  Priority = "normal"
	PriorityExpress Priority = "express"
)

// ParsePriority normalises user input into a known priority.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(PriorityNormal):
		return PriorityNormal, true
	case string(PriorityExpress):
		return PriorityExpress, true
	default:
		return "", false
	}
}

// DeliveryDate returns the promised delivery date for an order submitted at the supplied time.
func (p Priority) DeliveryDate(submittedAt time.Time) time.Time {
	if p == PriorityExpress {
		return submittedAt.AddDate(0, 0, 1)
	}
	return submittedAt.AddDate(0, 0, 3)
}

// Label renders the short summary label shown next to the priority.
func (p Priority) Label() string {
	if p == PriorityExpress {
		return "EXPRESS (24h)"
	}
	return "NORMAL (72h)"
}

// TranslationRoute describes whether a pair is translated directly or through an intermediary language.
type TranslationRoute string

const (
	RouteDirect TranslationRoute = "direct"
	RouteCross  TranslationRoute = "cross"
)

// ParseTranslationRoute maps the catalog's translationType onto a route, defaulting to direct.
func ParseTranslationRoute(raw string) TranslationRoute {
	if strings.EqualFold(strings.TrimSpace(raw), string(RouteCross)) {
		return RouteCross
	}
	return RouteDirect
}

// IntermediaryLanguage is the pivot language used for cross routes.
const IntermediaryLanguage = "English (UK)"

// LanguagePair identifies the source and target language of a translation.
type LanguagePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Complete reports whether both sides of the pair have been chosen.
func (p LanguagePair) Complete() bool {
	return strings.TrimSpace(p.From) != "" && strings.TrimSpace(p.To) != ""
}

// Valid reports whether the pair is complete and translates between two distinct languages.
func (p LanguagePair) Valid() bool {
	return p.Complete() && !strings.EqualFold(strings.TrimSpace(p.From), strings.TrimSpace(p.To))
}

// PricingQuote is the catalog's per-page price for a (pair, priority, certification) tuple.
type PricingQuote struct {
	PricePerPage   decimal.Decimal
	Route          TranslationRoute
	FirstLegPrice  decimal.NullDecimal
	SecondLegPrice decimal.NullDecimal
}

// HasLegs reports whether the quote carries a two-leg breakdown for a cross route.
func (q PricingQuote) HasLegs() bool {
	return q.Route == RouteCross && q.FirstLegPrice.Valid && q.SecondLegPrice.Valid
}

// TranslationTier is the menu-priced translation quality level chosen once the quote is accepted.
type TranslationTier string

const (
	TranslationTierStandard     TranslationTier = "Standard"
	TranslationTierProfessional TranslationTier = "Professional"
	TranslationTierSpecialist   TranslationTier = "Specialist"
)

// MenuCertification is the menu-priced certification surcharge option.
type MenuCertification string

const (
	MenuCertificationNAATI    MenuCertification = "Certified Translator (NAATI)"
	MenuCertificationStandard MenuCertification = "Standard Certification"
)

// AdditionalServices are flat-fee add-ons on the final order.
type AdditionalServices struct {
	Apostille    bool `json:"apostille"`
	PhysicalCopy bool `json:"physicalCopy"`
}

// DefaultCountry is preselected on new delivery addresses.
const DefaultCountry = "India"

// DeliveryAddress is where the physical copy is posted.
type DeliveryAddress struct {
	Street    string `json:"street"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// HasStreet reports whether a non-blank street line is present.
func (a DeliveryAddress) HasStreet() bool {
	return strings.TrimSpace(a.Street) != ""
}

// Stage is a step of the quoting wizard.
type Stage string

const (
	StageChooseService Stage = "choose_service"
	StageSelectOptions Stage = "select_options"
	StagePayment       Stage = "payment"
)

// Index returns the 1-based position of the stage in the wizard.
func (s Stage) Index() int {
	switch s {
	case StageSelectOptions:
		return 2
	case StagePayment:
		return 3
	default:
		return 1
	}
}

// ParseStage maps persisted stage names back onto stages, defaulting to the first stage.
func ParseStage(raw string) Stage {
	switch Stage(strings.TrimSpace(raw)) {
	case StageSelectOptions:
		return StageSelectOptions
	case StagePayment:
		return StagePayment
	default:
		return StageChooseService
	}
}
