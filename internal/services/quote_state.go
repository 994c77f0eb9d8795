package services

import (
	"strings"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

// QuoteState holds every customer selection and the catalog values resolved for them. Setters that
// change a resolution key clear exactly the values derived from the old key.
type QuoteState struct {
	tier      domain.ServiceTier
	pair      domain.LanguagePair
	priority  domain.Priority
	pages     int
	email     string
	documents []string

	certifications    []string
	certificationsKey string
	certification     string
	route             domain.TranslationRoute

	pricing    *domain.PricingQuote
	pricingKey string

	translationTier   domain.TranslationTier
	menuCertification domain.MenuCertification
	services          domain.AdditionalServices
	address           domain.DeliveryAddress

	stage domain.Stage

	// preferredCertification is restored from a snapshot and applied if the catalog still offers it.
	preferredCertification string
}

// NewQuoteState returns a state with defaults taken from the rate card.
func NewQuoteState(card pricing.RateCard) QuoteState {
	return QuoteState{
		tier:              domain.DefaultServiceTier,
		priority:          domain.PriorityNormal,
		pages:             1,
		route:             domain.RouteDirect,
		translationTier:   card.DefaultTranslationTier(),
		menuCertification: card.DefaultCertification(),
		address:           domain.DeliveryAddress{Country: domain.DefaultCountry},
		stage:             domain.StageChooseService,
	}
}

func (s *QuoteState) Tier() domain.ServiceTier                    { return s.tier }
func (s *QuoteState) Pair() domain.LanguagePair                   { return s.pair }
func (s *QuoteState) Priority() domain.Priority                   { return s.priority }
func (s *QuoteState) Pages() int                                  { return s.pages }
func (s *QuoteState) Email() string                               { return s.email }
func (s *QuoteState) Certification() string                       { return s.certification }
func (s *QuoteState) Route() domain.TranslationRoute              { return s.route }
func (s *QuoteState) TranslationTier() domain.TranslationTier     { return s.translationTier }
func (s *QuoteState) MenuCertification() domain.MenuCertification { return s.menuCertification }
func (s *QuoteState) Services() domain.AdditionalServices         { return s.services }
func (s *QuoteState) Address() domain.DeliveryAddress             { return s.address }
func (s *QuoteState) Stage() domain.Stage                         { return s.stage }

// Certifications returns the options last resolved for the current tier and pair.
func (s *QuoteState) Certifications() []string {
	return append([]string(nil), s.certifications...)
}

// Documents returns the attached file names.
func (s *QuoteState) Documents() []string {
	return append([]string(nil), s.documents...)
}

// Pricing returns the resolved quote for the current key, or nil.
func (s *QuoteState) Pricing() *domain.PricingQuote {
	if s.pricing == nil {
		return nil
	}
	q := *s.pricing
	return &q
}

// SetTier changes the service tier. A change invalidates certifications and pricing.
func (s *QuoteState) SetTier(tier domain.ServiceTier) bool {
	if tier == s.tier {
		return false
	}
	s.tier = tier
	s.clearCertifications()
	return true
}

// SetPair changes the language pair. A change invalidates certifications and pricing.
func (s *QuoteState) SetPair(pair domain.LanguagePair) bool {
	pair = domain.LanguagePair{From: strings.TrimSpace(pair.From), To: strings.TrimSpace(pair.To)}
	if pair == s.pair {
		return false
	}
	s.pair = pair
	s.clearCertifications()
	return true
}

// SetPriority changes the priority. A change invalidates pricing only.
func (s *QuoteState) SetPriority(priority domain.Priority) bool {
	if priority == s.priority {
		return false
	}
	s.priority = priority
	s.clearPricing()
	return true
}

// SetCertification selects one of the resolved options. A change invalidates pricing only.
func (s *QuoteState) SetCertification(certification string) (bool, error) {
	certification = strings.TrimSpace(certification)
	if !contains(s.certifications, certification) {
		return false, invalid("certification", "Please choose one of the available certifications")
	}
	if certification == s.certification {
		return false, nil
	}
	s.certification = certification
	s.preferredCertification = ""
	s.clearPricing()
	return true, nil
}

// SetPages stores the clamped page count. Totals are derived on read so nothing is invalidated.
func (s *QuoteState) SetPages(pages int) {
	s.pages = pricing.ClampPages(pages)
}

// SetEmail stores the trimmed email address.
func (s *QuoteState) SetEmail(email string) {
	s.email = strings.TrimSpace(email)
}

// SetDocuments replaces the attached file list, dropping blank names.
func (s *QuoteState) SetDocuments(files []string) {
	docs := make([]string, 0, len(files))
	for _, f := range files {
		if f = strings.TrimSpace(f); f != "" {
			docs = append(docs, f)
		}
	}
	s.documents = docs
}

// SetTranslationTier selects the menu translation tier.
func (s *QuoteState) SetTranslationTier(tier domain.TranslationTier) { s.translationTier = tier }

// SetMenuCertification selects the menu certification surcharge.
func (s *QuoteState) SetMenuCertification(cert domain.MenuCertification) { s.menuCertification = cert }

// SetServices replaces the add-on selection.
func (s *QuoteState) SetServices(services domain.AdditionalServices) { s.services = services }

// SetAddress replaces the delivery address, defaulting the country.
func (s *QuoteState) SetAddress(addr domain.DeliveryAddress) {
	if strings.TrimSpace(addr.Country) == "" {
		addr.Country = domain.DefaultCountry
	}
	s.address = addr
}

// SetStage moves the wizard cursor. Gates are enforced by the Wizard.
func (s *QuoteState) SetStage(stage domain.Stage) { s.stage = stage }

// CertificationKey identifies the (tier, pair) a certification list is valid for. It is empty while
// the pair is incomplete or names the same language twice.
func (s *QuoteState) CertificationKey() string {
	if !s.pair.Valid() {
		return ""
	}
	return strings.ToLower(strings.Join([]string{string(s.tier), s.pair.From, s.pair.To}, "|"))
}

// PricingKey identifies the (pair, priority, certification) a pricing quote is valid for.
func (s *QuoteState) PricingKey() string {
	if !s.pair.Valid() || s.certification == "" || s.priority == "" || s.pages < 1 {
		return ""
	}
	return strings.ToLower(strings.Join([]string{s.pair.From, s.pair.To, string(s.priority), s.certification}, "|"))
}

// NeedsCertifications reports whether the certification list must be fetched for the current key.
func (s *QuoteState) NeedsCertifications() bool {
	key := s.CertificationKey()
	return key != "" && key != s.certificationsKey
}

// NeedsPricing reports whether a pricing quote must be fetched for the current key.
func (s *QuoteState) NeedsPricing() bool {
	key := s.PricingKey()
	return key != "" && key != s.pricingKey
}

// ApplyCertifications stores a resolved list for key. The previously chosen or restored certification
// is kept if still offered, otherwise the first option becomes the selection. It reports false when
// key is no longer current.
func (s *QuoteState) ApplyCertifications(key string, result catalog.Certifications) bool {
	if key == "" || key != s.CertificationKey() {
		return false
	}
	s.certificationsKey = key
	s.certifications = append([]string(nil), result.Options...)
	s.route = result.Route
	if s.route == "" {
		s.route = domain.RouteDirect
	}

	next := ""
	switch {
	case s.preferredCertification != "" && contains(s.certifications, s.preferredCertification):
		next = s.preferredCertification
	case s.certification != "" && contains(s.certifications, s.certification):
		next = s.certification
	case len(s.certifications) > 0:
		next = s.certifications[0]
	}
	s.preferredCertification = ""
	if next != s.certification {
		s.certification = next
		s.clearPricing()
	}
	return true
}

// ApplyPricing stores a resolved quote for key. It reports false when key is no longer current.
func (s *QuoteState) ApplyPricing(key string, quote domain.PricingQuote) bool {
	if key == "" || key != s.PricingKey() {
		return false
	}
	s.pricingKey = key
	s.pricing = &quote
	if quote.Route != "" {
		s.route = quote.Route
	}
	return true
}

// MarkPricingDeclined records that key was resolved without a usable rate, so the total stays zero.
func (s *QuoteState) MarkPricingDeclined(key string) bool {
	if key == "" || key != s.PricingKey() {
		return false
	}
	s.pricingKey = key
	s.pricing = nil
	return true
}

// Estimate is the catalog-priced total for the current selection.
func (s *QuoteState) Estimate(engine *pricing.Engine) pricing.CatalogEstimate {
	return engine.CatalogPriced(s.pricing, s.pages)
}

// MenuSelection is the input to menu-priced mode.
func (s *QuoteState) MenuSelection() pricing.MenuSelection {
	return pricing.MenuSelection{
		Tier:          s.translationTier,
		Certification: s.menuCertification,
		Services:      s.services,
	}
}

func (s *QuoteState) clearCertifications() {
	s.certifications = nil
	s.certificationsKey = ""
	s.certification = ""
	s.preferredCertification = ""
	s.route = domain.RouteDirect
	s.clearPricing()
}

func (s *QuoteState) clearPricing() {
	s.pricing = nil
	s.pricingKey = ""
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
