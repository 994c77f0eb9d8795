package services

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

const deliveryDisplayLayout = "Monday, January 2"

// LanguageOption is a selectable language with its display label.
type LanguageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// EstimateView is the catalog-priced estimate rendered as 2-dp strings.
type EstimateView struct {
	Route          string `json:"route"`
	RouteNotice    string `json:"routeNotice,omitempty"`
	PricePerPage   string `json:"pricePerPage"`
	FirstLegPrice  string `json:"firstLegPrice,omitempty"`
	SecondLegPrice string `json:"secondLegPrice,omitempty"`
	Pages          int    `json:"pages"`
	Total          string `json:"total"`
	Loading        bool   `json:"loading"`
}

// DeliveryView is the promised delivery date for the current priority.
type DeliveryView struct {
	Priority string `json:"priority"`
	Label    string `json:"label"`
	Date     string `json:"date"`
	Display  string `json:"display"`
}

// OrderView is the menu-priced final order.
type OrderView struct {
	TranslationTier     string                    `json:"translationTier"`
	CertificationType   string                    `json:"certificationType"`
	AdditionalServices  domain.AdditionalServices `json:"additionalServices"`
	Address             domain.DeliveryAddress    `json:"address"`
	TranslationRate     string                    `json:"translationRate"`
	TranslationSubtotal string                    `json:"translationSubtotal"`
	CertificationFee    string                    `json:"certificationFee"`
	ApostilleFee        string                    `json:"apostilleFee"`
	PhysicalCopyFee     string                    `json:"physicalCopyFee"`
	Total               string                    `json:"total"`
	TranslationTiers    []string                  `json:"translationTiers"`
	CertificationTypes  []string                  `json:"certificationTypes"`
}

// View is the wizard snapshot returned to clients after every call.
type View struct {
	SessionID  string `json:"sessionId"`
	Stage      string `json:"stage"`
	StageIndex int    `json:"stageIndex"`

	Languages        []LanguageOption `json:"languages"`
	LanguagesLoading bool             `json:"languagesLoading"`
	LanguagesReady   bool             `json:"languagesReady"`

	Service   string `json:"service"`
	FromLang  string `json:"fromLang"`
	ToLang    string `json:"toLang"`
	FromLabel string `json:"fromLabel,omitempty"`
	ToLabel   string `json:"toLabel,omitempty"`
	Email     string `json:"email"`
	NumPages  int    `json:"numPages"`

	Certifications        []string `json:"certifications"`
	Certification         string   `json:"certification"`
	CertificationsLoading bool     `json:"certificationsLoading"`

	Documents     []string `json:"documents"`
	DocumentCount int      `json:"documentCount"`

	Estimate EstimateView `json:"estimate"`
	Delivery DeliveryView `json:"delivery"`
	Order    OrderView    `json:"order"`

	Loading         bool   `json:"loading"`
	CheckoutPending bool   `json:"checkoutPending"`
	Message         string `json:"message,omitempty"`
	MessageKind     string `json:"messageKind,omitempty"`
	CanAdvance      bool   `json:"canAdvance"`
}

// LanguageLabel renders a catalog language code for display, e.g. "english" as "English".
func LanguageLabel(code string) string {
	if code == "" {
		return ""
	}
	// Casers carry state and are not shared between goroutines.
	return cases.Title(language.English).String(code)
}

// View renders the current state.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := &w.state
	pair := st.Pair()
	est := st.Estimate(w.deps.Engine)
	now := w.deps.Clock()
	card := w.deps.Engine.RateCard()

	v := View{
		SessionID:             w.id,
		Stage:                 string(st.Stage()),
		StageIndex:            st.Stage().Index(),
		LanguagesLoading:      w.langStatus == languagesLoading,
		LanguagesReady:        w.langStatus == languagesLoaded,
		Service:               string(st.Tier()),
		FromLang:              pair.From,
		ToLang:                pair.To,
		FromLabel:             LanguageLabel(pair.From),
		ToLabel:               LanguageLabel(pair.To),
		Email:                 st.Email(),
		NumPages:              st.Pages(),
		Certifications:        st.Certifications(),
		Certification:         st.Certification(),
		CertificationsLoading: w.certInflight != "",
		Documents:             st.Documents(),
		CheckoutPending:       w.checkoutPending,
	}
	v.DocumentCount = len(v.Documents)
	if v.Certifications == nil {
		v.Certifications = []string{}
	}
	if v.Documents == nil {
		v.Documents = []string{}
	}
	v.Languages = make([]LanguageOption, 0, len(w.languages))
	for _, code := range w.languages {
		v.Languages = append(v.Languages, LanguageOption{Code: code, Label: LanguageLabel(code)})
	}

	v.Estimate = EstimateView{
		Route:        string(st.Route()),
		PricePerPage: pricing.FormatAmount(est.PricePerPage),
		Pages:        est.Pages,
		Total:        pricing.FormatAmount(est.Total),
		Loading:      w.priceInflight != "",
	}
	if st.Route() == domain.RouteCross {
		v.Estimate.RouteNotice = "This translation is carried out via " + domain.IntermediaryLanguage + " as an intermediary language."
	}
	if est.FirstLeg.Valid && est.SecondLeg.Valid {
		v.Estimate.FirstLegPrice = pricing.FormatAmount(est.FirstLeg.Decimal)
		v.Estimate.SecondLegPrice = pricing.FormatAmount(est.SecondLeg.Decimal)
	}

	delivery := st.Priority().DeliveryDate(now)
	v.Delivery = DeliveryView{
		Priority: string(st.Priority()),
		Label:    st.Priority().Label(),
		Date:     delivery.Format("2006-01-02"),
		Display:  delivery.Format(deliveryDisplayLayout),
	}

	v.Order = OrderView{
		TranslationTier:    string(st.TranslationTier()),
		CertificationType:  string(st.MenuCertification()),
		AdditionalServices: st.Services(),
		Address:            st.Address(),
		TranslationTiers:   make([]string, 0, len(card.TranslationRates)),
		CertificationTypes: make([]string, 0, len(card.CertificationFees)),
	}
	for _, entry := range card.TranslationRates {
		v.Order.TranslationTiers = append(v.Order.TranslationTiers, entry.Name)
	}
	for _, entry := range card.CertificationFees {
		v.Order.CertificationTypes = append(v.Order.CertificationTypes, entry.Name)
	}
	if breakdown, err := w.deps.Engine.MenuPriced(st.MenuSelection(), st.Pages()); err == nil {
		v.Order.TranslationRate = pricing.FormatAmount(breakdown.TranslationRate)
		v.Order.TranslationSubtotal = pricing.FormatAmount(breakdown.TranslationSubtotal)
		v.Order.CertificationFee = pricing.FormatAmount(breakdown.CertificationFee)
		v.Order.ApostilleFee = pricing.FormatAmount(breakdown.ApostilleFee)
		v.Order.PhysicalCopyFee = pricing.FormatAmount(breakdown.PhysicalCopyFee)
		v.Order.Total = pricing.FormatAmount(breakdown.Total)
	}

	v.Loading = v.LanguagesLoading || v.CertificationsLoading || v.Estimate.Loading || w.checkoutPending
	msg := w.currentMessageLocked()
	v.Message = msg.text
	v.MessageKind = string(msg.kind)
	if st.Stage() == domain.StagePayment {
		v.CanAdvance = !w.checkoutPending && gateFor(st, est.Total, domain.StagePayment) == nil
	} else {
		v.CanAdvance = gateFor(st, est.Total, st.Stage()) == nil
	}
	return v
}
