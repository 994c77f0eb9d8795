package pricing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/quotedesk/checkout/internal/domain"
)

// RateEntry is a named price in a rate card.
type RateEntry struct {
	Name   string
	Amount decimal.Decimal
}

// RateCard is the local price table used by menu-priced mode. Entry order is display order.
type RateCard struct {
	Currency          string
	TranslationRates  []RateEntry
	CertificationFees []RateEntry
	ApostilleFee      decimal.Decimal
	PhysicalCopyFee   decimal.Decimal
}

// DefaultRateCard returns the built-in menu prices.
func DefaultRateCard() RateCard {
	return RateCard{
		Currency: "usd",
		TranslationRates: []RateEntry{
			{Name: string(domain.TranslationTierStandard), Amount: decimal.NewFromInt(15)},
			{Name: string(domain.TranslationTierProfessional), Amount: decimal.NewFromInt(20)},
			{Name: string(domain.TranslationTierSpecialist), Amount: decimal.NewFromInt(25)},
		},
		CertificationFees: []RateEntry{
			{Name: string(domain.MenuCertificationNAATI), Amount: decimal.Zero},
			{Name: string(domain.MenuCertificationStandard), Amount: decimal.NewFromInt(5)},
		},
		ApostilleFee:    decimal.NewFromInt(10),
		PhysicalCopyFee: decimal.NewFromInt(5),
	}
}

// DefaultTranslationTier is the first translation rate on the card.
func (c RateCard) DefaultTranslationTier() domain.TranslationTier {
	if len(c.TranslationRates) == 0 {
		return domain.TranslationTierStandard
	}
	return domain.TranslationTier(c.TranslationRates[0].Name)
}

// DefaultCertification is the first certification fee on the card.
func (c RateCard) DefaultCertification() domain.MenuCertification {
	if len(c.CertificationFees) == 0 {
		return domain.MenuCertificationNAATI
	}
	return domain.MenuCertification(c.CertificationFees[0].Name)
}

// TranslationRate looks up the per-page rate for a tier.
func (c RateCard) TranslationRate(tier domain.TranslationTier) (decimal.Decimal, bool) {
	return lookup(c.TranslationRates, string(tier))
}

// CertificationFee looks up the flat fee for a menu certification.
func (c RateCard) CertificationFee(cert domain.MenuCertification) (decimal.Decimal, bool) {
	return lookup(c.CertificationFees, string(cert))
}

func lookup(entries []RateEntry, name string) (decimal.Decimal, bool) {
	for _, entry := range entries {
		if strings.EqualFold(entry.Name, strings.TrimSpace(name)) {
			return entry.Amount, true
		}
	}
	return decimal.Zero, false
}

type rateCardFile struct {
	Currency          string          `yaml:"currency"`
	TranslationRates  []rateEntryFile `yaml:"translationRates"`
	CertificationFees []rateEntryFile `yaml:"certificationFees"`
	ApostilleFee      string          `yaml:"apostilleFee"`
	PhysicalCopyFee   string          `yaml:"physicalCopyFee"`
}

type rateEntryFile struct {
	Name   string `yaml:"name"`
	Amount string `yaml:"amount"`
}

// LoadRateCardFile reads a YAML rate card. An empty path returns the default card.
func LoadRateCardFile(path string) (RateCard, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRateCard(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return RateCard{}, fmt.Errorf("pricing: open rate card: %w", err)
	}
	defer f.Close()
	return LoadRateCard(f)
}

// LoadRateCard decodes a YAML rate card. Amounts are decimal strings; omitted sections keep the defaults.
func LoadRateCard(r io.Reader) (RateCard, error) {
	var raw rateCardFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return RateCard{}, fmt.Errorf("pricing: decode rate card: %w", err)
	}

	card := DefaultRateCard()
	if c := strings.ToLower(strings.TrimSpace(raw.Currency)); c != "" {
		card.Currency = c
	}
	var err error
	if len(raw.TranslationRates) > 0 {
		if card.TranslationRates, err = parseEntries("translationRates", raw.TranslationRates); err != nil {
			return RateCard{}, err
		}
	}
	if len(raw.CertificationFees) > 0 {
		if card.CertificationFees, err = parseEntries("certificationFees", raw.CertificationFees); err != nil {
			return RateCard{}, err
		}
	}
	if raw.ApostilleFee != "" {
		if card.ApostilleFee, err = parseAmount("apostilleFee", raw.ApostilleFee); err != nil {
			return RateCard{}, err
		}
	}
	if raw.PhysicalCopyFee != "" {
		if card.PhysicalCopyFee, err = parseAmount("physicalCopyFee", raw.PhysicalCopyFee); err != nil {
			return RateCard{}, err
		}
	}
	return card, nil
}

func parseEntries(section string, raw []rateEntryFile) ([]RateEntry, error) {
	out := make([]RateEntry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, entry := range raw {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("pricing: %s[%d]: name is required", section, i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("pricing: %s: duplicate entry %q", section, name)
		}
		seen[key] = struct{}{}
		amount, err := parseAmount(fmt.Sprintf("%s[%s]", section, name), entry.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, RateEntry{Name: name, Amount: amount})
	}
	return out, nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: %s: invalid amount %q: %w", field, raw, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("pricing: %s: amount must not be negative", field)
	}
	return amount, nil
}
