package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
)

// SnapshotSchemaVersion is written with every persisted snapshot. Version 0 is the unversioned layout
// holding only service, languages, priority, pages and email.
const SnapshotSchemaVersion = 1

// Snapshot is the persisted form of a QuoteState. Resolved catalog values are not persisted; they are
// fetched again after rehydration.
type Snapshot struct {
	SchemaVersion     int                       `json:"schemaVersion"`
	Service           string                    `json:"service"`
	FromLang          string                    `json:"fromLang"`
	ToLang            string                    `json:"toLang"`
	Priority          string                    `json:"priority"`
	NumPages          string                    `json:"numPages"`
	Email             string                    `json:"email"`
	Certification     string                    `json:"certification,omitempty"`
	TranslationTier   string                    `json:"translationTier,omitempty"`
	MenuCertification string                    `json:"menuCertification,omitempty"`
	Services          domain.AdditionalServices `json:"additionalServices"`
	Address           domain.DeliveryAddress    `json:"address"`
	Documents         []string                  `json:"documents,omitempty"`
	Stage             string                    `json:"stage,omitempty"`
}

// Snapshot captures the persisted subset of the state.
func (s *QuoteState) Snapshot() Snapshot {
	cert := s.certification
	if cert == "" {
		cert = s.preferredCertification
	}
	return Snapshot{
		SchemaVersion:     SnapshotSchemaVersion,
		Service:           string(s.tier),
		FromLang:          s.pair.From,
		ToLang:            s.pair.To,
		Priority:          string(s.priority),
		NumPages:          strconv.Itoa(s.pages),
		Email:             s.email,
		Certification:     cert,
		TranslationTier:   string(s.translationTier),
		MenuCertification: string(s.menuCertification),
		Services:          s.services,
		Address:           s.address,
		Documents:         s.Documents(),
		Stage:             string(s.stage),
	}
}

// DecodeSnapshot parses a persisted payload, rejecting corrupt data and unknown schema versions.
func DecodeSnapshot(payload []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SchemaVersion < 0 || snap.SchemaVersion > SnapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported schema version %d", snap.SchemaVersion)
	}
	return snap, nil
}

// RestoreQuoteState rebuilds a state from a snapshot. Unknown enum values fall back to defaults.
func RestoreQuoteState(snap Snapshot, card pricing.RateCard) QuoteState {
	st := NewQuoteState(card)
	if tier, ok := domain.ParseServiceTier(snap.Service); ok {
		st.tier = tier
	}
	st.pair = domain.LanguagePair{From: snap.FromLang, To: snap.ToLang}
	if priority, ok := domain.ParsePriority(snap.Priority); ok {
		st.priority = priority
	}
	st.pages = pricing.NormalizePages(snap.NumPages)
	st.SetEmail(snap.Email)
	st.preferredCertification = snap.Certification
	st.SetDocuments(snap.Documents)

	if tier := domain.TranslationTier(snap.TranslationTier); tier != "" {
		if _, ok := card.TranslationRate(tier); ok {
			st.translationTier = tier
		}
	}
	if cert := domain.MenuCertification(snap.MenuCertification); cert != "" {
		if _, ok := card.CertificationFee(cert); ok {
			st.menuCertification = cert
		}
	}
	st.services = snap.Services
	st.SetAddress(snap.Address)
	st.stage = domain.ParseStage(snap.Stage)
	return st
}
