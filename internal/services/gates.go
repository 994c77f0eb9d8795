package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/checkout/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the local-part@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.ToLower(strings.TrimSpace(email)))
}

// chooseServiceGate checks whether the first stage may be left. It is a pure function of its inputs.
func chooseServiceGate(st *QuoteState, total decimal.Decimal) *ValidationError {
	pair := st.Pair()
	switch {
	case !pair.Complete():
		return invalid("languages", "Please select both a source and a target language")
	case !pair.Valid():
		return invalid("languages", "Source and target languages must be different")
	case st.Certification() == "":
		return invalid("certification", "Please select a certification")
	case st.Email() == "":
		return invalid("email", "Please enter your email address")
	case !ValidEmail(st.Email()):
		return invalid("email", "Please enter a valid email address")
	case !total.IsPositive():
		return invalid("price", "A price is required before continuing")
	}
	return nil
}

// selectOptionsGate checks whether the options stage may be left.
func selectOptionsGate(st *QuoteState) *ValidationError {
	if st.Services().PhysicalCopy && !st.Address().HasStreet() {
		return invalid("address.street", "Please enter a delivery street address for the physical copy")
	}
	return nil
}

// gateFor returns the first failing gate between the first stage and stage.
func gateFor(st *QuoteState, total decimal.Decimal, stage domain.Stage) *ValidationError {
	if err := chooseServiceGate(st, total); err != nil {
		return err
	}
	if stage.Index() >= domain.StageSelectOptions.Index() {
		if err := selectOptionsGate(st); err != nil {
			return err
		}
	}
	return nil
}
