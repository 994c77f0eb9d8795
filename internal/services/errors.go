package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable indicates languages or certifications could not be fetched. Retryable by the user.
	ErrCatalogUnavailable = errors.New("quote: catalog unavailable")
	// ErrNoCertificationsForPair indicates the catalog offers no certification for the chosen pair.
	ErrNoCertificationsForPair = errors.New("quote: no certifications available for the selected language pair")
	// ErrPricingUnavailable indicates the catalog declined to price the selection.
	ErrPricingUnavailable = errors.New("quote: pricing unavailable")
	// ErrValidationFailure indicates a local validation gate failed. It never reaches the network.
	ErrValidationFailure = errors.New("quote: validation failed")
	// ErrCheckoutFailure indicates the payment processor handoff failed for this attempt.
	ErrCheckoutFailure = errors.New("quote: checkout failed")
)

const (
	messageNoCertifications   = "No certifications available for the selected language pair"
	messagePricingUnavailable = "Pricing not available for the selected options"
	messageCheckoutFailed     = "Something went wrong while initiating payment."

	messageLanguagesFailed      = "Failed to load languages. Please try again."
	messageCertificationsFailed = "Failed to load certifications. Please try again."
	messagePricingFailed        = "Failed to calculate price. Please try again."
)

// ValidationError carries the user-visible message for a failed gate or rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidationFailure.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidationFailure.Error(), e.Field, e.Message)
}

// Is lets errors.Is match ErrValidationFailure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailure
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PricingUnavailableError carries the catalog's reason for declining to price a selection.
type PricingUnavailableError struct {
	Reason string
}

func (e *PricingUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPricingUnavailable.Error(), e.Message())
}

// Message is the user-facing text: the server reason verbatim, or a generic fallback.
func (e *PricingUnavailableError) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	return messagePricingUnavailable
}

// Is lets errors.Is match ErrPricingUnavailable.
func (e *PricingUnavailableError) Is(target error) bool {
	return target == ErrPricingUnavailable
}

// MessageKind classifies the single user-facing message carried by the wizard view.
type MessageKind string

const (
	MessageNone               MessageKind = ""
	MessageCatalogUnavailable MessageKind = "catalog_unavailable"
	MessageNoCertifications   MessageKind = "no_certifications"
	MessagePricingUnavailable MessageKind = "pricing_unavailable"
	MessageValidation         MessageKind = "validation"
	MessageCheckoutFailure    MessageKind = "checkout_failure"
)
