package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrCountedClosingRequired = errors.New("counted closing amount is required")
	ErrInvalidField           = errors.New("invalid pricing field")
	ErrInvalidSessionID       = errors.New("invalid session ID")
	ErrNotesTooLong           = errors.New("closing notes too long")
	ErrAmountTooLarge         = errors.New("amount exceeds maximum allowed")
)

// Validation constants
const (
	MaxSessionIDLength = 64
	MaxNotesLength     = 500
	MaxAmount          = "1000000000" // 1 billion
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateCountedClosing enforces the "value required" rule for the amount the
// operator counted and returns it parsed. Input without any ASCII digit is
// missing, matching what the amount parser reads.
func ValidateCountedClosing(raw string) (decimal.Decimal, error) {
	if !strings.ContainsAny(raw, "0123456789") {
		return decimal.Zero, ErrCountedClosingRequired
	}

	amount := ParseLocalizedAmount(raw)
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// ValidateAmount rejects amounts beyond MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	maxAmount := decimal.RequireFromString(MaxAmount)
	if amount.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}
	return nil
}

// ValidatePricingField checks that field can drive a recompute.
func ValidatePricingField(field PricingField) error {
	if field == PricingFieldMargin {
		return fmt.Errorf("%w: margin is read-only", ErrInvalidField)
	}
	if !field.IsEditable() {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

// ValidateSessionID validates a backend session identifier before it is put in
// a URL or a cache key.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidSessionID)
	}

	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("%w: ID exceeds %d characters", ErrInvalidSessionID, MaxSessionIDLength)
	}

	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidSessionID)
	}

	return nil
}

// ValidateNotes validates the free-text closing notes.
func ValidateNotes(notes string) error {
	if n := len([]rune(notes)); n > MaxNotesLength {
		return fmt.Errorf("%w: %d characters exceeds limit of %d", ErrNotesTooLong, n, MaxNotesLength)
	}
	return nil
}
