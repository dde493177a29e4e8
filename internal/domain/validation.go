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
	ErrAmountTooLarge  = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrAmountTooSmall  = fmt.Errorf("%w: amount below minimum allowed", ErrValidation)
	ErrInvalidIDFormat = fmt.Errorf("%w: invalid ID format", ErrValidation)
	ErrInvalidSearch   = errors.New("invalid search term")
	errTooManyDecimals = fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
)

// Validation constants
const (
	MaxIDLength      = 64
	MaxRemarksLength = 500
	MaxSearchLength  = 100
	MaxPaymentAmount = "1000000000" // 1 billion
	MinPaymentAmount = "0.01"
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateID validates a record, entity, currency or account identifier
func ValidateID(id string) error {
	if id == "" || len(id) > MaxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIDFormat, id)
	}
	return nil
}

// validateIDs checks every non-empty id.
func validateIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAmount validates a payment amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinPaymentAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinPaymentAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxPaymentAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxPaymentAmount)
	}

	if !amount.Equal(amount.Truncate(2)) {
		return errTooManyDecimals
	}

	return nil
}

// NormalizeSearch trims and validates a name search term
func NormalizeSearch(q string) (string, error) {
	q = strings.TrimSpace(q)
	if len(q) > MaxSearchLength {
		return "", fmt.Errorf("%w: %w: longer than %d characters", ErrValidation, ErrInvalidSearch, MaxSearchLength)
	}
	return strings.ToLower(q), nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
