package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Caller errors, rejected before any query runs.
	ErrValidation         = errors.New("validation failed")
	ErrInvalidEntityID    = fmt.Errorf("%w: entity id is required", ErrValidation)
	ErrInvalidCurrencyID  = fmt.Errorf("%w: currency id is required", ErrValidation)
	ErrInvalidRecordID    = fmt.Errorf("%w: record id is required", ErrValidation)
	ErrInvalidAccountID   = fmt.Errorf("%w: account id is required", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidRole        = fmt.Errorf("%w: invalid entity role", ErrValidation)
	ErrInvalidPaymentKind = fmt.Errorf("%w: invalid payment kind", ErrValidation)
	ErrInvalidReference   = fmt.Errorf("%w: invalid payment reference", ErrValidation)
	ErrInvalidRecord      = errors.New("invalid transaction record")

	// Lookup errors.
	ErrNotFound         = errors.New("not found")
	ErrEntityNotFound   = fmt.Errorf("entity %w", ErrNotFound)
	ErrCurrencyNotFound = fmt.Errorf("currency %w", ErrNotFound)
	ErrRecordNotFound   = fmt.Errorf("record %w", ErrNotFound)

	// ErrFeatureNotInstalled marks an optional source whose table is absent.
	// Sources report it, the aggregator treats it as a zero contribution.
	ErrFeatureNotInstalled = errors.New("optional feature not installed")

	ErrOverpayment        = errors.New("payment exceeds outstanding balance")
	ErrPartialAggregation = errors.New("aggregation failed")
	ErrForbidden          = errors.New("forbidden")
)

// OverpaymentError is returned when a payment is larger than the live outstanding balance.
type OverpaymentError struct {
	Requested   decimal.Decimal
	Outstanding decimal.Decimal
	CurrencyID  string
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds outstanding balance %s (currency %s)",
		e.Requested.StringFixed(2), e.Outstanding.StringFixed(2), e.CurrencyID)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// AggregationError names the transaction source that failed an aggregation.
type AggregationError struct {
	Source string
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed: source %s: %v", e.Source, e.Err)
}

func (e *AggregationError) Unwrap() []error { return []error{ErrPartialAggregation, e.Err} }

// Code is a stable, client-facing error identifier.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeNotFound          Code = "not_found"
	CodeOverpayment       Code = "overpayment"
	CodeAggregationFailed Code = "aggregation_failed"
	CodeForbidden         Code = "forbidden"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal_error"
)

// ErrorCode classifies err into one of the stable codes.
// A failed aggregation wins over whatever its source wrapped: stored data is never a caller error.
func ErrorCode(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialAggregation):
		return CodeAggregationFailed
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrOverpayment):
		return CodeOverpayment
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInsufficientRole):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return CodeUnauthorized
	}
	return CodeInternal
}
