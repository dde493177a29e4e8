package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Fallback statutory fees used when a charge carries no configured amount.
var (
	DefaultTawjeehAmount   = decimal.NewFromInt(150)
	DefaultInsuranceAmount = decimal.NewFromInt(126)
)

// ChargePolicy decides how much each record contributes to a ledger.
// It is stateless apart from the statutory fallbacks.
type ChargePolicy struct {
	TawjeehDefault   decimal.Decimal
	InsuranceDefault decimal.Decimal
}

// NewChargePolicy returns a policy with the given fallbacks, zero values meaning the business defaults.
func NewChargePolicy(tawjeeh, insurance decimal.Decimal) ChargePolicy {
	if tawjeeh.IsZero() {
		tawjeeh = DefaultTawjeehAmount
	}
	if insurance.IsZero() {
		insurance = DefaultInsuranceAmount
	}
	return ChargePolicy{TawjeehDefault: tawjeeh, InsuranceDefault: insurance}
}

// Decision is the outcome of applying the policy to one record.
// Redirected, when valid, replaces the record's own amount.
type Decision struct {
	Contributes bool
	Redirected  decimal.NullDecimal
}

// Decide applies the business rules to rec.
func (p ChargePolicy) Decide(rec TransactionRecord) Decision {
	switch rec.Category {
	case CategorySale:
		// A cancelled sale stops accruing; its cancellation charge and payments still count.
		return Decision{Contributes: !rec.SourceStatus.Cancelled()}

	case CategoryStatutory:
		return p.decideStatutory(rec)
	}
	return Decision{Contributes: true}
}

func (p ChargePolicy) decideStatutory(rec TransactionRecord) Decision {
	base := rec.Amount
	if rec.Unpriced {
		base = p.TawjeehDefault
		if rec.Statutory == StatutoryInsurance {
			base = p.InsuranceDefault
		}
	}

	switch rec.Statutory {
	case StatutoryTawjeeh:
		if rec.Included() {
			return Decision{}
		}
		return Decision{Contributes: true, Redirected: decimal.NewNullDecimal(base)}

	case StatutoryInsurance:
		if rec.Included() {
			if !rec.FineAmount.IsPositive() {
				return Decision{}
			}
			return Decision{Contributes: true, Redirected: decimal.NewNullDecimal(rec.FineAmount)}
		}
		return Decision{Contributes: true, Redirected: decimal.NewNullDecimal(base.Add(rec.FineAmount))}
	}
	return Decision{}
}

// Resolve validates rec and turns it into a ledger entry.
// Non-contributing records resolve to zero-amount entries, they are never dropped.
func (p ChargePolicy) Resolve(rec TransactionRecord) (LedgerEntry, error) {
	if err := validateRecord(rec); err != nil {
		return LedgerEntry{}, err
	}

	amount := decimal.Zero
	if d := p.Decide(rec); d.Contributes {
		amount = rec.Amount
		if d.Redirected.Valid {
			amount = d.Redirected.Decimal
		}
	}

	return LedgerEntry{
		SourceID:          rec.SourceID,
		RecordID:          rec.RecordID,
		Ref:               rec.Ref(),
		Category:          rec.Category,
		Line:              rec.Line(),
		Direction:         rec.Category.Direction(),
		Amount:            amount,
		CurrencyID:        rec.CurrencyID,
		OccurredAt:        rec.OccurredAt,
		Identification:    rec.Identification,
		CounterpartyLabel: rec.CounterpartyLabel,
		Matched:           true,
	}, nil
}

func validateRecord(rec TransactionRecord) error {
	if !rec.Category.Valid() {
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidRecord, rec.SourceID, rec.Category)
	}
	if rec.Category == CategoryStatutory && !rec.Statutory.Valid() {
		return fmt.Errorf("%w: %s: unknown statutory kind %q", ErrInvalidRecord, rec.SourceID, rec.Statutory)
	}
	if rec.Category == CategoryPaymentOffset && rec.Offset == OffsetGeneral {
		return fmt.Errorf("%w: %s: payment offset without kind", ErrInvalidRecord, rec.SourceID)
	}
	if rec.CurrencyID == "" {
		return fmt.Errorf("%w: %s: missing currency", ErrInvalidRecord, rec.SourceID)
	}
	if rec.Amount.IsNegative() || rec.FineAmount.IsNegative() {
		return fmt.Errorf("%w: %s: negative amount", ErrInvalidRecord, rec.SourceID)
	}
	return nil
}
