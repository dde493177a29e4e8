package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a payment recorded for an entity.
//
// A payment without RecordID is general and offsets the entity-wide balance.
// A general payment with RecordID offsets the residence as a whole.
// Any other kind offsets the single charge named by ReferenceID.
type Payment struct {
	ID          string
	EntityID    string
	EntityRole  EntityRole
	RecordID    string
	Kind        OffsetKind
	ReferenceID string
	Amount      decimal.Decimal
	CurrencyID  string
	AccountID   string
	Remarks     string
	CreatedAt   time.Time
}

// Validate checks the payment before any query runs.
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.EntityID) == "" {
		return ErrInvalidEntityID
	}
	if _, err := ParseEntityRole(string(p.EntityRole)); err != nil {
		return err
	}
	if strings.TrimSpace(p.CurrencyID) == "" {
		return ErrInvalidCurrencyID
	}
	if strings.TrimSpace(p.AccountID) == "" {
		return ErrInvalidAccountID
	}
	if err := validateIDs(p.EntityID, p.CurrencyID, p.AccountID, p.RecordID); err != nil {
		return err
	}
	if _, err := ParseOffsetKind(string(p.Kind)); err != nil {
		return err
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if len(p.Remarks) > MaxRemarksLength {
		return fmt.Errorf("%w: remarks exceed %d characters", ErrValidation, MaxRemarksLength)
	}

	if p.Kind == OffsetGeneral {
		if p.ReferenceID != "" {
			return fmt.Errorf("%w: general payment cannot reference a charge", ErrInvalidReference)
		}
		return nil
	}
	if p.RecordID == "" {
		return fmt.Errorf("%w: %s payment requires a record", ErrInvalidRecordID, p.Kind)
	}
	if p.ReferenceID == "" {
		return fmt.Errorf("%w: %s payment requires a reference", ErrInvalidReference, p.Kind)
	}
	if p.Kind.ReferencesRecord() && p.ReferenceID != p.RecordID {
		return fmt.Errorf("%w: %s payment must reference its residence", ErrInvalidReference, p.Kind)
	}
	if p.EntityRole == RoleSupplier && p.Kind != OffsetSale {
		return fmt.Errorf("%w: suppliers only accept general or sale payments", ErrInvalidPaymentKind)
	}
	return nil
}

// Category returns the source category the payment is stored under.
func (p *Payment) Category() Category {
	if p.Kind == OffsetGeneral {
		return CategoryPayment
	}
	return CategoryPaymentOffset
}

// Scope returns the aggregation scope the payment must not overpay.
func (p *Payment) Scope() Scope {
	return Scope{
		Role:       p.EntityRole,
		EntityID:   p.EntityID,
		CurrencyID: p.CurrencyID,
		RecordID:   p.RecordID,
	}
}

// Outstanding returns the amount the payment may cover, given the entries of its scope.
func (p *Payment) Outstanding(entries []LedgerEntry) decimal.Decimal {
	switch p.Kind {
	case OffsetGeneral, OffsetCancelPayment:
		// A cancelled sale no longer carries its own charge, so its payments settle the residence.
		charges, payments := Totals(entries)
		return charges.Sub(payments)
	}
	return SubBalance(entries, p.Kind.Line(), p.ReferenceID)
}
