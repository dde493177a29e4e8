package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one raw charge or payment row mapped from its source table.
// Amount is always a non-negative magnitude; the sign comes from Category.
type TransactionRecord struct {
	// SourceID is the primary key of the row in its source table.
	SourceID string
	Category Category
	// Statutory is set for CategoryStatutory.
	Statutory StatutoryKind
	// Offset is set for CategoryPaymentOffset.
	Offset OffsetKind

	EntityID   string
	EntityRole EntityRole
	CurrencyID string

	Amount decimal.Decimal
	// FineAmount is the always-contributing fine attached to an insurance charge.
	FineAmount decimal.Decimal
	// Unpriced marks a statutory charge with no configured amount.
	Unpriced bool

	OccurredAt    time.Time
	SourceStatus  SourceStatus
	InclusionFlag *bool

	// RecordID is the residence the row belongs to, empty for general payments.
	RecordID string
	// ReferenceID is the charge a payment offset was recorded against.
	ReferenceID string

	Identification    string
	CounterpartyLabel string
}

// Included reports whether the record is flagged as already bundled into the sale price.
func (r TransactionRecord) Included() bool {
	return r.InclusionFlag != nil && *r.InclusionFlag
}

// Line returns the breakdown line the record posts to.
func (r TransactionRecord) Line() Line {
	switch r.Category {
	case CategorySale:
		return LineSale
	case CategoryFine:
		return LineFine
	case CategoryCancellation:
		return LineCancellation
	case CategoryCustomCharge:
		return LineCustom
	case CategoryStatutory:
		if r.Statutory == StatutoryInsurance {
			return LineInsurance
		}
		return LineTawjeeh
	case CategoryPaymentOffset:
		return r.Offset.Line()
	}
	return LineGeneral
}

// Ref returns the identifier a payment offset uses to point at this record.
// Sale and statutory charges are referenced by their residence, the others by their own row.
func (r TransactionRecord) Ref() string {
	switch r.Category {
	case CategorySale, CategoryStatutory:
		return r.RecordID
	case CategoryPaymentOffset:
		return r.ReferenceID
	case CategoryPayment:
		return ""
	}
	return r.SourceID
}

// Entity is a customer, supplier or affiliate.
type Entity struct {
	ID   string
	Role EntityRole
	Name string
}

// Currency is a ledger currency.
type Currency struct {
	ID   string
	Code string
	Name string
}

// Residence is the residence-permit sale that charges hang off.
type Residence struct {
	ID             string
	CustomerID     string
	AffiliateID    string
	SupplierID     string
	PassengerName  string
	SaleCurrencyID string
	CostCurrencyID string
	Status         SourceStatus
	Settled        bool
	CreatedAt      time.Time
}

// BillingParty returns the entity billed for the residence.
// A referring affiliate takes the bill instead of the customer.
func (r *Residence) BillingParty() (EntityRole, string) {
	if r.AffiliateID != "" {
		return RoleAffiliate, r.AffiliateID
	}
	return RoleCustomer, r.CustomerID
}

// Capabilities lists optional features detected once at startup.
type Capabilities struct {
	CustomCharges bool
}
