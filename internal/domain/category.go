package domain

import "fmt"

// Category is the kind of transaction a record comes from.
type Category string

const (
	CategorySale          Category = "sale"
	CategoryFine          Category = "fine"
	CategoryCancellation  Category = "cancellation"
	CategoryStatutory     Category = "statutory"
	CategoryCustomCharge  Category = "custom_charge"
	CategoryPayment       Category = "payment"
	CategoryPaymentOffset Category = "payment_offset"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySale, CategoryFine, CategoryCancellation, CategoryStatutory,
		CategoryCustomCharge, CategoryPayment, CategoryPaymentOffset:
		return true
	}
	return false
}

// Direction returns the ledger side a category posts to.
// Charges debit the entity, payments credit it.
func (c Category) Direction() Direction {
	switch c {
	case CategorySale, CategoryFine, CategoryCancellation, CategoryStatutory, CategoryCustomCharge:
		return DirectionDebit
	case CategoryPayment, CategoryPaymentOffset:
		return DirectionCredit
	}
	return ""
}

// StatutoryKind identifies a regulatory fee attached to a residence.
type StatutoryKind string

const (
	StatutoryTawjeeh   StatutoryKind = "tawjeeh"
	StatutoryInsurance StatutoryKind = "insurance"
)

// Valid reports whether k is a known statutory kind.
func (k StatutoryKind) Valid() bool {
	return k == StatutoryTawjeeh || k == StatutoryInsurance
}

// OffsetKind is the charge a payment was recorded against.
// The empty kind is a general, entity-wide payment.
type OffsetKind string

const (
	OffsetGeneral       OffsetKind = ""
	OffsetSale          OffsetKind = "sale"
	OffsetFine          OffsetKind = "fine"
	OffsetTawjeeh       OffsetKind = "tawjeeh"
	OffsetInsurance     OffsetKind = "insurance"
	OffsetCancellation  OffsetKind = "cancellation"
	OffsetCustom        OffsetKind = "custom"
	OffsetCancelPayment OffsetKind = "cancel_payment"
)

// ParseOffsetKind converts a stored or requested kind into an OffsetKind.
func ParseOffsetKind(s string) (OffsetKind, error) {
	k := OffsetKind(s)
	switch k {
	case OffsetGeneral, OffsetSale, OffsetFine, OffsetTawjeeh, OffsetInsurance,
		OffsetCancellation, OffsetCustom, OffsetCancelPayment:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown payment kind %q", ErrInvalidPaymentKind, s)
}

// Line returns the breakdown line a payment of this kind offsets.
func (k OffsetKind) Line() Line {
	switch k {
	case OffsetSale, OffsetCancelPayment:
		return LineSale
	case OffsetFine:
		return LineFine
	case OffsetTawjeeh:
		return LineTawjeeh
	case OffsetInsurance:
		return LineInsurance
	case OffsetCancellation:
		return LineCancellation
	case OffsetCustom:
		return LineCustom
	}
	return LineGeneral
}

// ReferencesRecord reports whether offsets of this kind point at the residence itself
// rather than at a charge row.
func (k OffsetKind) ReferencesRecord() bool {
	switch k {
	case OffsetSale, OffsetCancelPayment, OffsetTawjeeh, OffsetInsurance:
		return true
	}
	return false
}

// EntityRole is the kind of party a balance is computed for.
type EntityRole string

const (
	RoleCustomer  EntityRole = "customer"
	RoleSupplier  EntityRole = "supplier"
	RoleAffiliate EntityRole = "affiliate"
)

// ParseEntityRole validates a role name.
func ParseEntityRole(s string) (EntityRole, error) {
	r := EntityRole(s)
	switch r {
	case RoleCustomer, RoleSupplier, RoleAffiliate:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Bills reports whether the role is charged for residence fees beyond the sale itself.
// Suppliers are only owed the net cost of a residence.
func (r EntityRole) Bills() bool {
	return r == RoleCustomer || r == RoleAffiliate
}

// SourceStatus is the status of the parent sale of a record.
type SourceStatus string

const (
	StatusActive            SourceStatus = "active"
	StatusCancelled         SourceStatus = "cancelled"
	StatusCancelledReplaced SourceStatus = "cancelled_replaced"
)

// Cancelled reports whether the sale no longer accrues its own charge.
func (s SourceStatus) Cancelled() bool {
	return s == StatusCancelled || s == StatusCancelledReplaced
}
