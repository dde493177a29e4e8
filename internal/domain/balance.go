package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OutstandingBalance is the live, derived balance of one entity in one currency.
// Balance is always TotalCharges minus TotalPayments; it is never persisted.
type OutstandingBalance struct {
	EntityID      string
	EntityRole    EntityRole
	DisplayName   string
	CurrencyID    string
	TotalCharges  decimal.Decimal
	TotalPayments decimal.Decimal
	Balance       decimal.Decimal
}

// NewOutstandingBalance sums entries into a balance.
func NewOutstandingBalance(role EntityRole, entityID, currencyID string, entries []LedgerEntry) OutstandingBalance {
	charges, payments := Totals(entries)
	return OutstandingBalance{
		EntityID:      entityID,
		EntityRole:    role,
		CurrencyID:    currencyID,
		TotalCharges:  charges,
		TotalPayments: payments,
		Balance:       charges.Sub(payments),
	}
}

// EntityLedger is the chronological ledger of one entity with its balance.
type EntityLedger struct {
	Balance OutstandingBalance
	Entries []LedgerEntry
}

// OutstandingPolicy selects which balances count as outstanding.
type OutstandingPolicy string

const (
	// OutstandingNonZero keeps every unsettled balance, refunds owed included.
	OutstandingNonZero OutstandingPolicy = "nonzero"
	// OutstandingPositive keeps only money owed to the agency.
	OutstandingPositive OutstandingPolicy = "positive"
)

// ParseOutstandingPolicy validates a configured policy name.
func ParseOutstandingPolicy(s string) (OutstandingPolicy, error) {
	switch p := OutstandingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OutstandingNonZero, OutstandingPositive:
		return p, nil
	case "":
		return OutstandingNonZero, nil
	}
	return "", fmt.Errorf("%w: unknown outstanding policy %q", ErrValidation, s)
}

// Includes reports whether balance counts as outstanding under the policy.
func (p OutstandingPolicy) Includes(balance decimal.Decimal) bool {
	if p == OutstandingPositive {
		return balance.IsPositive()
	}
	return !balance.IsZero()
}

// Scope bounds one aggregation.
type Scope struct {
	Role EntityRole
	// EntityID empty means every entity of Role.
	EntityID   string
	CurrencyID string
	// RecordID narrows the scope to one residence.
	RecordID string
	// SubParty narrows the scope to one passenger.
	SubParty string
}

// Validate rejects scopes the sources cannot be asked for.
func (s Scope) Validate() error {
	if _, err := ParseEntityRole(string(s.Role)); err != nil {
		return err
	}
	if strings.TrimSpace(s.CurrencyID) == "" {
		return ErrInvalidCurrencyID
	}
	if s.RecordID != "" && s.EntityID == "" {
		return ErrInvalidEntityID
	}
	return validateIDs(s.EntityID, s.CurrencyID, s.RecordID)
}

// Batch reports whether the scope covers every entity of the role.
func (s Scope) Batch() bool {
	return s.EntityID == ""
}
