package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the ledger side of an entry.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Line is a charge line of a residence breakdown.
type Line string

const (
	LineSale         Line = "sale"
	LineFine         Line = "fine"
	LineTawjeeh      Line = "tawjeeh"
	LineInsurance    Line = "insurance"
	LineCancellation Line = "cancellation"
	LineCustom       Line = "custom"
	LineGeneral      Line = "general"
)

// BreakdownLines is the display order of breakdown lines.
var BreakdownLines = []Line{
	LineSale, LineFine, LineTawjeeh, LineInsurance, LineCancellation, LineCustom,
}

// LedgerEntry is one resolved transaction line.
type LedgerEntry struct {
	SourceID   string
	RecordID   string
	Ref        string
	Category   Category
	Line       Line
	Direction  Direction
	Amount     decimal.Decimal
	CurrencyID string
	OccurredAt time.Time

	// Identification is a human label such as the passenger or charge name.
	Identification    string
	CounterpartyLabel string
	// Matched is false for a payment offset whose charge is not in scope.
	Matched bool
}

// Signed returns the amount with debits positive and credits negative.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == DirectionCredit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Totals sums entries into charges and payments.
func Totals(entries []LedgerEntry) (charges, payments decimal.Decimal) {
	charges, payments = decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Direction {
		case DirectionDebit:
			charges = charges.Add(e.Amount)
		case DirectionCredit:
			payments = payments.Add(e.Amount)
		}
	}
	return charges, payments
}

// MatchOffsets flags each payment offset with whether its referenced charge is among entries.
// Unmatched offsets still count as credits.
func MatchOffsets(entries []LedgerEntry) {
	charges := make(map[lineRef]struct{}, len(entries))
	for _, e := range entries {
		if e.Direction == DirectionDebit {
			charges[lineRef{e.Line, e.Ref}] = struct{}{}
		}
	}
	for i := range entries {
		e := &entries[i]
		if e.Category != CategoryPaymentOffset {
			e.Matched = true
			continue
		}
		_, e.Matched = charges[lineRef{e.Line, e.Ref}]
	}
}

// SubBalance returns the outstanding amount of one charge, net of the offsets recorded against it.
func SubBalance(entries []LedgerEntry, line Line, ref string) decimal.Decimal {
	out := decimal.Zero
	for _, e := range entries {
		if e.Line == line && e.Ref == ref {
			out = out.Add(e.Signed())
		}
	}
	return out
}

type lineRef struct {
	line Line
	ref  string
}
