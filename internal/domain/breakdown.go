package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LineBalance is the outstanding sub-balance of one breakdown line.
type LineBalance struct {
	Line        Line
	CurrencyID  string
	Charges     decimal.Decimal
	Payments    decimal.Decimal
	Outstanding decimal.Decimal
}

// CurrencyTotal is the total outstanding of a breakdown in one currency.
type CurrencyTotal struct {
	CurrencyID  string
	Charges     decimal.Decimal
	Payments    decimal.Decimal
	Outstanding decimal.Decimal
}

// UnifiedBreakdown itemizes the outstanding amount of one residence.
// Totals are kept per currency since the lines of one residence may use several.
type UnifiedBreakdown struct {
	RecordID      string
	EntityID      string
	EntityRole    EntityRole
	PassengerName string
	Lines         []LineBalance
	Totals        []CurrencyTotal
}

// TotalOutstanding returns the outstanding total in currencyID.
func (b UnifiedBreakdown) TotalOutstanding(currencyID string) decimal.Decimal {
	for _, t := range b.Totals {
		if t.CurrencyID == currencyID {
			return t.Outstanding
		}
	}
	return decimal.Zero
}

// BuildLines groups entries of one currency into breakdown lines.
// Every charge line is reported; the general line only when residence-wide payments exist.
func BuildLines(currencyID string, entries []LedgerEntry) ([]LineBalance, CurrencyTotal) {
	byLine := make(map[Line]*LineBalance, len(BreakdownLines)+1)
	for _, e := range entries {
		lb, ok := byLine[e.Line]
		if !ok {
			lb = &LineBalance{Line: e.Line, CurrencyID: currencyID, Charges: decimal.Zero, Payments: decimal.Zero}
			byLine[e.Line] = lb
		}
		if e.Direction == DirectionDebit {
			lb.Charges = lb.Charges.Add(e.Amount)
		} else {
			lb.Payments = lb.Payments.Add(e.Amount)
		}
	}

	order := BreakdownLines
	if _, ok := byLine[LineGeneral]; ok {
		order = append(append([]Line{}, BreakdownLines...), LineGeneral)
	}

	lines := make([]LineBalance, 0, len(order))
	total := CurrencyTotal{CurrencyID: currencyID, Charges: decimal.Zero, Payments: decimal.Zero}
	for _, l := range order {
		lb, ok := byLine[l]
		if !ok {
			lb = &LineBalance{Line: l, CurrencyID: currencyID, Charges: decimal.Zero, Payments: decimal.Zero}
		}
		lb.Outstanding = lb.Charges.Sub(lb.Payments)
		total.Charges = total.Charges.Add(lb.Charges)
		total.Payments = total.Payments.Add(lb.Payments)
		lines = append(lines, *lb)
	}
	total.Outstanding = total.Charges.Sub(total.Payments)
	return lines, total
}

// MonthlyTotal is the activity of one calendar month.
type MonthlyTotal struct {
	Month    time.Time
	Charges  decimal.Decimal
	Payments decimal.Decimal
	Net      decimal.Decimal
}

// BuildTrend buckets entries into the trailing months calendar months ending with the month of now.
// Entries outside the window are ignored.
func BuildTrend(entries []LedgerEntry, now time.Time, months int) []MonthlyTotal {
	if months <= 0 {
		return nil
	}
	now = now.UTC()
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, -(months - 1), 0)

	out := make([]MonthlyTotal, months)
	for i := range out {
		out[i] = MonthlyTotal{Month: first.AddDate(0, i, 0), Charges: decimal.Zero, Payments: decimal.Zero}
	}

	for _, e := range entries {
		at := e.OccurredAt.UTC()
		idx := (at.Year()-first.Year())*12 + int(at.Month()) - int(first.Month())
		if idx < 0 || idx >= months {
			continue
		}
		if e.Direction == DirectionDebit {
			out[idx].Charges = out[idx].Charges.Add(e.Amount)
		} else {
			out[idx].Payments = out[idx].Payments.Add(e.Amount)
		}
	}
	for i := range out {
		out[i].Net = out[i].Charges.Sub(out[i].Payments)
	}
	return out
}

// SortEntries orders entries chronologically for display.
// Ties break on category and source id so repeated reads render identically.
func SortEntries(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.Line < b.Line
	})
}
