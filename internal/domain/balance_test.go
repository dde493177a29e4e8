package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func entry(line Line, cat Category, ref, amount string, at time.Time) LedgerEntry {
	return LedgerEntry{
		SourceID:   ref + "-" + string(cat),
		Ref:        ref,
		Category:   cat,
		Line:       line,
		Direction:  cat.Direction(),
		Amount:     dec(amount),
		CurrencyID: "AED",
		OccurredAt: at,
	}
}

func TestOutstandingBalanceIdentity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		entry(LineSale, CategorySale, "r1", "1000", now),
		entry(LineFine, CategoryFine, "f1", "75.50", now),
		entry(LineGeneral, CategoryPayment, "", "400", now),
		entry(LineFine, CategoryPaymentOffset, "f1", "25.25", now),
	}

	b := NewOutstandingBalance(RoleCustomer, "c1", "AED", entries)
	if !b.TotalCharges.Equal(dec("1075.50")) || !b.TotalPayments.Equal(dec("425.25")) {
		t.Fatalf("unexpected totals: %+v", b)
	}
	if !b.Balance.Equal(b.TotalCharges.Sub(b.TotalPayments)) {
		t.Fatalf("balance identity violated: %+v", b)
	}
}

func TestOutstandingPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy  OutstandingPolicy
		balance string
		want    bool
	}{
		{OutstandingNonZero, "10", true},
		{OutstandingNonZero, "-10", true},
		{OutstandingNonZero, "0", false},
		{OutstandingPositive, "10", true},
		{OutstandingPositive, "-10", false},
		{OutstandingPositive, "0", false},
	}
	for _, tt := range tests {
		if got := tt.policy.Includes(dec(tt.balance)); got != tt.want {
			t.Fatalf("%s(%s): expected %v, got %v", tt.policy, tt.balance, tt.want, got)
		}
	}

	p, err := ParseOutstandingPolicy("")
	if err != nil || p != OutstandingNonZero {
		t.Fatalf("expected nonzero default, got %q %v", p, err)
	}
	if _, err := ParseOutstandingPolicy("sometimes"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScopeValidate(t *testing.T) {
	t.Parallel()

	if err := (Scope{Role: RoleCustomer, CurrencyID: "AED"}).Validate(); err != nil {
		t.Fatalf("expected batch scope to be valid, got %v", err)
	}
	if err := (Scope{Role: RoleCustomer}).Validate(); !errors.Is(err, ErrInvalidCurrencyID) {
		t.Fatalf("expected ErrInvalidCurrencyID, got %v", err)
	}
	if err := (Scope{Role: "vendor", CurrencyID: "AED"}).Validate(); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := (Scope{Role: RoleCustomer, CurrencyID: "AED", RecordID: "r1"}).Validate(); !errors.Is(err, ErrInvalidEntityID) {
		t.Fatalf("expected ErrInvalidEntityID, got %v", err)
	}
	if err := (Scope{Role: RoleCustomer, EntityID: "c1", CurrencyID: "AED'"}).Validate(); !errors.Is(err, ErrInvalidIDFormat) {
		t.Fatalf("expected ErrInvalidIDFormat, got %v", err)
	}
	if err := (Scope{Role: RoleCustomer, EntityID: strings.Repeat("c", MaxIDLength+1), CurrencyID: "AED"}).Validate(); !errors.Is(err, ErrInvalidIDFormat) {
		t.Fatalf("expected ErrInvalidIDFormat for oversized id, got %v", err)
	}
}

func TestMatchOffsets(t *testing.T) {
	t.Parallel()

	now := time.Now()
	entries := []LedgerEntry{
		entry(LineFine, CategoryFine, "f1", "100", now),
		entry(LineFine, CategoryPaymentOffset, "f1", "40", now),
		entry(LineFine, CategoryPaymentOffset, "f2", "10", now),
		entry(LineGeneral, CategoryPayment, "", "5", now),
	}
	MatchOffsets(entries)

	if !entries[1].Matched {
		t.Fatalf("expected offset against f1 to match")
	}
	if entries[2].Matched {
		t.Fatalf("expected offset against missing fine to be unmatched")
	}
	if !entries[3].Matched {
		t.Fatalf("general payments are always matched")
	}

	if got := SubBalance(entries, LineFine, "f1"); !got.Equal(dec("60")) {
		t.Fatalf("expected f1 sub-balance 60, got %s", got)
	}
	// unmatched offsets still reduce the balance
	if _, payments := Totals(entries); !payments.Equal(dec("55")) {
		t.Fatalf("expected payments 55, got %s", payments)
	}
}

func TestBuildLines(t *testing.T) {
	t.Parallel()

	now := time.Now()
	entries := []LedgerEntry{
		entry(LineSale, CategorySale, "r1", "1000", now),
		entry(LineTawjeeh, CategoryStatutory, "r1", "150", now),
		entry(LineTawjeeh, CategoryPaymentOffset, "r1", "150", now),
		entry(LineGeneral, CategoryPayment, "", "300", now),
	}

	lines, total := BuildLines("AED", entries)
	if len(lines) != len(BreakdownLines)+1 {
		t.Fatalf("expected every charge line plus general, got %d", len(lines))
	}
	if lines[0].Line != LineSale || !lines[0].Outstanding.Equal(dec("1000")) {
		t.Fatalf("unexpected sale line: %+v", lines[0])
	}
	if lines[2].Line != LineTawjeeh || !lines[2].Outstanding.IsZero() {
		t.Fatalf("unexpected tawjeeh line: %+v", lines[2])
	}
	if last := lines[len(lines)-1]; last.Line != LineGeneral || !last.Outstanding.Equal(dec("-300")) {
		t.Fatalf("unexpected general line: %+v", last)
	}
	if !total.Outstanding.Equal(dec("700")) {
		t.Fatalf("expected total outstanding 700, got %s", total.Outstanding)
	}

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Outstanding)
	}
	if !sum.Equal(total.Outstanding) {
		t.Fatalf("line sum %s differs from total %s", sum, total.Outstanding)
	}
}

func TestBuildTrend(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		entry(LineSale, CategorySale, "r1", "1000", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		entry(LineGeneral, CategoryPayment, "", "400", time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)),
		entry(LineSale, CategorySale, "r2", "500", time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)),
		entry(LineSale, CategorySale, "r3", "900", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)),
	}

	trend := BuildTrend(entries, now, 12)
	if len(trend) != 12 {
		t.Fatalf("expected 12 months, got %d", len(trend))
	}
	if !trend[0].Month.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first month %s", trend[0].Month)
	}
	if !trend[0].Charges.Equal(dec("500")) {
		t.Fatalf("expected July charges 500, got %s", trend[0].Charges)
	}
	if last := trend[11]; !last.Charges.Equal(dec("1000")) || !last.Payments.Equal(dec("400")) || !last.Net.Equal(dec("600")) {
		t.Fatalf("unexpected June bucket: %+v", last)
	}
}

func TestSortEntriesIsDeterministic(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := []LedgerEntry{
		entry(LineGeneral, CategoryPayment, "", "1", at.Add(time.Hour)),
		entry(LineFine, CategoryFine, "f2", "1", at),
		entry(LineFine, CategoryFine, "f1", "1", at),
		entry(LineSale, CategorySale, "r1", "1", at),
	}
	b := []LedgerEntry{a[3], a[0], a[2], a[1]}

	SortEntries(a)
	SortEntries(b)
	for i := range a {
		if a[i].SourceID != b[i].SourceID {
			t.Fatalf("orders differ at %d: %s vs %s", i, a[i].SourceID, b[i].SourceID)
		}
	}
	if a[0].SourceID != "f1-fine" || a[3].Category != CategoryPayment {
		t.Fatalf("unexpected order: %v", a)
	}
}
