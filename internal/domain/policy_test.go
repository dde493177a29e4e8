package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func boolPtr(b bool) *bool { return &b }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestChargePolicyResolve(t *testing.T) {
	t.Parallel()

	p := NewChargePolicy(decimal.Zero, decimal.Zero)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  TransactionRecord
		want string
		dir  Direction
	}{
		{
			name: "active sale",
			rec:  TransactionRecord{SourceID: "r1", Category: CategorySale, Amount: dec("1000"), SourceStatus: StatusActive},
			want: "1000", dir: DirectionDebit,
		},
		{
			name: "cancelled sale is zeroed",
			rec:  TransactionRecord{SourceID: "r1", Category: CategorySale, Amount: dec("1000"), SourceStatus: StatusCancelled},
			want: "0", dir: DirectionDebit,
		},
		{
			name: "cancelled and replaced sale is zeroed",
			rec:  TransactionRecord{SourceID: "r1", Category: CategorySale, Amount: dec("1000"), SourceStatus: StatusCancelledReplaced},
			want: "0", dir: DirectionDebit,
		},
		{
			name: "cancellation charge on cancelled sale contributes",
			rec:  TransactionRecord{SourceID: "c1", Category: CategoryCancellation, Amount: dec("200"), SourceStatus: StatusCancelled},
			want: "200", dir: DirectionDebit,
		},
		{
			name: "fine on cancelled sale contributes",
			rec:  TransactionRecord{SourceID: "f1", Category: CategoryFine, Amount: dec("75"), SourceStatus: StatusCancelled},
			want: "75", dir: DirectionDebit,
		},
		{
			name: "tawjeeh not included uses amount",
			rec:  TransactionRecord{SourceID: "s1", Category: CategoryStatutory, Statutory: StatutoryTawjeeh, Amount: dec("170"), InclusionFlag: boolPtr(false)},
			want: "170", dir: DirectionDebit,
		},
		{
			name: "tawjeeh unpriced falls back to default",
			rec:  TransactionRecord{SourceID: "s1", Category: CategoryStatutory, Statutory: StatutoryTawjeeh, Unpriced: true, InclusionFlag: boolPtr(false)},
			want: "150", dir: DirectionDebit,
		},
		{
			name: "tawjeeh included is suppressed",
			rec:  TransactionRecord{SourceID: "s1", Category: CategoryStatutory, Statutory: StatutoryTawjeeh, Unpriced: true, InclusionFlag: boolPtr(true)},
			want: "0", dir: DirectionDebit,
		},
		{
			name: "tawjeeh without flag counts as not included",
			rec:  TransactionRecord{SourceID: "s1", Category: CategoryStatutory, Statutory: StatutoryTawjeeh, Unpriced: true},
			want: "150", dir: DirectionDebit,
		},
		{
			name: "insurance unpriced with fine",
			rec:  TransactionRecord{SourceID: "s2", Category: CategoryStatutory, Statutory: StatutoryInsurance, Unpriced: true, FineAmount: dec("400"), InclusionFlag: boolPtr(false)},
			want: "526", dir: DirectionDebit,
		},
		{
			name: "insurance included keeps fine",
			rec:  TransactionRecord{SourceID: "s2", Category: CategoryStatutory, Statutory: StatutoryInsurance, Amount: dec("126"), FineAmount: dec("400"), InclusionFlag: boolPtr(true)},
			want: "400", dir: DirectionDebit,
		},
		{
			name: "insurance included without fine",
			rec:  TransactionRecord{SourceID: "s2", Category: CategoryStatutory, Statutory: StatutoryInsurance, Amount: dec("126"), InclusionFlag: boolPtr(true)},
			want: "0", dir: DirectionDebit,
		},
		{
			name: "general payment is a credit",
			rec:  TransactionRecord{SourceID: "p1", Category: CategoryPayment, Amount: dec("400")},
			want: "400", dir: DirectionCredit,
		},
		{
			name: "cancel payment offset still counts",
			rec:  TransactionRecord{SourceID: "p2", Category: CategoryPaymentOffset, Offset: OffsetCancelPayment, Amount: dec("50"), SourceStatus: StatusCancelled},
			want: "50", dir: DirectionCredit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			rec.CurrencyID = "AED"
			rec.OccurredAt = at
			entry, err := p.Resolve(rec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !entry.Amount.Equal(dec(tt.want)) {
				t.Fatalf("expected amount %s, got %s", tt.want, entry.Amount)
			}
			if entry.Direction != tt.dir {
				t.Fatalf("expected direction %s, got %s", tt.dir, entry.Direction)
			}
			if !entry.OccurredAt.Equal(at) || entry.CurrencyID != "AED" {
				t.Fatalf("entry lost record metadata: %+v", entry)
			}
		})
	}
}

func TestChargePolicyCustomDefaults(t *testing.T) {
	t.Parallel()

	p := NewChargePolicy(dec("160"), dec("130"))
	entry, err := p.Resolve(TransactionRecord{
		SourceID: "s1", Category: CategoryStatutory, Statutory: StatutoryInsurance,
		Unpriced: true, CurrencyID: "AED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.Amount.Equal(dec("130")) {
		t.Fatalf("expected configured default 130, got %s", entry.Amount)
	}
}

func TestInclusionToggleRemovesOnlyBase(t *testing.T) {
	t.Parallel()

	p := NewChargePolicy(decimal.Zero, decimal.Zero)
	for _, fine := range []string{"0", "250"} {
		rec := TransactionRecord{
			SourceID: "s2", Category: CategoryStatutory, Statutory: StatutoryInsurance,
			Amount: dec("126"), FineAmount: dec(fine), CurrencyID: "AED", InclusionFlag: boolPtr(false),
		}
		before, _ := p.Resolve(rec)
		rec.InclusionFlag = boolPtr(true)
		after, _ := p.Resolve(rec)

		if got := before.Amount.Sub(after.Amount); !got.Equal(dec("126")) {
			t.Fatalf("fine %s: toggling inclusion removed %s, expected 126", fine, got)
		}
	}
}

func TestChargePolicyRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	p := NewChargePolicy(decimal.Zero, decimal.Zero)
	bad := []TransactionRecord{
		{SourceID: "x", Category: "refund", CurrencyID: "AED"},
		{SourceID: "x", Category: CategoryStatutory, Statutory: "visa", CurrencyID: "AED"},
		{SourceID: "x", Category: CategoryPaymentOffset, CurrencyID: "AED"},
		{SourceID: "x", Category: CategorySale, Amount: dec("10")},
		{SourceID: "x", Category: CategorySale, Amount: dec("-10"), CurrencyID: "AED"},
	}
	for _, rec := range bad {
		if _, err := p.Resolve(rec); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord for %+v, got %v", rec, err)
		}
	}
}

func TestRecordRefs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rec  TransactionRecord
		line Line
		ref  string
	}{
		{TransactionRecord{Category: CategorySale, SourceID: "r1", RecordID: "r1"}, LineSale, "r1"},
		{TransactionRecord{Category: CategoryStatutory, Statutory: StatutoryTawjeeh, SourceID: "s1", RecordID: "r1"}, LineTawjeeh, "r1"},
		{TransactionRecord{Category: CategoryStatutory, Statutory: StatutoryInsurance, SourceID: "s2", RecordID: "r1"}, LineInsurance, "r1"},
		{TransactionRecord{Category: CategoryFine, SourceID: "f1", RecordID: "r1"}, LineFine, "f1"},
		{TransactionRecord{Category: CategoryCustomCharge, SourceID: "c1", RecordID: "r1"}, LineCustom, "c1"},
		{TransactionRecord{Category: CategoryPaymentOffset, Offset: OffsetFine, ReferenceID: "f1"}, LineFine, "f1"},
		{TransactionRecord{Category: CategoryPaymentOffset, Offset: OffsetCancelPayment, ReferenceID: "r1"}, LineSale, "r1"},
		{TransactionRecord{Category: CategoryPayment, SourceID: "p1"}, LineGeneral, ""},
	}
	for _, tt := range tests {
		if tt.rec.Line() != tt.line || tt.rec.Ref() != tt.ref {
			t.Fatalf("%s/%s: expected (%s,%s), got (%s,%s)", tt.rec.Category, tt.rec.Offset, tt.line, tt.ref, tt.rec.Line(), tt.rec.Ref())
		}
	}
}
