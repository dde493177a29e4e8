package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
	"github.com/iho/agencyledger/internal/usecase/mocks"
)

var (
	entityIDs   = []string{"cust-1", "cust-2", "cust-3"}
	currencyIDs = []string{"AED", "USD"}
)

// seed fills the fixture with n random records across every category.
func seed(f *fixture, r *rand.Rand, n int) {
	amount := func() string { return decimal.New(int64(r.IntN(200000)), -2).String() }
	statuses := []domain.SourceStatus{domain.StatusActive, domain.StatusCancelled, domain.StatusCancelledReplaced}
	kinds := []domain.OffsetKind{domain.OffsetSale, domain.OffsetFine, domain.OffsetTawjeeh, domain.OffsetInsurance, domain.OffsetCancellation, domain.OffsetCancelPayment}

	for i := 0; i < n; i++ {
		entity := entityIDs[r.IntN(len(entityIDs))]
		currency := currencyIDs[r.IntN(len(currencyIDs))]
		residence := fmt.Sprintf("res-%d", r.IntN(8))
		id := fmt.Sprintf("row-%d", i)
		at := day0.Add(time.Duration(r.IntN(400*24)) * time.Hour)

		switch r.IntN(7) {
		case 0:
			f.sales.Add(sale(entity, id, amount(), currency, statuses[r.IntN(len(statuses))], at))
		case 1:
			f.fines.Add(fine(entity, residence, id, amount(), currency, at))
		case 2:
			f.cancellations.Add(cancellation(entity, residence, id, amount(), currency, at))
		case 3:
			kind := domain.StatutoryTawjeeh
			if r.IntN(2) == 0 {
				kind = domain.StatutoryInsurance
			}
			rec := statutory(entity, residence, id, kind, r.IntN(2) == 0, at)
			rec.CurrencyID = currency
			rec.FineAmount = decimal.New(int64(r.IntN(3)*100), 0)
			f.statutory.Add(rec)
		case 4:
			rec := fine(entity, residence, id, amount(), currency, at)
			rec.Category = domain.CategoryCustomCharge
			f.custom.Add(rec)
		case 5:
			f.payments.Add(payment(entity, id, amount(), currency, at))
		case 6:
			kind := kinds[r.IntN(len(kinds))]
			f.offsets.Add(offset(entity, residence, id, kind, residence, amount(), currency, at))
		}
	}
}

func signedSum(t *testing.T, records []domain.TransactionRecord) decimal.Decimal {
	t.Helper()
	policy := domain.NewChargePolicy(decimal.Zero, decimal.Zero)
	sum := decimal.Zero
	for _, rec := range records {
		e, err := policy.Resolve(rec)
		require.NoError(t, err)
		sum = sum.Add(e.Signed())
	}
	return sum
}

func TestAggregatorBalanceIdentity(t *testing.T) {
	for seedValue := uint64(1); seedValue <= 20; seedValue++ {
		f := newFixture(domain.OutstandingNonZero)
		seed(f, rand.New(rand.NewPCG(seedValue, 7)), 120)

		for _, entity := range entityIDs {
			for _, currency := range currencyIDs {
				scope := customerScope(entity, currency)
				ledger, err := f.agg.Aggregate(context.Background(), scope)
				require.NoError(t, err)

				b := ledger.Balance
				assert.True(t, b.TotalCharges.Sub(b.TotalPayments).Equal(b.Balance), "seed %d: identity violated for %s/%s", seedValue, entity, currency)

				records, err := f.agg.Collect(context.Background(), scope)
				require.NoError(t, err)
				assert.True(t, signedSum(t, records).Equal(b.Balance), "seed %d: ledger sum differs from balance", seedValue)

				debits, credits := decimal.Zero, decimal.Zero
				for _, e := range ledger.Entries {
					if e.Direction == domain.DirectionDebit {
						debits = debits.Add(e.Amount)
					} else {
						credits = credits.Add(e.Amount)
					}
				}
				assert.True(t, debits.Sub(credits).Equal(b.Balance))
			}
		}
	}
}

func TestAggregatorIsOrderIndependent(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	r := rand.New(rand.NewPCG(42, 42))
	seed(f, r, 200)

	scope := customerScope("cust-1", "AED")
	before, err := f.agg.Aggregate(context.Background(), scope)
	require.NoError(t, err)

	for _, src := range []*mocks.MockTransactionSource{f.sales, f.fines, f.statutory, f.payments, f.offsets} {
		r.Shuffle(len(src.Records), func(i, j int) { src.Records[i], src.Records[j] = src.Records[j], src.Records[i] })
	}

	after, err := f.agg.Aggregate(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, before.Balance.Balance.Equal(after.Balance.Balance))

	b1, _ := json.Marshal(before)
	b2, _ := json.Marshal(after)
	assert.JSONEq(t, string(b1), string(b2))
}

func TestListAndDetailAgree(t *testing.T) {
	for seedValue := uint64(1); seedValue <= 10; seedValue++ {
		f := newFixture(domain.OutstandingNonZero)
		seed(f, rand.New(rand.NewPCG(seedValue, 99)), 150)

		for _, currency := range currencyIDs {
			page, err := f.recon.GetOutstandingEntities(context.Background(), usecase.OutstandingInput{
				Role: domain.RoleCustomer, CurrencyID: currency, Limit: 1000,
			})
			require.NoError(t, err)

			for _, item := range page.Items {
				ledger, err := f.recon.GetEntityLedger(context.Background(), usecase.LedgerInput{
					Role: domain.RoleCustomer, EntityID: item.EntityID, CurrencyID: currency,
				})
				require.NoError(t, err)
				assert.True(t, item.Balance.Equal(ledger.Balance.Balance),
					"seed %d: list %s vs detail %s for %s", seedValue, item.Balance, ledger.Balance.Balance, item.EntityID)
				assert.True(t, item.TotalCharges.Equal(ledger.Balance.TotalCharges))
				assert.True(t, item.TotalPayments.Equal(ledger.Balance.TotalPayments))
			}
		}
	}
}

func TestCurrencyIsolation(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	seed(f, rand.New(rand.NewPCG(5, 5)), 100)

	scope := customerScope("cust-2", "AED")
	before, err := f.agg.Aggregate(context.Background(), scope)
	require.NoError(t, err)

	f.sales.Add(sale("cust-2", "res-usd", "9999", "USD", domain.StatusActive, day0))
	f.payments.Add(payment("cust-2", "pay-usd", "50", "USD", day0))

	after, err := f.agg.Aggregate(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, before.Balance.Balance.Equal(after.Balance.Balance))
	assert.Len(t, after.Entries, len(before.Entries))
}

func TestReadViewsAreIdempotent(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	seed(f, rand.New(rand.NewPCG(11, 3)), 150)
	f.residences.Put(&domain.Residence{ID: "res-1", CustomerID: "cust-1", SaleCurrencyID: "AED"}, "AED", "USD")

	ctx := context.Background()
	read := func() []byte {
		page, err := f.recon.GetOutstandingEntities(ctx, usecase.OutstandingInput{Role: domain.RoleCustomer, CurrencyID: "AED"})
		require.NoError(t, err)
		ledger, err := f.recon.GetEntityLedger(ctx, usecase.LedgerInput{Role: domain.RoleCustomer, EntityID: "cust-1", CurrencyID: "AED"})
		require.NoError(t, err)
		breakdown, err := f.recon.GetUnifiedBreakdown(ctx, "res-1")
		require.NoError(t, err)
		out, err := json.Marshal([]any{page, ledger, breakdown})
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, read(), read())
}

func TestSpecScenarios(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.OutstandingNonZero)
	scope := customerScope("cust-1", "AED")

	// 1. one active sale
	saleRec := sale("cust-1", "res-1", "1000", "AED", domain.StatusActive, day0)
	f.sales.Records = []domain.TransactionRecord{saleRec}
	ledger, err := f.agg.Aggregate(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "1000", ledger.Balance.Balance.String())
	assert.Equal(t, "1000", ledger.Balance.TotalCharges.String())
	assert.Equal(t, "0", ledger.Balance.TotalPayments.String())

	// 2. payment of 400
	f.payments.Add(payment("cust-1", "pay-1", "400", "AED", day0.Add(time.Hour)))
	ledger, err = f.agg.Aggregate(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "600", ledger.Balance.Balance.String())

	// 3. sale cancelled with a cancellation charge of 200
	saleRec.SourceStatus = domain.StatusCancelled
	f.sales.Records = []domain.TransactionRecord{saleRec}
	f.cancellations.Add(cancellation("cust-1", "res-1", "can-1", "200", "AED", day0.Add(2*time.Hour)))
	ledger, err = f.agg.Aggregate(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "200", ledger.Balance.TotalCharges.String())
	assert.Equal(t, "400", ledger.Balance.TotalPayments.String())
	assert.Equal(t, "-200", ledger.Balance.Balance.String())
	require.Len(t, ledger.Entries, 3)
	assert.Equal(t, domain.CategorySale, ledger.Entries[0].Category)
	assert.True(t, ledger.Entries[0].Amount.IsZero(), "cancelled sale stays in the ledger at zero")

	// 4 and 5. statutory charge with and without inclusion
	g := newFixture(domain.OutstandingNonZero)
	g.statutory.Add(statutory("cust-1", "res-2", "st-1", domain.StatutoryTawjeeh, false, day0))
	ledger, err = g.agg.Aggregate(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "150", ledger.Balance.TotalCharges.String())

	g.statutory.Records = []domain.TransactionRecord{statutory("cust-1", "res-2", "st-1", domain.StatutoryTawjeeh, true, day0)}
	ledger, err = g.agg.Aggregate(ctx, scope)
	require.NoError(t, err)
	assert.True(t, ledger.Balance.TotalCharges.IsZero())
	assert.Len(t, ledger.Entries, 1)
}

func TestCancellationKeepsPaymentHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.OutstandingNonZero)
	scope := customerScope("cust-1", "AED")

	saleRec := sale("cust-1", "res-1", "1500", "AED", domain.StatusActive, day0)
	f.sales.Add(saleRec, sale("cust-1", "res-2", "800", "AED", domain.StatusActive, day0))
	f.fines.Add(fine("cust-1", "res-1", "fine-1", "120", "AED", day0))
	f.payments.Add(payment("cust-1", "pay-1", "300", "AED", day0))
	f.offsets.Add(offset("cust-1", "res-1", "off-1", domain.OffsetCancelPayment, "res-1", "100", "AED", day0))

	before, err := f.agg.Aggregate(ctx, scope)
	require.NoError(t, err)

	saleRec.SourceStatus = domain.StatusCancelledReplaced
	f.sales.Records[0] = saleRec
	f.cancellations.Add(cancellation("cust-1", "res-1", "can-1", "250", "AED", day0))

	after, err := f.agg.Aggregate(ctx, scope)
	require.NoError(t, err)

	assert.True(t, before.Balance.TotalPayments.Equal(after.Balance.TotalPayments))
	// remaining charges: other sale 800, fine 120, cancellation 250
	assert.Equal(t, "1170", after.Balance.TotalCharges.String())
	assert.Equal(t, "770", after.Balance.Balance.String())
}

func TestAggregatorSubPartyFilter(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.sales.Add(
		sale("cust-1", "res-1", "1000", "AED", domain.StatusActive, day0),
		sale("cust-1", "res-2", "700", "AED", domain.StatusActive, day0),
	)
	f.payments.Add(payment("cust-1", "pay-1", "100", "AED", day0))

	scope := customerScope("cust-1", "AED")
	scope.SubParty = "passenger-res-2"
	ledger, err := f.agg.Aggregate(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 1)
	assert.Equal(t, "700", ledger.Balance.Balance.String())
}

func TestAggregatorFailsWholeAggregationOnSourceError(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.sales.Add(sale("cust-1", "res-1", "1000", "AED", domain.StatusActive, day0))
	boom := errors.New("relation does not respond")
	f.fines.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		return nil, boom
	}

	_, err := f.agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialAggregation)
	assert.ErrorIs(t, err, boom)

	var aggErr *domain.AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "fine", aggErr.Source)
	assert.Equal(t, domain.CodeAggregationFailed, domain.ErrorCode(err))
	assert.Equal(t, 1, f.recorder.SourceErrors["fine"])
}

func TestAggregatorTreatsMissingFeatureAsZero(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.sales.Add(sale("cust-1", "res-1", "1000", "AED", domain.StatusActive, day0))
	f.custom.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		return nil, domain.ErrFeatureNotInstalled
	}

	ledger, err := f.agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	require.NoError(t, err)
	assert.Equal(t, "1000", ledger.Balance.Balance.String())
}

func TestAggregatorHonoursDeadline(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.statutory.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	agg := usecase.NewAggregator(f.registry, domain.NewChargePolicy(decimal.Zero, decimal.Zero), 20*time.Millisecond, nil, zerolog.Nop())

	start := time.Now()
	_, err := agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrPartialAggregation)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAggregatorFailFastCancelsSiblings(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	cancelled := make(chan struct{})
	f.statutory.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}
	f.fines.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		return nil, errors.New("fines unavailable")
	}
	agg := usecase.NewAggregator(f.registry, domain.NewChargePolicy(decimal.Zero, decimal.Zero), 0, nil, zerolog.Nop())

	_, err := agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	require.Error(t, err)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("sibling source was not cancelled")
	}
}

func TestAggregatorRejectsOutOfScopeRows(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.payments.FetchFunc = func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
		return []domain.TransactionRecord{payment("cust-1", "pay-1", "10", "USD", day0)}, nil
	}

	_, err := f.agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
	assert.ErrorIs(t, err, domain.ErrPartialAggregation)
}

func TestAggregatorRejectsInvalidScopeBeforeQuerying(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)

	_, err := f.agg.Aggregate(context.Background(), domain.Scope{Role: domain.RoleCustomer, EntityID: "cust-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrencyID)

	_, err = f.agg.Aggregate(context.Background(), domain.Scope{Role: domain.RoleCustomer, CurrencyID: "AED"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntityID)

	assert.Zero(t, f.sales.Calls)
}

func TestUnmatchedOffsetsStillCount(t *testing.T) {
	f := newFixture(domain.OutstandingNonZero)
	f.fines.Add(fine("cust-1", "res-1", "fine-1", "300", "AED", day0))
	f.offsets.Add(
		offset("cust-1", "res-1", "off-1", domain.OffsetFine, "fine-1", "100", "AED", day0),
		offset("cust-1", "res-1", "off-2", domain.OffsetFine, "fine-gone", "50", "AED", day0),
	)

	ledger, err := f.agg.Aggregate(context.Background(), customerScope("cust-1", "AED"))
	require.NoError(t, err)
	assert.Equal(t, "150", ledger.Balance.Balance.String())

	matched := map[string]bool{}
	for _, e := range ledger.Entries {
		matched[e.SourceID] = e.Matched
	}
	assert.True(t, matched["off-1"])
	assert.False(t, matched["off-2"])
}
