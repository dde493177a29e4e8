package usecase_test

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
	"github.com/iho/agencyledger/internal/usecase/mocks"
)

var day0 = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flag(b bool) *bool { return &b }

// fixture wires the engine over in-memory sources, one per category.
type fixture struct {
	sales         *mocks.MockTransactionSource
	fines         *mocks.MockTransactionSource
	cancellations *mocks.MockTransactionSource
	statutory     *mocks.MockTransactionSource
	custom        *mocks.MockTransactionSource
	payments      *mocks.MockTransactionSource
	offsets       *mocks.MockTransactionSource

	registry   *mocks.MockSourceRegistry
	entities   *mocks.MockEntityRepository
	currencies *mocks.MockCurrencyRepository
	residences *mocks.MockResidenceRepository
	recorder   *mocks.MockRecorder

	agg   *usecase.Aggregator
	recon *usecase.ReconciliationUseCase
}

func newFixture(policy domain.OutstandingPolicy) *fixture {
	f := &fixture{
		sales:         mocks.NewMockTransactionSource("sale"),
		fines:         mocks.NewMockTransactionSource("fine"),
		cancellations: mocks.NewMockTransactionSource("cancellation"),
		statutory:     mocks.NewMockTransactionSource("statutory"),
		custom:        mocks.NewMockTransactionSource("custom_charge"),
		payments:      mocks.NewMockTransactionSource("payment"),
		offsets:       mocks.NewMockTransactionSource("payment_offset"),
		entities: mocks.NewMockEntityRepository(
			&domain.Entity{ID: "cust-1", Role: domain.RoleCustomer, Name: "Zayed Trading"},
			&domain.Entity{ID: "cust-2", Role: domain.RoleCustomer, Name: "Al Noor Travel"},
			&domain.Entity{ID: "cust-3", Role: domain.RoleCustomer, Name: "Bright Visas"},
			&domain.Entity{ID: "aff-1", Role: domain.RoleAffiliate, Name: "Desert Partners"},
		),
		currencies: mocks.NewMockCurrencyRepository("AED", "USD"),
		residences: mocks.NewMockResidenceRepository(),
		recorder:   mocks.NewMockRecorder(),
	}
	f.registry = mocks.NewMockSourceRegistry(f.sales, f.fines, f.cancellations, f.statutory, f.custom, f.payments, f.offsets)
	f.agg = usecase.NewAggregator(f.registry, domain.NewChargePolicy(decimal.Zero, decimal.Zero), time.Second, f.recorder, zerolog.Nop())
	f.recon = usecase.NewReconciliationUseCase(f.agg, f.entities, f.currencies, f.residences, policy, f.recorder, zerolog.Nop())
	return f
}

func sale(entity, residence, amount, currency string, status domain.SourceStatus, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: residence, Category: domain.CategorySale,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: currency,
		Amount: d(amount), OccurredAt: at, SourceStatus: status,
		RecordID: residence, Identification: "Residence " + residence, CounterpartyLabel: "passenger-" + residence,
	}
}

func fine(entity, residence, id, amount, currency string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: id, Category: domain.CategoryFine,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: currency,
		Amount: d(amount), OccurredAt: at, SourceStatus: domain.StatusActive,
		RecordID: residence, CounterpartyLabel: "passenger-" + residence,
	}
}

func cancellation(entity, residence, id, amount, currency string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: id, Category: domain.CategoryCancellation,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: currency,
		Amount: d(amount), OccurredAt: at, SourceStatus: domain.StatusCancelled,
		RecordID: residence, CounterpartyLabel: "passenger-" + residence,
	}
}

func statutory(entity, residence, id string, kind domain.StatutoryKind, included bool, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: id, Category: domain.CategoryStatutory, Statutory: kind,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: "AED",
		Unpriced: true, InclusionFlag: flag(included), OccurredAt: at,
		RecordID: residence, CounterpartyLabel: "passenger-" + residence,
	}
}

func payment(entity, id, amount, currency string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: id, Category: domain.CategoryPayment,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: currency,
		Amount: d(amount), OccurredAt: at,
	}
}

func offset(entity, residence, id string, kind domain.OffsetKind, ref, amount, currency string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		SourceID: id, Category: domain.CategoryPaymentOffset, Offset: kind,
		EntityID: entity, EntityRole: domain.RoleCustomer, CurrencyID: currency,
		Amount: d(amount), OccurredAt: at, RecordID: residence, ReferenceID: ref,
		CounterpartyLabel: "passenger-" + residence,
	}
}

func customerScope(entity, currency string) domain.Scope {
	return domain.Scope{Role: domain.RoleCustomer, EntityID: entity, CurrencyID: currency}
}
