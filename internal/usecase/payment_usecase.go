package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/iho/agencyledger/internal/domain"
)

// PaymentStores groups the repositories a payment touches.
type PaymentStores struct {
	Payments   PaymentRepository
	Entities   EntityRepository
	Currencies CurrencyRepository
	Residences ResidenceRepository
	Outbox     OutboxRepository
	Audit      AuditRepository
}

// PaymentUseCase records payments against live balances.
type PaymentUseCase struct {
	txManager  TransactionManager
	retrier    Retrier
	aggregator *Aggregator
	stores     PaymentStores
	idGen      IDGenerator
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
	// inFlight bounds open payment transactions; nil means unbounded.
	inFlight *semaphore.Weighted
}

// NewPaymentUseCase creates a new PaymentUseCase.
func NewPaymentUseCase(
	txManager TransactionManager,
	retrier Retrier,
	aggregator *Aggregator,
	stores PaymentStores,
	idGen IDGenerator,
	recorder Recorder,
	logger zerolog.Logger,
) *PaymentUseCase {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &PaymentUseCase{
		txManager:  txManager,
		retrier:    retrier,
		aggregator: aggregator,
		stores:     stores,
		idGen:      idGen,
		recorder:   recorder,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithConcurrencyLimit caps how many payment transactions may be open at once.
// Each open transaction holds a connection while its recompute fans out over more,
// so the cap keeps the pool from being drained by transactions waiting on each other.
func (uc *PaymentUseCase) WithConcurrencyLimit(n int) *PaymentUseCase {
	if n > 0 {
		uc.inFlight = semaphore.NewWeighted(int64(n))
	}
	return uc
}

// PaymentConcurrency returns how many payments fit in a pool of maxConns
// when each one holds a transaction plus fanOut concurrent source queries.
func PaymentConcurrency(maxConns, fanOut int) int {
	n := maxConns / (1 + fanOut)
	if n < 1 {
		return 1
	}
	return n
}

// RecordPaymentInput represents input for recording a payment.
type RecordPaymentInput struct {
	EntityRole  domain.EntityRole
	EntityID    string
	RecordID    string
	Kind        domain.OffsetKind
	ReferenceID string
	Amount      decimal.Decimal
	CurrencyID  string
	AccountID   string
	Remarks     string
	Audit       domain.AuditMeta
}

// RecordPayment appends a payment after re-checking it against the live outstanding balance.
// The balance check, the insert and the dependent writes commit together or not at all.
func (uc *PaymentUseCase) RecordPayment(ctx context.Context, input RecordPaymentInput) (_ *domain.Payment, err error) {
	start := time.Now()
	defer func() { uc.recorder.ObserveAggregation(viewPayment, time.Since(start), err) }()

	payment := &domain.Payment{
		EntityID:    input.EntityID,
		EntityRole:  input.EntityRole,
		RecordID:    input.RecordID,
		Kind:        input.Kind,
		ReferenceID: input.ReferenceID,
		Amount:      input.Amount,
		CurrencyID:  input.CurrencyID,
		AccountID:   input.AccountID,
		Remarks:     input.Remarks,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	if _, err := uc.stores.Currencies.GetByID(ctx, payment.CurrencyID); err != nil {
		return nil, err
	}
	if _, err := uc.stores.Entities.GetByID(ctx, payment.EntityRole, payment.EntityID); err != nil {
		return nil, err
	}

	var residence *domain.Residence
	if payment.RecordID != "" {
		residence, err = uc.stores.Residences.GetByID(ctx, payment.RecordID)
		if err != nil {
			return nil, err
		}
		if !belongsTo(residence, payment.EntityRole, payment.EntityID) {
			return nil, domain.ErrInvalidReference
		}
	}

	if uc.inFlight != nil {
		if err := uc.inFlight.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer uc.inFlight.Release(1)
	}

	err = uc.retrier.Retry(ctx, func() error {
		return uc.record(ctx, payment, residence, input.Audit)
	})
	if err != nil {
		return nil, err
	}

	uc.recorder.PaymentRecorded(payment.CurrencyID)
	uc.logger.Info().
		Str("payment_id", payment.ID).
		Str("entity_id", payment.EntityID).
		Str("role", string(payment.EntityRole)).
		Str("amount", payment.Amount.String()).
		Str("currency_id", payment.CurrencyID).
		Msg("payment recorded")

	return payment, nil
}

func (uc *PaymentUseCase) record(ctx context.Context, payment *domain.Payment, residence *domain.Residence, meta domain.AuditMeta) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Concurrent payments for one entity would otherwise both pass the balance check.
	if err := uc.stores.Payments.LockEntity(ctx, tx, payment.EntityRole, payment.EntityID); err != nil {
		return err
	}

	ledger, err := uc.aggregator.Aggregate(ctx, payment.Scope())
	if err != nil {
		return err
	}
	if payment.Kind != domain.OffsetGeneral && !hasCharge(ledger.Entries, payment.Kind.Line(), payment.ReferenceID) {
		return domain.ErrInvalidReference
	}

	outstanding := payment.Outstanding(ledger.Entries)
	if payment.Amount.GreaterThan(outstanding) {
		uc.recorder.OverpaymentRejected()
		return &domain.OverpaymentError{
			Requested:   payment.Amount,
			Outstanding: outstanding,
			CurrencyID:  payment.CurrencyID,
		}
	}

	payment.ID = uc.idGen.Generate()
	payment.CreatedAt = uc.now()
	if err := uc.stores.Payments.Create(ctx, tx, payment); err != nil {
		return err
	}

	events := []*domain.OutboxEvent{uc.newEvent(payment.ID, domain.AggregateTypePayment, domain.EventTypePaymentRecorded,
		domain.PaymentRecordedEvent{
			PaymentID:   payment.ID,
			EntityID:    payment.EntityID,
			EntityRole:  string(payment.EntityRole),
			RecordID:    payment.RecordID,
			Kind:        string(payment.Kind),
			ReferenceID: payment.ReferenceID,
			Amount:      payment.Amount.String(),
			CurrencyID:  payment.CurrencyID,
			Outstanding: outstanding.Sub(payment.Amount).String(),
		})}

	if residence != nil && payment.EntityRole.Bills() {
		settled, err := uc.residenceSettled(ctx, residence, payment)
		if err != nil {
			return err
		}
		if settled != residence.Settled {
			if err := uc.stores.Residences.MarkSettled(ctx, tx, residence.ID, settled); err != nil {
				return err
			}
			if settled {
				events = append(events, uc.newEvent(residence.ID, domain.AggregateTypeResidence, domain.EventTypeResidenceSettled,
					domain.ResidenceSettledEvent{RecordID: residence.ID, PaymentID: payment.ID}))
			}
		}
	}

	for _, event := range events {
		if err := uc.stores.Outbox.Create(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := uc.stores.Audit.CreateTx(ctx, tx, &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		UserID:       meta.UserID,
		Action:       string(domain.AuditActionPaymentRecord),
		ResourceType: domain.AggregateTypePayment,
		ResourceID:   payment.ID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		BeforeState:  domain.MarshalState(map[string]string{"outstanding": outstanding.String()}),
		AfterState:   domain.MarshalState(payment),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    payment.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// residenceSettled reports whether no currency of the residence stays owed once payment lands.
func (uc *PaymentUseCase) residenceSettled(ctx context.Context, residence *domain.Residence, payment *domain.Payment) (bool, error) {
	currencies, err := uc.stores.Residences.Currencies(ctx, residence.ID)
	if err != nil {
		return false, err
	}

	role, entityID := residence.BillingParty()
	for _, currencyID := range currencies {
		ledger, err := uc.aggregator.Aggregate(ctx, domain.Scope{
			Role:       role,
			EntityID:   entityID,
			CurrencyID: currencyID,
			RecordID:   residence.ID,
		})
		if err != nil {
			return false, err
		}
		balance := ledger.Balance.Balance
		if currencyID == payment.CurrencyID {
			balance = balance.Sub(payment.Amount)
		}
		if balance.IsPositive() {
			return false, nil
		}
	}
	return true, nil
}

func (uc *PaymentUseCase) newEvent(aggregateID, aggregateType, eventType string, payload any) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.MarshalState(payload),
		CreatedAt:     uc.now(),
	}
}

func belongsTo(r *domain.Residence, role domain.EntityRole, entityID string) bool {
	switch role {
	case domain.RoleSupplier:
		return r.SupplierID == entityID
	case domain.RoleAffiliate:
		return r.AffiliateID == entityID
	case domain.RoleCustomer:
		return r.AffiliateID == "" && r.CustomerID == entityID
	}
	return false
}

func hasCharge(entries []domain.LedgerEntry, line domain.Line, ref string) bool {
	for _, e := range entries {
		if e.Direction == domain.DirectionDebit && e.Line == line && e.Ref == ref {
			return true
		}
	}
	return false
}
