package postgres

import (
	"context"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// PaymentRepository implements usecase.PaymentRepository.
type PaymentRepository struct{}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

const createPayment = `
	INSERT INTO payments (id, entity_role, entity_id, residence_id, kind, reference_id, amount, currency_id, account_id, remarks, created_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`

// Create inserts a payment within a transaction.
func (r *PaymentRepository) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	pgxTx, err := txQuerier(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createPayment,
		payment.ID,
		string(payment.EntityRole),
		payment.EntityID,
		payment.RecordID,
		string(payment.Kind),
		payment.ReferenceID,
		decimalToNumeric(payment.Amount),
		payment.CurrencyID,
		payment.AccountID,
		payment.Remarks,
		timeToPgTimestamptz(payment.CreatedAt),
	)

	return err
}

// LockEntity takes a transaction-scoped advisory lock on the entity.
// Payments for one entity are serialized so each sees the balance the previous one left.
func (r *PaymentRepository) LockEntity(ctx context.Context, tx usecase.Transaction, role domain.EntityRole, id string) error {
	pgxTx, err := txQuerier(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(role, id))

	return err
}

func lockKey(role domain.EntityRole, id string) string {
	return "payment:" + string(role) + ":" + id
}
