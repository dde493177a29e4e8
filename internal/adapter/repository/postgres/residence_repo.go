package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// ResidenceRepository implements usecase.ResidenceRepository.
type ResidenceRepository struct {
	db   DBTX
	caps domain.Capabilities
}

// NewResidenceRepository creates a new ResidenceRepository.
func NewResidenceRepository(db DBTX, caps domain.Capabilities) *ResidenceRepository {
	return &ResidenceRepository{db: db, caps: caps}
}

const getResidence = `
	SELECT id, customer_id, COALESCE(affiliate_id, ''), COALESCE(supplier_id, ''), passenger_name,
	       sale_currency_id, cost_currency_id, status, settled, created_at
	FROM residences
	WHERE id = $1`

// GetByID retrieves a residence by ID.
func (r *ResidenceRepository) GetByID(ctx context.Context, id string) (*domain.Residence, error) {
	var (
		res    domain.Residence
		status string
	)
	err := r.db.QueryRow(ctx, getResidence, id).Scan(
		&res.ID,
		&res.CustomerID,
		&res.AffiliateID,
		&res.SupplierID,
		&res.PassengerName,
		&res.SaleCurrencyID,
		&res.CostCurrencyID,
		&status,
		&res.Settled,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}
	res.Status = domain.SourceStatus(status)

	return &res, nil
}

const residenceCurrencies = `
	SELECT sale_currency_id FROM residences WHERE id = $1
	UNION SELECT fine_currency_id FROM residence_fines WHERE residence_id = $1
	UNION SELECT currency_id FROM residence_cancellations WHERE residence_id = $1
	UNION SELECT currency_id FROM payments WHERE residence_id = $1 AND entity_role <> 'supplier'`

const customChargeCurrencies = `
	UNION SELECT currency_id FROM residence_custom_charges WHERE residence_id = $1`

// Currencies lists the currencies the residence bills or was paid in, sorted.
func (r *ResidenceRepository) Currencies(ctx context.Context, id string) ([]string, error) {
	query := residenceCurrencies
	if r.caps.CustomCharges {
		query += customChargeCurrencies
	}

	rows, err := r.db.Query(ctx, query+` ORDER BY 1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}

	return currencies, rows.Err()
}

// MarkSettled records whether the residence has nothing left outstanding.
func (r *ResidenceRepository) MarkSettled(ctx context.Context, tx usecase.Transaction, id string, settled bool) error {
	pgxTx, err := txQuerier(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `UPDATE residences SET settled = $2 WHERE id = $1`, id, settled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
