package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/agencyledger/internal/domain"
)

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	db DBTX
}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(db DBTX) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

// GetByID retrieves a currency by ID.
func (r *CurrencyRepository) GetByID(ctx context.Context, id string) (*domain.Currency, error) {
	var c domain.Currency
	err := r.db.QueryRow(ctx, `SELECT id, code, name FROM currencies WHERE id = $1`, id).Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCurrencyNotFound
		}

		return nil, err
	}

	return &c, nil
}
