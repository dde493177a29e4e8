package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/agencyledger/internal/domain"
)

// EntityRepository implements usecase.EntityRepository over the customers,
// suppliers and affiliates tables.
type EntityRepository struct {
	db DBTX
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db DBTX) *EntityRepository {
	return &EntityRepository{db: db}
}

func entityTable(role domain.EntityRole) (string, error) {
	switch role {
	case domain.RoleCustomer:
		return "customers", nil
	case domain.RoleSupplier:
		return "suppliers", nil
	case domain.RoleAffiliate:
		return "affiliates", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
}

// GetByID retrieves an entity by role and ID.
func (r *EntityRepository) GetByID(ctx context.Context, role domain.EntityRole, id string) (*domain.Entity, error) {
	table, err := entityTable(role)
	if err != nil {
		return nil, err
	}

	e := domain.Entity{Role: role}
	err = r.db.QueryRow(ctx, `SELECT id, name FROM `+table+` WHERE id = $1`, id).Scan(&e.ID, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}

		return nil, err
	}

	return &e, nil
}

// ListByIDs retrieves the entities of role among ids. Unknown ids are skipped.
func (r *EntityRepository) ListByIDs(ctx context.Context, role domain.EntityRole, ids []string) ([]*domain.Entity, error) {
	table, err := entityTable(role)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id, name FROM `+table+` WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]*domain.Entity, 0, len(ids))
	for rows.Next() {
		e := &domain.Entity{Role: role}
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}
