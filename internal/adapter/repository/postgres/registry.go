package postgres

import (
	"context"
	"fmt"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// ProbeCapabilities detects optional tables once at startup.
func ProbeCapabilities(ctx context.Context, db DBTX) (domain.Capabilities, error) {
	var caps domain.Capabilities

	err := db.QueryRow(ctx, `SELECT to_regclass('public.residence_custom_charges') IS NOT NULL`).Scan(&caps.CustomCharges)
	if err != nil {
		return domain.Capabilities{}, fmt.Errorf("probe capabilities: %w", err)
	}

	return caps, nil
}

// SourceRegistry implements usecase.SourceRegistry over the category tables.
type SourceRegistry struct {
	byRole map[domain.EntityRole][]usecase.TransactionSource
}

var _ usecase.SourceRegistry = (*SourceRegistry)(nil)

// NewSourceRegistry builds the sources for every role.
// Suppliers are only owed net costs, so only sales and payments apply to them.
func NewSourceRegistry(db DBTX, caps domain.Capabilities) *SourceRegistry {
	sale := NewSaleSource(db)
	payment := NewPaymentSource(db)
	offset := NewPaymentOffsetSource(db)

	billed := []usecase.TransactionSource{
		sale,
		NewFineSource(db),
		NewCancellationSource(db),
		NewStatutorySource(db),
		NewCustomChargeSource(db, caps.CustomCharges),
		payment,
		offset,
	}

	return &SourceRegistry{
		byRole: map[domain.EntityRole][]usecase.TransactionSource{
			domain.RoleCustomer:  billed,
			domain.RoleAffiliate: billed,
			domain.RoleSupplier:  {sale, payment, offset},
		},
	}
}

// MaxFanOut returns the largest number of sources one aggregation queries concurrently.
func (r *SourceRegistry) MaxFanOut() int {
	n := 0
	for _, sources := range r.byRole {
		n = max(n, len(sources))
	}
	return n
}

// For returns the sources that apply to role.
func (r *SourceRegistry) For(role domain.EntityRole) []usecase.TransactionSource {
	return r.byRole[role]
}
