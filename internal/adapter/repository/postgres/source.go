package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// Source names, one per category table.
const (
	SourceSale          = "sale"
	SourceFine          = "fine"
	SourceCancellation  = "cancellation"
	SourceStatutory     = "statutory"
	SourceCustomCharge  = "custom_charge"
	SourcePayment       = "payment"
	SourcePaymentOffset = "payment_offset"
)

// party describes where a role's billed entity and money columns live on residences.
type party struct {
	entity   string
	filter   string
	amount   string
	currency string
}

func partyFor(role domain.EntityRole) party {
	switch role {
	case domain.RoleAffiliate:
		return party{entity: "r.affiliate_id", filter: "r.affiliate_id IS NOT NULL", amount: "r.sale_price", currency: "r.sale_currency_id"}
	case domain.RoleSupplier:
		return party{entity: "r.supplier_id", filter: "r.supplier_id IS NOT NULL", amount: "r.net_cost", currency: "r.cost_currency_id"}
	default:
		return party{entity: "r.customer_id", filter: "r.affiliate_id IS NULL", amount: "r.sale_price", currency: "r.sale_currency_id"}
	}
}

// Every residence-backed query takes $1 currency, $2 entity ('' for all) and $3 residence ('' for all).
const scopeFilter = `($2::text = '' OR %[1]s = $2) AND ($3::text = '' OR r.id = $3)`

func saleQuery(role domain.EntityRole) string {
	p := partyFor(role)
	return fmt.Sprintf(`
		SELECT r.id, %[1]s, %[2]s, %[3]s, r.status, r.passenger_name, r.created_at
		FROM residences r
		WHERE %[3]s = $1 AND %[4]s AND `+scopeFilter+`
		ORDER BY r.created_at, r.id`,
		p.entity, p.amount, p.currency, p.filter)
}

// childQuery selects charges stored in a table hanging off residences.
func childQuery(role domain.EntityRole, table, currencyColumn, label string) string {
	p := partyFor(role)
	return fmt.Sprintf(`
		SELECT c.id, c.residence_id, %[1]s, c.amount, c.%[2]s, %[3]s, r.status, r.passenger_name, c.created_at
		FROM %[4]s c
		JOIN residences r ON r.id = c.residence_id
		WHERE c.%[2]s = $1 AND %[5]s AND `+scopeFilter+`
		ORDER BY c.created_at, c.id`,
		p.entity, currencyColumn, label, table, p.filter)
}

func statutoryQuery(role domain.EntityRole) string {
	p := partyFor(role)
	return fmt.Sprintf(`
		SELECT r.id, 'tawjeeh', %[1]s, r.tawjeeh_amount, 0::numeric, r.tawjeeh_included, r.sale_currency_id, r.status, r.passenger_name, r.created_at
		FROM residences r
		WHERE r.sale_currency_id = $1 AND r.tawjeeh_included IS NOT NULL AND %[2]s AND `+scopeFilter+`
		UNION ALL
		SELECT r.id, 'insurance', %[1]s, r.insurance_amount, r.insurance_fine, r.insurance_included, r.sale_currency_id, r.status, r.passenger_name, r.created_at
		FROM residences r
		WHERE r.sale_currency_id = $1 AND r.insurance_included IS NOT NULL AND %[2]s AND `+scopeFilter+`
		ORDER BY 10, 1, 2`,
		p.entity, p.filter)
}

// paymentQuery selects general payments or offsets. $4 is the entity role.
func paymentQuery(offsets bool) string {
	kind := "p.kind = ''"
	if offsets {
		kind = "p.kind <> ''"
	}
	return `
		SELECT p.id, p.entity_id, COALESCE(p.residence_id, ''), p.kind, p.reference_id, p.amount, p.currency_id,
		       p.remarks, COALESCE(r.passenger_name, ''), p.created_at
		FROM payments p
		LEFT JOIN residences r ON r.id = p.residence_id
		WHERE p.currency_id = $1 AND p.entity_role = $4 AND ` + kind + `
		  AND ($2::text = '' OR p.entity_id = $2) AND ($3::text = '' OR p.residence_id = $3)
		ORDER BY p.created_at, p.id`
}

// rowScanner maps one result row into a record for role.
type rowScanner func(rows pgx.Rows, role domain.EntityRole) (domain.TransactionRecord, error)

// Source reads one category table.
type Source struct {
	name      string
	db        DBTX
	installed bool
	query     func(role domain.EntityRole) string
	scan      rowScanner
	withRole  bool
}

var _ usecase.TransactionSource = (*Source)(nil)

// Name returns the source name used in logs, metrics and aggregation errors.
func (s *Source) Name() string {
	return s.name
}

// Fetch re-queries the table for scope. The currency filter runs in SQL.
func (s *Source) Fetch(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
	if !s.installed {
		return nil, domain.ErrFeatureNotInstalled
	}

	args := []any{scope.CurrencyID, scope.EntityID, scope.RecordID}
	if s.withRole {
		args = append(args, string(scope.Role))
	}

	rows, err := s.db.Query(ctx, s.query(scope.Role), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.name, err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := s.scan(rows, scope.Role)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.name, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	}

	return records, nil
}

// NewSaleSource reads residence sale prices, or net costs for suppliers.
func NewSaleSource(db DBTX) *Source {
	return &Source{name: SourceSale, db: db, installed: true, query: saleQuery, scan: scanSale}
}

// NewFineSource reads residence fines. Fines carry their own currency column.
func NewFineSource(db DBTX) *Source {
	return &Source{
		name: SourceFine, db: db, installed: true, scan: childScanner(domain.CategoryFine),
		query: func(role domain.EntityRole) string {
			return childQuery(role, "residence_fines", "fine_currency_id", "'Residence fine'")
		},
	}
}

// NewCancellationSource reads cancellation charges.
func NewCancellationSource(db DBTX) *Source {
	return &Source{
		name: SourceCancellation, db: db, installed: true, scan: childScanner(domain.CategoryCancellation),
		query: func(role domain.EntityRole) string {
			return childQuery(role, "residence_cancellations", "currency_id", "'Cancellation charge'")
		},
	}
}

// NewCustomChargeSource reads custom charges. The table is optional; when it is not
// installed every fetch reports domain.ErrFeatureNotInstalled without querying.
func NewCustomChargeSource(db DBTX, installed bool) *Source {
	return &Source{
		name: SourceCustomCharge, db: db, installed: installed, scan: childScanner(domain.CategoryCustomCharge),
		query: func(role domain.EntityRole) string {
			return childQuery(role, "residence_custom_charges", "currency_id", "c.description")
		},
	}
}

// NewStatutorySource reads the tawjeeh and insurance charges of residences.
func NewStatutorySource(db DBTX) *Source {
	return &Source{name: SourceStatutory, db: db, installed: true, query: statutoryQuery, scan: scanStatutory}
}

// NewPaymentSource reads general payments.
func NewPaymentSource(db DBTX) *Source {
	return &Source{
		name: SourcePayment, db: db, installed: true, withRole: true, scan: scanPayment,
		query: func(domain.EntityRole) string { return paymentQuery(false) },
	}
}

// NewPaymentOffsetSource reads payments recorded against a specific charge.
func NewPaymentOffsetSource(db DBTX) *Source {
	return &Source{
		name: SourcePaymentOffset, db: db, installed: true, withRole: true, scan: scanPayment,
		query: func(domain.EntityRole) string { return paymentQuery(true) },
	}
}

func scanSale(rows pgx.Rows, role domain.EntityRole) (domain.TransactionRecord, error) {
	var (
		id, entityID, currencyID, status, passenger string
		amount                                      pgtype.Numeric
		createdAt                                   time.Time
	)
	if err := rows.Scan(&id, &entityID, &amount, &currencyID, &status, &passenger, &createdAt); err != nil {
		return domain.TransactionRecord{}, err
	}
	value, err := numericToDecimal(amount)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("sale %s: %w", id, err)
	}

	return domain.TransactionRecord{
		SourceID:          id,
		Category:          domain.CategorySale,
		EntityID:          entityID,
		EntityRole:        role,
		CurrencyID:        currencyID,
		Amount:            value,
		OccurredAt:        createdAt,
		SourceStatus:      domain.SourceStatus(status),
		RecordID:          id,
		Identification:    "Residence sale",
		CounterpartyLabel: passenger,
	}, nil
}

func childScanner(category domain.Category) rowScanner {
	return func(rows pgx.Rows, role domain.EntityRole) (domain.TransactionRecord, error) {
		var (
			id, residenceID, entityID, currencyID, label, status, passenger string
			amount                                                          pgtype.Numeric
			createdAt                                                       time.Time
		)
		if err := rows.Scan(&id, &residenceID, &entityID, &amount, &currencyID, &label, &status, &passenger, &createdAt); err != nil {
			return domain.TransactionRecord{}, err
		}
		value, err := numericToDecimal(amount)
		if err != nil {
			return domain.TransactionRecord{}, fmt.Errorf("%s %s: %w", category, id, err)
		}

		return domain.TransactionRecord{
			SourceID:          id,
			Category:          category,
			EntityID:          entityID,
			EntityRole:        role,
			CurrencyID:        currencyID,
			Amount:            value,
			OccurredAt:        createdAt,
			SourceStatus:      domain.SourceStatus(status),
			RecordID:          residenceID,
			Identification:    label,
			CounterpartyLabel: passenger,
		}, nil
	}
}

func scanStatutory(rows pgx.Rows, role domain.EntityRole) (domain.TransactionRecord, error) {
	var (
		id, kind, entityID, currencyID, status, passenger string
		amount, fine                                      pgtype.Numeric
		included                                          pgtype.Bool
		createdAt                                         time.Time
	)
	if err := rows.Scan(&id, &kind, &entityID, &amount, &fine, &included, &currencyID, &status, &passenger, &createdAt); err != nil {
		return domain.TransactionRecord{}, err
	}
	value, err := numericToDecimal(amount)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("%s %s: %w", kind, id, err)
	}
	fineValue, err := numericToDecimal(fine)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("%s fine %s: %w", kind, id, err)
	}

	statutory := domain.StatutoryKind(kind)
	label := "Tawjeeh"
	if statutory == domain.StatutoryInsurance {
		label = "Insurance"
	}

	return domain.TransactionRecord{
		SourceID:          id + "/" + kind,
		Category:          domain.CategoryStatutory,
		Statutory:         statutory,
		EntityID:          entityID,
		EntityRole:        role,
		CurrencyID:        currencyID,
		Amount:            value,
		FineAmount:        fineValue,
		Unpriced:          !amount.Valid,
		OccurredAt:        createdAt,
		SourceStatus:      domain.SourceStatus(status),
		InclusionFlag:     boolPtr(included),
		RecordID:          id,
		Identification:    label,
		CounterpartyLabel: passenger,
	}, nil
}

func scanPayment(rows pgx.Rows, role domain.EntityRole) (domain.TransactionRecord, error) {
	var (
		id, entityID, residenceID, kind, referenceID, currencyID, remarks, passenger string
		amount                                                                       pgtype.Numeric
		createdAt                                                                    time.Time
	)
	if err := rows.Scan(&id, &entityID, &residenceID, &kind, &referenceID, &amount, &currencyID, &remarks, &passenger, &createdAt); err != nil {
		return domain.TransactionRecord{}, err
	}

	offset, err := domain.ParseOffsetKind(kind)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("%w: payment %s: unknown kind %q", domain.ErrInvalidRecord, id, kind)
	}
	value, err := numericToDecimal(amount)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("payment %s: %w", id, err)
	}
	category := domain.CategoryPayment
	if offset != domain.OffsetGeneral {
		category = domain.CategoryPaymentOffset
	}

	return domain.TransactionRecord{
		SourceID:          id,
		Category:          category,
		Offset:            offset,
		EntityID:          entityID,
		EntityRole:        role,
		CurrencyID:        currencyID,
		Amount:            value,
		OccurredAt:        createdAt,
		RecordID:          residenceID,
		ReferenceID:       referenceID,
		Identification:    remarks,
		CounterpartyLabel: passenger,
	}, nil
}
