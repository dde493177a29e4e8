package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/domain"
)

// ReconciliationUseCase serves the read-only balance views.
type ReconciliationUseCase struct {
	aggregator    *Aggregator
	entityRepo    EntityRepository
	currencyRepo  CurrencyRepository
	residenceRepo ResidenceRepository
	policy        domain.OutstandingPolicy
	recorder      Recorder
	logger        zerolog.Logger
	now           func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	aggregator *Aggregator,
	entityRepo EntityRepository,
	currencyRepo CurrencyRepository,
	residenceRepo ResidenceRepository,
	policy domain.OutstandingPolicy,
	recorder Recorder,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if policy == "" {
		policy = domain.OutstandingNonZero
	}
	return &ReconciliationUseCase{
		aggregator:    aggregator,
		entityRepo:    entityRepo,
		currencyRepo:  currencyRepo,
		residenceRepo: residenceRepo,
		policy:        policy,
		recorder:      recorder,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// OutstandingInput filters the outstanding list.
type OutstandingInput struct {
	Role       domain.EntityRole
	CurrencyID string
	EntityID   string
	Search     string
	Limit      int
	Offset     int
}

// OutstandingPage is one page of the outstanding list.
type OutstandingPage struct {
	Items  []domain.OutstandingBalance
	Total  int
	Limit  int
	Offset int
	Policy domain.OutstandingPolicy
}

// GetOutstandingEntities lists entities whose balance in a currency is outstanding, sorted by name.
// Balances are computed for every entity before filtering and paginating.
func (uc *ReconciliationUseCase) GetOutstandingEntities(ctx context.Context, input OutstandingInput) (_ *OutstandingPage, err error) {
	start := time.Now()
	defer func() { uc.recorder.ObserveAggregation(viewOutstanding, time.Since(start), err) }()

	if input.Role == "" {
		input.Role = domain.RoleCustomer
	}
	scope := domain.Scope{Role: input.Role, EntityID: input.EntityID, CurrencyID: input.CurrencyID}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	search, err := domain.NormalizeSearch(input.Search)
	if err != nil {
		return nil, err
	}
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}

	if _, err := uc.currencyRepo.GetByID(ctx, input.CurrencyID); err != nil {
		return nil, err
	}

	var ledgers map[string]domain.EntityLedger
	if scope.Batch() {
		ledgers, err = uc.aggregator.AggregateByEntity(ctx, scope)
	} else {
		if _, err := uc.entityRepo.GetByID(ctx, scope.Role, scope.EntityID); err != nil {
			return nil, err
		}
		var ledger domain.EntityLedger
		ledger, err = uc.aggregator.Aggregate(ctx, scope)
		ledgers = map[string]domain.EntityLedger{scope.EntityID: ledger}
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(ledgers))
	for id, l := range ledgers {
		if uc.policy.Includes(l.Balance.Balance) {
			ids = append(ids, id)
		}
	}

	names, err := uc.displayNames(ctx, scope.Role, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OutstandingBalance, 0, len(ids))
	for _, id := range ids {
		b := ledgers[id].Balance
		b.DisplayName = names[id]
		if search != "" && !strings.Contains(strings.ToLower(b.DisplayName), search) && strings.ToLower(id) != search {
			continue
		}
		items = append(items, b)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayName != items[j].DisplayName {
			return items[i].DisplayName < items[j].DisplayName
		}
		return items[i].EntityID < items[j].EntityID
	})

	page := &OutstandingPage{Total: len(items), Limit: limit, Offset: offset, Policy: uc.policy}
	if offset < len(items) {
		end := min(offset+limit, len(items))
		page.Items = items[offset:end]
	} else {
		page.Items = []domain.OutstandingBalance{}
	}
	return page, nil
}

func (uc *ReconciliationUseCase) displayNames(ctx context.Context, role domain.EntityRole, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	entities, err := uc.entityRepo.ListByIDs(ctx, role, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		names[e.ID] = e.Name
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			uc.logger.Warn().Str("entity_id", id).Str("role", string(role)).Msg("balance for unknown entity")
			names[id] = id
		}
	}
	return names, nil
}

// LedgerInput selects one entity ledger.
type LedgerInput struct {
	Role       domain.EntityRole
	EntityID   string
	CurrencyID string
	SubParty   string
}

// GetEntityLedger returns the chronological ledger of one entity with its balance.
func (uc *ReconciliationUseCase) GetEntityLedger(ctx context.Context, input LedgerInput) (_ *domain.EntityLedger, err error) {
	start := time.Now()
	defer func() { uc.recorder.ObserveAggregation(viewLedger, time.Since(start), err) }()

	scope, entity, err := uc.entityScope(ctx, input)
	if err != nil {
		return nil, err
	}

	ledger, err := uc.aggregator.Aggregate(ctx, scope)
	if err != nil {
		return nil, err
	}
	ledger.Balance.DisplayName = entity.Name
	return &ledger, nil
}

// GetMonthlyTrend returns charges and payments per calendar month over the trailing year.
func (uc *ReconciliationUseCase) GetMonthlyTrend(ctx context.Context, input LedgerInput) (_ []domain.MonthlyTotal, err error) {
	start := time.Now()
	defer func() { uc.recorder.ObserveAggregation(viewTrend, time.Since(start), err) }()

	scope, _, err := uc.entityScope(ctx, input)
	if err != nil {
		return nil, err
	}

	ledger, err := uc.aggregator.Aggregate(ctx, scope)
	if err != nil {
		return nil, err
	}
	return domain.BuildTrend(ledger.Entries, uc.now(), TrendMonths), nil
}

// entityScope validates input and checks that currency and entity exist before any aggregation.
func (uc *ReconciliationUseCase) entityScope(ctx context.Context, input LedgerInput) (domain.Scope, *domain.Entity, error) {
	if strings.TrimSpace(input.EntityID) == "" {
		return domain.Scope{}, nil, domain.ErrInvalidEntityID
	}
	scope := domain.Scope{
		Role:       input.Role,
		EntityID:   input.EntityID,
		CurrencyID: input.CurrencyID,
		SubParty:   strings.TrimSpace(input.SubParty),
	}
	if err := scope.Validate(); err != nil {
		return domain.Scope{}, nil, err
	}

	if _, err := uc.currencyRepo.GetByID(ctx, scope.CurrencyID); err != nil {
		return domain.Scope{}, nil, err
	}
	entity, err := uc.entityRepo.GetByID(ctx, scope.Role, scope.EntityID)
	if err != nil {
		return domain.Scope{}, nil, err
	}
	return scope, entity, nil
}

// GetUnifiedBreakdown itemizes the outstanding amount of one residence for its billing party.
func (uc *ReconciliationUseCase) GetUnifiedBreakdown(ctx context.Context, recordID string) (_ *domain.UnifiedBreakdown, err error) {
	start := time.Now()
	defer func() { uc.recorder.ObserveAggregation(viewBreakdown, time.Since(start), err) }()

	if strings.TrimSpace(recordID) == "" {
		return nil, domain.ErrInvalidRecordID
	}

	residence, err := uc.residenceRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	currencies, err := uc.residenceRepo.Currencies(ctx, recordID)
	if err != nil {
		return nil, err
	}
	sort.Strings(currencies)

	role, entityID := residence.BillingParty()
	breakdown := &domain.UnifiedBreakdown{
		RecordID:      residence.ID,
		EntityID:      entityID,
		EntityRole:    role,
		PassengerName: residence.PassengerName,
		Lines:         []domain.LineBalance{},
		Totals:        []domain.CurrencyTotal{},
	}

	for _, currencyID := range currencies {
		ledger, err := uc.aggregator.Aggregate(ctx, domain.Scope{
			Role:       role,
			EntityID:   entityID,
			CurrencyID: currencyID,
			RecordID:   residence.ID,
		})
		if err != nil {
			return nil, err
		}
		lines, total := domain.BuildLines(currencyID, ledger.Entries)
		breakdown.Lines = append(breakdown.Lines, lines...)
		breakdown.Totals = append(breakdown.Totals, total)
	}

	return breakdown, nil
}
