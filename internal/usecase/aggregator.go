package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/agencyledger/internal/domain"
)

// Aggregator turns source records into ledgers and balances.
type Aggregator struct {
	sources  SourceRegistry
	policy   domain.ChargePolicy
	timeout  time.Duration
	recorder Recorder
	logger   zerolog.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(
	sources SourceRegistry,
	policy domain.ChargePolicy,
	timeout time.Duration,
	recorder Recorder,
	logger zerolog.Logger,
) *Aggregator {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Aggregator{
		sources:  sources,
		policy:   policy,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

// Collect queries every source of the scope's role concurrently.
// The first failing source cancels the others and fails the whole collection.
func (a *Aggregator) Collect(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	sources := a.sources.For(scope.Role)
	results := make([][]domain.TransactionRecord, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			records, err := src.Fetch(gctx, scope)
			a.recorder.ObserveSourceQuery(src.Name(), time.Since(start), err)

			if errors.Is(err, domain.ErrFeatureNotInstalled) {
				a.logger.Debug().Str("source", src.Name()).Msg("optional source not installed")
				return nil
			}
			if err != nil {
				return &domain.AggregationError{Source: src.Name(), Err: err}
			}
			if err := checkScope(scope, records); err != nil {
				return &domain.AggregationError{Source: src.Name(), Err: err}
			}

			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	records := make([]domain.TransactionRecord, 0, total)
	for _, r := range results {
		records = append(records, r...)
	}
	return records, nil
}

// checkScope rejects rows a source returned outside the requested scope.
func checkScope(scope domain.Scope, records []domain.TransactionRecord) error {
	for _, rec := range records {
		if rec.CurrencyID != scope.CurrencyID {
			return fmt.Errorf("%w: %s in currency %s, want %s", domain.ErrInvalidRecord, rec.SourceID, rec.CurrencyID, scope.CurrencyID)
		}
		if !scope.Batch() && rec.EntityID != scope.EntityID {
			return fmt.Errorf("%w: %s belongs to entity %s", domain.ErrInvalidRecord, rec.SourceID, rec.EntityID)
		}
		if scope.RecordID != "" && rec.RecordID != scope.RecordID {
			return fmt.Errorf("%w: %s belongs to record %s", domain.ErrInvalidRecord, rec.SourceID, rec.RecordID)
		}
	}
	return nil
}

// Reduce resolves, matches and sums records of a single entity.
// The result does not depend on the order of records.
func (a *Aggregator) Reduce(scope domain.Scope, records []domain.TransactionRecord) (domain.EntityLedger, error) {
	entries := make([]domain.LedgerEntry, 0, len(records))
	for _, rec := range records {
		if scope.SubParty != "" && rec.CounterpartyLabel != scope.SubParty {
			continue
		}
		entry, err := a.policy.Resolve(rec)
		if err != nil {
			return domain.EntityLedger{}, &domain.AggregationError{Source: string(rec.Category), Err: err}
		}
		entries = append(entries, entry)
	}

	domain.MatchOffsets(entries)
	domain.SortEntries(entries)

	return domain.EntityLedger{
		Balance: domain.NewOutstandingBalance(scope.Role, scope.EntityID, scope.CurrencyID, entries),
		Entries: entries,
	}, nil
}

// Aggregate computes the ledger of one entity.
func (a *Aggregator) Aggregate(ctx context.Context, scope domain.Scope) (domain.EntityLedger, error) {
	if scope.Batch() {
		return domain.EntityLedger{}, domain.ErrInvalidEntityID
	}

	records, err := a.Collect(ctx, scope)
	if err != nil {
		return domain.EntityLedger{}, err
	}
	return a.Reduce(scope, records)
}

// AggregateByEntity computes the ledger of every entity of the scope's role with activity in its currency.
// Each entity goes through the same Reduce as Aggregate, so both paths agree.
func (a *Aggregator) AggregateByEntity(ctx context.Context, scope domain.Scope) (map[string]domain.EntityLedger, error) {
	records, err := a.Collect(ctx, scope)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.TransactionRecord)
	for _, rec := range records {
		grouped[rec.EntityID] = append(grouped[rec.EntityID], rec)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]domain.EntityLedger, len(grouped))
	for _, id := range ids {
		s := scope
		s.EntityID = id
		ledger, err := a.Reduce(s, grouped[id])
		if err != nil {
			return nil, err
		}
		out[id] = ledger
	}
	return out, nil
}
