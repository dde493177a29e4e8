package usecase

import (
	"context"
	"time"

	"github.com/iho/agencyledger/internal/domain"
)

// TransactionSource reads raw records of one category for a scope.
// Every call re-queries current state. Sources filter by currency at the store and
// return domain.ErrFeatureNotInstalled when their optional table is absent.
type TransactionSource interface {
	Name() string
	Fetch(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error)
}

// SourceRegistry returns the sources that apply to an entity role.
type SourceRegistry interface {
	For(role domain.EntityRole) []TransactionSource
}

// EntityRepository defines data access for customers, suppliers and affiliates.
type EntityRepository interface {
	GetByID(ctx context.Context, role domain.EntityRole, id string) (*domain.Entity, error)
	ListByIDs(ctx context.Context, role domain.EntityRole, ids []string) ([]*domain.Entity, error)
}

// CurrencyRepository defines data access for currencies.
type CurrencyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Currency, error)
}

// ResidenceRepository defines data access for residences.
type ResidenceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Residence, error)
	// Currencies lists every currency the residence has charges or payments in.
	Currencies(ctx context.Context, id string) ([]string, error)
	MarkSettled(ctx context.Context, tx Transaction, id string, settled bool) error
}

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx Transaction, payment *domain.Payment) error
	// LockEntity serializes payment recording for one entity until tx ends.
	LockEntity(ctx context.Context, tx Transaction, role domain.EntityRole, id string) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient store failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the key can be reused.
	Release(ctx context.Context, key string) error
}

// Recorder receives engine measurements.
type Recorder interface {
	ObserveSourceQuery(source string, d time.Duration, err error)
	ObserveAggregation(view string, d time.Duration, err error)
	PaymentRecorded(currencyID string)
	OverpaymentRejected()
}

// NopRecorder discards measurements.
type NopRecorder struct{}

func (NopRecorder) ObserveSourceQuery(string, time.Duration, error) {}
func (NopRecorder) ObserveAggregation(string, time.Duration, error) {}
func (NopRecorder) PaymentRecorded(string)                          {}
func (NopRecorder) OverpaymentRejected()                            {}
