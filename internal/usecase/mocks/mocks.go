package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// MockTransactionSource is an in-memory TransactionSource.
// Without FetchFunc it filters Records by scope the way the SQL sources do.
type MockTransactionSource struct {
	mu      sync.RWMutex
	name    string
	Records []domain.TransactionRecord
	Calls   int

	FetchFunc func(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error)
}

func NewMockTransactionSource(name string, records ...domain.TransactionRecord) *MockTransactionSource {
	return &MockTransactionSource{name: name, Records: records}
}

func (m *MockTransactionSource) Name() string { return m.name }

func (m *MockTransactionSource) Add(records ...domain.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, records...)
}

func (m *MockTransactionSource) Fetch(ctx context.Context, scope domain.Scope) ([]domain.TransactionRecord, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, scope)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.TransactionRecord
	for _, r := range m.Records {
		if r.CurrencyID != scope.CurrencyID || r.EntityRole != scope.Role {
			continue
		}
		if scope.EntityID != "" && r.EntityID != scope.EntityID {
			continue
		}
		if scope.RecordID != "" && r.RecordID != scope.RecordID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// MockSourceRegistry returns the same sources for every role.
type MockSourceRegistry struct {
	Sources []usecase.TransactionSource

	ForFunc func(role domain.EntityRole) []usecase.TransactionSource
}

func NewMockSourceRegistry(sources ...usecase.TransactionSource) *MockSourceRegistry {
	return &MockSourceRegistry{Sources: sources}
}

func (m *MockSourceRegistry) For(role domain.EntityRole) []usecase.TransactionSource {
	if m.ForFunc != nil {
		return m.ForFunc(role)
	}
	return m.Sources
}

// MockEntityRepository is a mock implementation of EntityRepository.
type MockEntityRepository struct {
	mu       sync.RWMutex
	entities map[string]*domain.Entity

	GetByIDFunc   func(ctx context.Context, role domain.EntityRole, id string) (*domain.Entity, error)
	ListByIDsFunc func(ctx context.Context, role domain.EntityRole, ids []string) ([]*domain.Entity, error)
}

func NewMockEntityRepository(entities ...*domain.Entity) *MockEntityRepository {
	m := &MockEntityRepository{entities: make(map[string]*domain.Entity)}
	for _, e := range entities {
		m.entities[entityKey(e.Role, e.ID)] = e
	}
	return m
}

func entityKey(role domain.EntityRole, id string) string { return string(role) + "/" + id }

func (m *MockEntityRepository) GetByID(ctx context.Context, role domain.EntityRole, id string) (*domain.Entity, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, role, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entities[entityKey(role, id)]; ok {
		return e, nil
	}
	return nil, domain.ErrEntityNotFound
}

func (m *MockEntityRepository) ListByIDs(ctx context.Context, role domain.EntityRole, ids []string) ([]*domain.Entity, error) {
	if m.ListByIDsFunc != nil {
		return m.ListByIDsFunc(ctx, role, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Entity
	for _, id := range ids {
		if e, ok := m.entities[entityKey(role, id)]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// MockCurrencyRepository is a mock implementation of CurrencyRepository.
type MockCurrencyRepository struct {
	currencies map[string]*domain.Currency

	GetByIDFunc func(ctx context.Context, id string) (*domain.Currency, error)
}

func NewMockCurrencyRepository(ids ...string) *MockCurrencyRepository {
	m := &MockCurrencyRepository{currencies: make(map[string]*domain.Currency)}
	for _, id := range ids {
		m.currencies[id] = &domain.Currency{ID: id, Code: id}
	}
	return m
}

func (m *MockCurrencyRepository) GetByID(ctx context.Context, id string) (*domain.Currency, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if c, ok := m.currencies[id]; ok {
		return c, nil
	}
	return nil, domain.ErrCurrencyNotFound
}

// MockResidenceRepository is a mock implementation of ResidenceRepository.
type MockResidenceRepository struct {
	mu         sync.RWMutex
	residences map[string]*domain.Residence
	currencies map[string][]string

	GetByIDFunc     func(ctx context.Context, id string) (*domain.Residence, error)
	CurrenciesFunc  func(ctx context.Context, id string) ([]string, error)
	MarkSettledFunc func(ctx context.Context, tx usecase.Transaction, id string, settled bool) error
}

func NewMockResidenceRepository() *MockResidenceRepository {
	return &MockResidenceRepository{
		residences: make(map[string]*domain.Residence),
		currencies: make(map[string][]string),
	}
}

// Put stores a residence with the currencies it has activity in.
func (m *MockResidenceRepository) Put(r *domain.Residence, currencies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.residences[r.ID] = r
	m.currencies[r.ID] = currencies
}

func (m *MockResidenceRepository) GetByID(ctx context.Context, id string) (*domain.Residence, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.residences[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockResidenceRepository) Currencies(ctx context.Context, id string) ([]string, error) {
	if m.CurrenciesFunc != nil {
		return m.CurrenciesFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.currencies[id]...), nil
}

func (m *MockResidenceRepository) MarkSettled(ctx context.Context, tx usecase.Transaction, id string, settled bool) error {
	if m.MarkSettledFunc != nil {
		return m.MarkSettledFunc(ctx, tx, id, settled)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.residences[id]; ok {
		r.Settled = settled
		return nil
	}
	return domain.ErrRecordNotFound
}

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments []*domain.Payment
	Locks    int

	CreateFunc     func(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error
	LockEntityFunc func(ctx context.Context, tx usecase.Transaction, role domain.EntityRole, id string) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{}
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, payment)
	return nil
}

func (m *MockPaymentRepository) LockEntity(ctx context.Context, tx usecase.Transaction, role domain.EntityRole, id string) error {
	if m.LockEntityFunc != nil {
		return m.LockEntityFunc(ctx, tx, role, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locks++
	return nil
}

// Payments returns the payments created so far.
func (m *MockPaymentRepository) Payments() []*domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Payment(nil), m.payments...)
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc  func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublishedFunc func(ctx context.Context, before time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if m.DeletePublishedFunc != nil {
		return m.DeletePublishedFunc(ctx, before)
	}
	return nil
}

// Events returns the events created so far.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.Mutex
	Logs []*domain.AuditLog

	CreateTxFunc func(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	Committed    bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockRetrier runs the operation once unless RetryFunc is set.
type MockRetrier struct {
	RetryFunc func(ctx context.Context, operation func() error) error
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "mock-id-" + strconv.Itoa(m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Get returns the stored value for key.
func (m *MockIdempotencyStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// MockRecorder counts measurements.
type MockRecorder struct {
	mu           sync.Mutex
	SourceErrors map[string]int
	Views        map[string]int
	Payments     int
	Overpayments int
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{SourceErrors: map[string]int{}, Views: map[string]int{}}
}

func (m *MockRecorder) ObserveSourceQuery(source string, d time.Duration, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceErrors[source]++
}

func (m *MockRecorder) ObserveAggregation(view string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Views[view]++
}

func (m *MockRecorder) PaymentRecorded(currencyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments++
}

func (m *MockRecorder) OverpaymentRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Overpayments++
}
