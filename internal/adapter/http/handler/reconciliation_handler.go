package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/agencyledger/internal/adapter/http/dto"
	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// ReconciliationService serves the balance views.
type ReconciliationService interface {
	GetOutstandingEntities(ctx context.Context, input usecase.OutstandingInput) (*usecase.OutstandingPage, error)
	GetEntityLedger(ctx context.Context, input usecase.LedgerInput) (*domain.EntityLedger, error)
	GetMonthlyTrend(ctx context.Context, input usecase.LedgerInput) ([]domain.MonthlyTotal, error)
	GetUnifiedBreakdown(ctx context.Context, recordID string) (*domain.UnifiedBreakdown, error)
}

// ReconciliationHandler handles balance view requests.
type ReconciliationHandler struct {
	service ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(service ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// ListOutstanding lists entities with an outstanding balance in one currency.
func (h *ReconciliationHandler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	role, err := parseRole(q.Get("role"))
	if err != nil {
		writeDomainError(w, "invalid role", err)
		return
	}

	page, err := h.service.GetOutstandingEntities(r.Context(), usecase.OutstandingInput{
		Role:       role,
		CurrencyID: q.Get("currency_id"),
		EntityID:   q.Get("entity_id"),
		Search:     q.Get("search"),
		Limit:      parseIntQuery(r, "limit", 0),
		Offset:     parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list outstanding balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OutstandingPageFromUseCase(page))
}

// GetLedger returns the chronological ledger of one entity.
func (h *ReconciliationHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	input, err := ledgerInput(r)
	if err != nil {
		writeDomainError(w, "invalid role", err)
		return
	}

	ledger, err := h.service.GetEntityLedger(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to get ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(ledger))
}

// GetTrend returns the monthly activity of one entity over the trailing year.
func (h *ReconciliationHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	input, err := ledgerInput(r)
	if err != nil {
		writeDomainError(w, "invalid role", err)
		return
	}

	months, err := h.service.GetMonthlyTrend(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to get trend", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrendFromDomain(months))
}

// GetBreakdown itemizes what is still owed on one residence.
func (h *ReconciliationHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing residence ID", "")
		return
	}

	breakdown, err := h.service.GetUnifiedBreakdown(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get breakdown", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BreakdownFromDomain(breakdown))
}

func ledgerInput(r *http.Request) (usecase.LedgerInput, error) {
	role, err := domain.ParseEntityRole(chi.URLParam(r, "role"))
	if err != nil {
		return usecase.LedgerInput{}, err
	}
	return usecase.LedgerInput{
		Role:       role,
		EntityID:   chi.URLParam(r, "id"),
		CurrencyID: r.URL.Query().Get("currency_id"),
		SubParty:   r.URL.Query().Get("passenger"),
	}, nil
}
