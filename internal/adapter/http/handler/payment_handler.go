package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/adapter/http/dto"
	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// PaymentService records payments.
type PaymentService interface {
	RecordPayment(ctx context.Context, input usecase.RecordPaymentInput) (*domain.Payment, error)
}

// PaymentHandler handles payment requests.
type PaymentHandler struct {
	service PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// Record records a payment against the live outstanding balance.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(auditMeta(r))
	if err != nil {
		writeDomainError(w, "invalid payment", err)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		if mapDomainError(err) == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("entity_id", input.EntityID).Msg("record payment failed")
		}
		writeDomainError(w, "failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentFromDomain(payment))
}
