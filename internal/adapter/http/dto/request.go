package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// RecordPaymentRequest represents a request to record a payment.
type RecordPaymentRequest struct {
	EntityRole  string          `json:"entity_role"`
	EntityID    string          `json:"entity_id"`
	RecordID    string          `json:"record_id,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	AccountID   string          `json:"account_id"`
	Remarks     string          `json:"remarks,omitempty"`
}

// ToUseCaseInput converts to use case input.
// An omitted entity_role means a customer payment.
func (r *RecordPaymentRequest) ToUseCaseInput(meta domain.AuditMeta) (usecase.RecordPaymentInput, error) {
	role := domain.RoleCustomer
	if r.EntityRole != "" {
		parsed, err := domain.ParseEntityRole(r.EntityRole)
		if err != nil {
			return usecase.RecordPaymentInput{}, err
		}
		role = parsed
	}

	kind, err := domain.ParseOffsetKind(r.Kind)
	if err != nil {
		return usecase.RecordPaymentInput{}, err
	}

	return usecase.RecordPaymentInput{
		EntityRole:  role,
		EntityID:    r.EntityID,
		RecordID:    r.RecordID,
		Kind:        kind,
		ReferenceID: r.ReferenceID,
		Amount:      r.Amount,
		CurrencyID:  r.CurrencyID,
		AccountID:   r.AccountID,
		Remarks:     r.Remarks,
		Audit:       meta,
	}, nil
}
