package dto

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    domain.Code `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`

	// Set for overpayments so the client can offer the remaining amount.
	Outstanding *decimal.Decimal `json:"outstanding,omitempty"`
	Requested   *decimal.Decimal `json:"requested,omitempty"`
	// Set when one transaction source failed an aggregation.
	Source string `json:"source,omitempty"`
}

// ErrorFromDomain builds an error response carrying the structured details of err.
func ErrorFromDomain(message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Error:   message,
		Code:    domain.ErrorCode(err),
		Message: err.Error(),
	}

	var overpay *domain.OverpaymentError
	if errors.As(err, &overpay) {
		resp.Outstanding = &overpay.Outstanding
		resp.Requested = &overpay.Requested
	}
	var agg *domain.AggregationError
	if errors.As(err, &agg) {
		resp.Source = agg.Source
		// source failures are internal; keep driver messages out of responses
		resp.Message = "one or more transaction sources could not be read"
	}
	if resp.Code == domain.CodeInternal {
		resp.Message = ""
	}
	return resp
}

// BalanceResponse represents an outstanding balance in API responses.
type BalanceResponse struct {
	EntityID      string          `json:"entity_id"`
	EntityRole    string          `json:"entity_role"`
	DisplayName   string          `json:"display_name"`
	CurrencyID    string          `json:"currency_id"`
	TotalCharges  decimal.Decimal `json:"total_charges"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	Balance       decimal.Decimal `json:"balance"`
}

// BalanceFromDomain converts a domain balance to response.
func BalanceFromDomain(b domain.OutstandingBalance) BalanceResponse {
	return BalanceResponse{
		EntityID:      b.EntityID,
		EntityRole:    string(b.EntityRole),
		DisplayName:   b.DisplayName,
		CurrencyID:    b.CurrencyID,
		TotalCharges:  b.TotalCharges,
		TotalPayments: b.TotalPayments,
		Balance:       b.Balance,
	}
}

// OutstandingPageResponse is one page of outstanding balances.
type OutstandingPageResponse struct {
	Items  []BalanceResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Policy string            `json:"policy"`
}

// OutstandingPageFromUseCase converts a use case page to response.
func OutstandingPageFromUseCase(p *usecase.OutstandingPage) OutstandingPageResponse {
	items := make([]BalanceResponse, len(p.Items))
	for i, b := range p.Items {
		items[i] = BalanceFromDomain(b)
	}
	return OutstandingPageResponse{
		Items:  items,
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
		Policy: string(p.Policy),
	}
}

// EntryResponse represents one ledger entry in API responses.
type EntryResponse struct {
	SourceID          string          `json:"source_id"`
	RecordID          string          `json:"record_id,omitempty"`
	Category          string          `json:"category"`
	Line              string          `json:"line"`
	Direction         string          `json:"direction"`
	Amount            decimal.Decimal `json:"amount"`
	CurrencyID        string          `json:"currency_id"`
	OccurredAt        time.Time       `json:"occurred_at"`
	Identification    string          `json:"identification,omitempty"`
	CounterpartyLabel string          `json:"counterparty_label,omitempty"`
	Matched           bool            `json:"matched"`
}

// LedgerResponse represents an entity ledger in API responses.
type LedgerResponse struct {
	Balance BalanceResponse `json:"balance"`
	Entries []EntryResponse `json:"entries"`
}

// LedgerFromDomain converts a domain ledger to response.
func LedgerFromDomain(l *domain.EntityLedger) LedgerResponse {
	entries := make([]EntryResponse, len(l.Entries))
	for i, e := range l.Entries {
		entries[i] = EntryResponse{
			SourceID:          e.SourceID,
			RecordID:          e.RecordID,
			Category:          string(e.Category),
			Line:              string(e.Line),
			Direction:         string(e.Direction),
			Amount:            e.Amount,
			CurrencyID:        e.CurrencyID,
			OccurredAt:        e.OccurredAt,
			Identification:    e.Identification,
			CounterpartyLabel: e.CounterpartyLabel,
			Matched:           e.Matched,
		}
	}
	return LedgerResponse{Balance: BalanceFromDomain(l.Balance), Entries: entries}
}

// MonthResponse is the activity of one calendar month.
type MonthResponse struct {
	Month    string          `json:"month"`
	Charges  decimal.Decimal `json:"charges"`
	Payments decimal.Decimal `json:"payments"`
	Net      decimal.Decimal `json:"net"`
}

// TrendFromDomain converts monthly totals to response, months formatted as YYYY-MM.
func TrendFromDomain(months []domain.MonthlyTotal) []MonthResponse {
	out := make([]MonthResponse, len(months))
	for i, m := range months {
		out[i] = MonthResponse{
			Month:    m.Month.Format("2006-01"),
			Charges:  m.Charges,
			Payments: m.Payments,
			Net:      m.Net,
		}
	}
	return out
}

// LineResponse is one line of a residence breakdown.
type LineResponse struct {
	Line        string          `json:"line"`
	CurrencyID  string          `json:"currency_id"`
	Charges     decimal.Decimal `json:"charges"`
	Payments    decimal.Decimal `json:"payments"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// TotalResponse is the breakdown total in one currency.
type TotalResponse struct {
	CurrencyID  string          `json:"currency_id"`
	Charges     decimal.Decimal `json:"charges"`
	Payments    decimal.Decimal `json:"payments"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// BreakdownResponse represents a residence breakdown in API responses.
type BreakdownResponse struct {
	RecordID      string          `json:"record_id"`
	EntityID      string          `json:"entity_id"`
	EntityRole    string          `json:"entity_role"`
	PassengerName string          `json:"passenger_name"`
	Lines         []LineResponse  `json:"lines"`
	Totals        []TotalResponse `json:"totals"`
}

// BreakdownFromDomain converts a domain breakdown to response.
func BreakdownFromDomain(b *domain.UnifiedBreakdown) BreakdownResponse {
	lines := make([]LineResponse, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = LineResponse{
			Line:        string(l.Line),
			CurrencyID:  l.CurrencyID,
			Charges:     l.Charges,
			Payments:    l.Payments,
			Outstanding: l.Outstanding,
		}
	}
	totals := make([]TotalResponse, len(b.Totals))
	for i, t := range b.Totals {
		totals[i] = TotalResponse{
			CurrencyID:  t.CurrencyID,
			Charges:     t.Charges,
			Payments:    t.Payments,
			Outstanding: t.Outstanding,
		}
	}
	return BreakdownResponse{
		RecordID:      b.RecordID,
		EntityID:      b.EntityID,
		EntityRole:    string(b.EntityRole),
		PassengerName: b.PassengerName,
		Lines:         lines,
		Totals:        totals,
	}
}

// PaymentResponse represents a recorded payment in API responses.
type PaymentResponse struct {
	ID          string          `json:"id"`
	EntityRole  string          `json:"entity_role"`
	EntityID    string          `json:"entity_id"`
	RecordID    string          `json:"record_id,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	AccountID   string          `json:"account_id"`
	Remarks     string          `json:"remarks,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PaymentFromDomain converts a domain payment to response.
func PaymentFromDomain(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		EntityRole:  string(p.EntityRole),
		EntityID:    p.EntityID,
		RecordID:    p.RecordID,
		Kind:        string(p.Kind),
		ReferenceID: p.ReferenceID,
		Amount:      p.Amount,
		CurrencyID:  p.CurrencyID,
		AccountID:   p.AccountID,
		Remarks:     p.Remarks,
		CreatedAt:   p.CreatedAt,
	}
}
