package domain

import "time"

// Event types
const (
	EventTypePaymentRecorded  = "payment.recorded"
	EventTypeResidenceSettled = "residence.settled"
)

// Aggregate types
const (
	AggregateTypePayment   = "payment"
	AggregateTypeResidence = "residence"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// PaymentRecordedEvent payload
type PaymentRecordedEvent struct {
	PaymentID   string `json:"payment_id"`
	EntityID    string `json:"entity_id"`
	EntityRole  string `json:"entity_role"`
	RecordID    string `json:"record_id,omitempty"`
	Kind        string `json:"kind,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      string `json:"amount"`
	CurrencyID  string `json:"currency_id"`
	Outstanding string `json:"outstanding_after"`
}

// ResidenceSettledEvent payload
type ResidenceSettledEvent struct {
	RecordID  string `json:"record_id"`
	PaymentID string `json:"payment_id"`
}
