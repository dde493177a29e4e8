package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultAggregationTimeout bounds one fan-out across all sources.
	DefaultAggregationTimeout = 15 * time.Second

	// TrendMonths is the window of the monthly trend view.
	TrendMonths = 12

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyPending is stored under a key while its first request is running.
	IdempotencyPending = "processing"
)

// View names reported to the Recorder.
const (
	viewOutstanding = "outstanding"
	viewLedger      = "ledger"
	viewBreakdown   = "breakdown"
	viewTrend       = "trend"
	viewPayment     = "payment"
)
