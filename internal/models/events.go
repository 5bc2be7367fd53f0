package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeTransactionPaid        = "TRANSACTION_PAID"
	EventTypeCommitFailed           = "COMMIT_FAILED"
	EventTypeStockDeductionOrphaned = "STOCK_DEDUCTION_ORPHANED"
	EventTypeStockCompensated       = "STOCK_COMPENSATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockMovement is a stock adjustment that was applied upstream
type StockMovement struct {
	CatalogID string `json:"catalog_id"`
	Name      string `json:"name"`
	Delta     int    `json:"delta"`
}

// TransactionPaidEvent published after the ledger row is written
type TransactionPaidEvent struct {
	BaseEvent
	TransactionID  int64           `json:"transaction_id"`
	PrescriptionID string          `json:"prescription_id"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Items          []PricedItem    `json:"items"`
}

// CommitFailedEvent published for every failed commit
type CommitFailedEvent struct {
	BaseEvent
	PrescriptionID string      `json:"prescription_id"`
	Kind           FailureKind `json:"kind"`
	Reason         string      `json:"reason"`
}

// StockDeductionOrphanedEvent published when stock was deducted but no
// transaction record exists for it
type StockDeductionOrphanedEvent struct {
	BaseEvent
	PrescriptionID string          `json:"prescription_id"`
	Reason         string          `json:"reason"`
	Applied        []StockMovement `json:"applied"`
}

// StockCompensatedEvent published after deductions were reversed
type StockCompensatedEvent struct {
	BaseEvent
	PrescriptionID string          `json:"prescription_id"`
	Reversed       []StockMovement `json:"reversed"`
}
