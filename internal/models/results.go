package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FailureKind classifies why a preview or commit did not succeed
type FailureKind string

const (
	FailureUpstreamUnreachable FailureKind = "UPSTREAM_UNREACHABLE"
	FailureInvalidPrescription FailureKind = "INVALID_PRESCRIPTION"
	FailureCatalogMismatch     FailureKind = "CATALOG_MISMATCH"
	FailureInsufficientStock   FailureKind = "INSUFFICIENT_STOCK"
	FailureInsufficientPayment FailureKind = "INSUFFICIENT_PAYMENT"
	FailureStockUpdate         FailureKind = "STOCK_UPDATE_FAILED"
	FailurePersistence         FailureKind = "PERSISTENCE_FAILURE"
)

// Failure reasons reported to callers
const (
	ReasonAuthorityUnreachable = "authority unreachable"
	ReasonInvalidPrescription  = "invalid prescription"
	ReasonEmptyPrescription    = "empty prescription"
	ReasonCatalogUnreachable   = "catalog unreachable"
	ReasonItemNotCarried       = "item not carried"
	ReasonInsufficientStock    = "insufficient stock"
	ReasonInsufficientPayment  = "insufficient payment"
	ReasonStockUpdateFailed    = "stock update failed"
	ReasonLedgerWriteFailed    = "ledger write failed"
)

// Failure is the in-band error carried by PreviewResult and CommitResult
type Failure struct {
	Kind       FailureKind      `json:"kind"`
	Reason     string           `json:"reason"`
	Item       string           `json:"item,omitempty"`
	Available  *int             `json:"available,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

// Message renders the failure as a single human-readable line
func (f *Failure) Message() string {
	switch {
	case f.Item != "" && f.Available != nil:
		return fmt.Sprintf("Error: %s for %s (available: %d)", f.Reason, f.Item, *f.Available)
	case f.Item != "":
		return fmt.Sprintf("Error: %s: %s", f.Reason, f.Item)
	case f.TotalPrice != nil:
		return fmt.Sprintf("Error: %s. Total: %s", f.Reason, f.TotalPrice.String())
	default:
		return "Error: " + f.Reason
	}
}

// PreviewResult is the outcome of a dry-run pricing
type PreviewResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	PatientName string          `json:"patient_name,omitempty"`
	Items       []PricedItem    `json:"items,omitempty"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// CommitResult is the outcome of a paid transaction attempt
type CommitResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Failure       *Failure        `json:"failure,omitempty"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	Summary       []string        `json:"summary,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	ChangeDue     decimal.Decimal `json:"change_due"`
}
