package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PrescriptionLine is one prescribed medicine, normalized by the authority
// adapter. Exactly one of CatalogID or Name is expected to be set.
type PrescriptionLine struct {
	CatalogID string `json:"catalog_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Label returns the identifier used in failure messages
func (l PrescriptionLine) Label() string {
	if l.Name != "" {
		return l.Name
	}
	return l.CatalogID
}

// Prescription is the authority's answer for one prescription id
type Prescription struct {
	ID          string             `json:"id"`
	Valid       bool               `json:"is_valid"`
	PatientName string             `json:"patient_name,omitempty"`
	Lines       []PrescriptionLine `json:"lines"`
}

// CatalogEntry is one medicine as reported by the inventory catalog
type CatalogEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"price"`
	StockOnHand int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
}

// PricedItem is a resolved prescription line
type PricedItem struct {
	CatalogID string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewPricedItem prices a quantity of a catalog entry
func NewPricedItem(entry CatalogEntry, quantity int) PricedItem {
	return PricedItem{
		CatalogID: entry.ID,
		Name:      entry.Name,
		Quantity:  quantity,
		UnitPrice: entry.UnitPrice,
		Subtotal:  entry.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// TransactionRecord is one paid transaction in the ledger
type TransactionRecord struct {
	ID             int64           `db:"id" json:"id"`
	PrescriptionID *string         `db:"prescription_id" json:"prescription_id"`
	UserID         *string         `db:"user_id" json:"user_id,omitempty"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	PaymentAmount  decimal.Decimal `db:"payment_amount" json:"payment_amount"`
	ChangeAmount   decimal.Decimal `db:"change_amount" json:"change_amount"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Transaction statuses
const (
	TransactionStatusPaid = "PAID"
)

// SagaRecord tracks a compensating commit
type SagaRecord struct {
	ID             int64     `db:"id" json:"id"`
	PrescriptionID string    `db:"prescription_id" json:"prescription_id"`
	Status         string    `db:"status" json:"status"`
	Detail         string    `db:"detail" json:"detail,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Saga statuses
const (
	SagaStatusPending            = "PENDING"
	SagaStatusCommitted          = "COMMITTED"
	SagaStatusCompensated        = "COMPENSATED"
	SagaStatusCompensationFailed = "COMPENSATION_FAILED"
	SagaStatusAbandoned          = "ABANDONED"
)

// Discrepancy records stock that was deducted without a matching ledger row
type Discrepancy struct {
	ID             int64     `db:"id" json:"id"`
	EventID        string    `db:"event_id" json:"event_id"`
	PrescriptionID string    `db:"prescription_id" json:"prescription_id"`
	Reason         string    `db:"reason" json:"reason"`
	Items          string    `db:"items" json:"items"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DailyRevenue is one bucket of the dashboard revenue series
type DailyRevenue struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// DashboardStats summarizes the ledger
type DashboardStats struct {
	TotalTransactions int64           `json:"total_transactions"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	DailySeries       []DailyRevenue  `json:"daily_series"`
}
