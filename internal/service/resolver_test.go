package service

import (
	"testing"

	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDuplicateNamesFirstWins(t *testing.T) {
	entries := []models.CatalogEntry{
		{ID: "1", Name: "Paracetamol", UnitPrice: decimal.NewFromInt(5000), StockOnHand: 1},
		{ID: "9", Name: "PARACETAMOL", UnitPrice: decimal.NewFromInt(4000), StockOnHand: 100},
	}

	_, _, failure := resolve([]models.PrescriptionLine{{Name: "paracetamol", Quantity: 2}}, entries)

	require.NotNil(t, failure)
	assert.Equal(t, models.FailureInsufficientStock, failure.Kind)
	assert.Equal(t, 1, *failure.Available)
}

func TestResolveByCatalogID(t *testing.T) {
	entries := []models.CatalogEntry{
		{ID: "1", Name: "Paracetamol", UnitPrice: decimal.NewFromInt(5000), StockOnHand: 10},
		{ID: "2", Name: "Amoxicillin", UnitPrice: decimal.RequireFromString("1250.50"), StockOnHand: 10},
	}

	items, total, failure := resolve([]models.PrescriptionLine{{CatalogID: "2", Quantity: 2}}, entries)

	require.Nil(t, failure)
	require.Len(t, items, 1)
	assert.Equal(t, "Amoxicillin", items[0].Name)
	assert.True(t, decimal.RequireFromString("2501").Equal(total))

	_, _, failure = resolve([]models.PrescriptionLine{{CatalogID: "Paracetamol", Quantity: 1}}, entries)
	require.NotNil(t, failure)
	assert.Equal(t, models.FailureCatalogMismatch, failure.Kind)
}

func TestResolveZeroQuantity(t *testing.T) {
	entries := []models.CatalogEntry{{ID: "1", Name: "Paracetamol", UnitPrice: decimal.NewFromInt(5000), StockOnHand: 0}}

	items, total, failure := resolve([]models.PrescriptionLine{{Name: "Paracetamol", Quantity: 0}}, entries)

	require.Nil(t, failure)
	assert.Len(t, items, 1)
	assert.True(t, total.IsZero())
}

func TestSettlePayment(t *testing.T) {
	change, failure := settlePayment(decimal.NewFromInt(10000), decimal.NewFromInt(10000))
	assert.Nil(t, failure)
	assert.True(t, change.IsZero())

	_, failure = settlePayment(decimal.NewFromInt(10000), decimal.RequireFromString("9999.99"))
	require.NotNil(t, failure)
	assert.Equal(t, models.FailureInsufficientPayment, failure.Kind)
	assert.True(t, decimal.NewFromInt(10000).Equal(*failure.TotalPrice))
}

func TestResolveIgnoresSurroundingWhitespace(t *testing.T) {
	entries := []models.CatalogEntry{
		{ID: "3", Name: "Ibuprofen ", UnitPrice: decimal.NewFromInt(8000), StockOnHand: 5},
	}

	items, total, failure := resolve([]models.PrescriptionLine{{Name: " ibuprofen", Quantity: 1}}, entries)

	require.Nil(t, failure)
	require.Len(t, items, 1)
	assert.Equal(t, "3", items[0].CatalogID)
	assert.True(t, decimal.NewFromInt(8000).Equal(total))
}
