package service

import (
	"strings"

	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
)

// resolve prices each prescription line against a catalog snapshot and
// stops at the first line that cannot be filled. Lines carrying a catalog
// id match by id; all others match by trimmed case-insensitive name, first
// entry wins.
func resolve(lines []models.PrescriptionLine, entries []models.CatalogEntry) ([]models.PricedItem, decimal.Decimal, *models.Failure) {
	items := make([]models.PricedItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		entry := findEntry(line, entries)
		if entry == nil {
			return nil, decimal.Zero, &models.Failure{
				Kind:   models.FailureCatalogMismatch,
				Reason: models.ReasonItemNotCarried,
				Item:   line.Label(),
			}
		}

		if entry.StockOnHand < line.Quantity {
			available := entry.StockOnHand
			return nil, decimal.Zero, &models.Failure{
				Kind:      models.FailureInsufficientStock,
				Reason:    models.ReasonInsufficientStock,
				Item:      entry.Name,
				Available: &available,
			}
		}

		item := models.NewPricedItem(*entry, line.Quantity)
		items = append(items, item)
		total = total.Add(item.Subtotal)
	}

	return items, total, nil
}

func findEntry(line models.PrescriptionLine, entries []models.CatalogEntry) *models.CatalogEntry {
	name := strings.TrimSpace(line.Name)
	for i := range entries {
		if line.CatalogID != "" {
			if entries[i].ID == line.CatalogID {
				return &entries[i]
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(entries[i].Name), name) {
			return &entries[i]
		}
	}
	return nil
}
