package service

import (
	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
)

// settlePayment checks the tendered amount covers the total and returns the
// change due
func settlePayment(total, paid decimal.Decimal) (decimal.Decimal, *models.Failure) {
	if paid.LessThan(total) {
		t := total
		return decimal.Zero, &models.Failure{
			Kind:       models.FailureInsufficientPayment,
			Reason:     models.ReasonInsufficientPayment,
			TotalPrice: &t,
		}
	}
	return paid.Sub(total), nil
}
