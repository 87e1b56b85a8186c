package cart

import (
	"spicery/models"

	"github.com/shopspring/decimal"
)

// CalculateTotals derives the cart counters from its lines. The Mongo
// pipeline in mongo.go computes the same values server side.
func CalculateTotals(items []models.CartItem) (totalItems int, totalAmount float64) {
	for _, it := range items {
		totalItems += it.Quantity
	}
	return totalItems, Subtotal(items).InexactFloat64()
}

// Recompute overwrites the cart counters from its lines.
func Recompute(c *models.Cart) *models.Cart {
	c.TotalItems, c.TotalAmount = CalculateTotals(c.Items)
	return c
}

// Subtotal is Σ quantity × unit price, rounded to cents.
func Subtotal(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		line := decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		sum = sum.Add(line)
	}
	return sum.Round(2)
}
