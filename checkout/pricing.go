package checkout

import (
	"spicery/config"

	"github.com/shopspring/decimal"
)

// Totals is the priced breakdown of an order.
type Totals struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// Price computes the order totals for subtotal and discount. Tax applies to
// the discounted amount; shipping is waived at or above the free shipping
// threshold. Every component is rounded to cents.
func Price(p config.Pricing, subtotal, discount decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	discount = decimal.Min(discount.Round(2), subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	tax := subtotal.Sub(discount).Mul(decimal.NewFromFloat(p.TaxRate)).Round(2)
	shipping := decimal.NewFromFloat(p.ShippingFlat).Round(2)
	if subtotal.GreaterThanOrEqual(decimal.NewFromFloat(p.FreeShippingOver)) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        subtotal.Add(tax).Add(shipping).Sub(discount).Round(2),
	}
}
