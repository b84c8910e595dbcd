package pricing

import (
	"pack-store/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultVATRate is the UK standard rate.
var DefaultVATRate = decimal.RequireFromString("0.20")

// divisionPlaces bounds the only inexact operation here, the VAT-exclusive split.
const divisionPlaces = 16

// Totals is the result of CalculateOrderTotal.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	VATAmount    decimal.Decimal
	Total        decimal.Decimal
}

// CalculateOrderTotal charges VAT on goods and shipping together.
// Total == Subtotal + ShippingCost + VATAmount exactly.
func CalculateOrderTotal(subtotal, shippingCost, vatRate decimal.Decimal) Totals {
	taxable := subtotal.Add(shippingCost)
	vat := taxable.Mul(vatRate)
	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		VATAmount:    vat,
		Total:        taxable.Add(vat),
	}
}

// CalculateVATExclusive splits a VAT-inclusive amount into its net part and the VAT it contains.
func CalculateVATExclusive(amount, vatRate decimal.Decimal) (exclusive, vat decimal.Decimal) {
	exclusive = amount.DivRound(one.Add(vatRate), divisionPlaces)
	vat = amount.Sub(exclusive)
	return exclusive, vat
}

// SummarizeCart sums priced lines and applies shipping and VAT.
func SummarizeCart(lines []model.PricedLine, shippingCost, vatRate decimal.Decimal) model.CartTotals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalPrice)
		discount = discount.Add(l.Discount())
	}

	t := CalculateOrderTotal(subtotal, shippingCost, vatRate)
	return model.CartTotals{
		Subtotal:     t.Subtotal,
		Discount:     discount,
		ShippingCost: t.ShippingCost,
		VATAmount:    t.VATAmount,
		Total:        t.Total,
	}
}

// ToMinorUnits converts pounds to pence, rounding half away from zero.
// This is the only place a monetary value is rounded.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts pence back to pounds.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatAmount renders an amount to two decimal places for display.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
