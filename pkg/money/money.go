// Package money centralizes decimal handling for every monetary and
// quantity field in the system. shopspring/decimal gives arbitrary
// precision; the rounding helpers below are used by the Risk Engine for
// notional values and sized quantities. Values are not rounded when
// persisted or returned across an API boundary.
package money

import "github.com/shopspring/decimal"

// CashPlaces is the rounding scale for quote-currency cash amounts.
const CashPlaces = 2

// QuantityPlaces is the rounding scale for order/position quantities.
const QuantityPlaces = 8

// Zero is the canonical zero value, avoiding repeated decimal.NewFromInt(0).
var Zero = decimal.Zero

// Cash rounds a value to CashPlaces, for balances, P&L, and notional.
func Cash(d decimal.Decimal) decimal.Decimal {
	return d.Round(CashPlaces)
}

// Quantity rounds a value to QuantityPlaces, for order/position sizes.
func Quantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// ToFloat64 safely converts a decimal to float64 for interop with
// libraries (charts, indicators) that only accept floats.
func ToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// FromFloat64 builds a decimal from a float64, the normal entry point for
// values coming back from a wire/JSON float field.
func FromFloat64(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Notional returns quantity * price rounded as cash.
func Notional(quantity, price decimal.Decimal) decimal.Decimal {
	return Cash(quantity.Mul(price))
}

// Sum adds a slice of decimals without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
