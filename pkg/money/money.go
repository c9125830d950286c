// Package money converts between rand amounts and integer cents.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a rand amount to cents, rounding half away from zero.
func ToCents(rands decimal.Decimal) int64 {
	return rands.Mul(hundred).Round(0).IntPart()
}

// FromCents converts cents to a rand amount with two decimal places.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as "R123.45".
func Format(cents int64) string {
	return "R" + FromCents(cents).StringFixed(2)
}

// Share returns total × part / whole in cents, rounded to the nearest cent.
func Share(total, part, whole int64) (int64, error) {
	if whole <= 0 {
		return 0, fmt.Errorf("money: share of non-positive whole %d", whole)
	}
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(part)).
		Div(decimal.NewFromInt(whole)).
		Round(0).
		IntPart(), nil
}

// Within reports whether a and b differ by at most tolerance cents.
func Within(a, b, tolerance int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
