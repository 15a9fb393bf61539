// Package money holds the fixed-scale decimal helpers every financial
// engine in the service goes through. All amounts are two-decimal values
// rounded with banker's rounding at each named boundary; binary floats
// never enter domain arithmetic.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round rounds d to two decimals using banker's rounding.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// Ceil rounds d up to two decimals.
func Ceil(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(Scale)
}

// FromInt builds an amount from a whole-currency integer.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Percent returns round(d * pct / 100) at two decimals.
func Percent(d decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return Round(d.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}
