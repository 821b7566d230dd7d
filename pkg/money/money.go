// Package money centralizes amount arithmetic. All monetary values are
// decimals quantized to two fractional digits with half-up rounding at
// every intermediate step.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 quantizes to 0.01 with half-up rounding.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns Round2(amount * rate / 100).
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(rate).Div(hundred))
}

// IsNegative reports whether the amount is below zero.
func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// IsPositive reports whether the amount is above zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Clamp returns d, or zero when d is negative.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}
