package money

import "github.com/shopspring/decimal"

var (
	// roundingBias nudges values sitting a hair below a half-cent boundary
	// (typical of float-sourced inputs) onto the boundary before rounding.
	roundingBias = decimal.RequireFromString("0.0000000000000002220446049250313")
	half         = decimal.RequireFromString("0.5")
)

// Round2 rounds half-up to 2 decimal places: floor((d + bias) * 100 + 0.5) / 100.
// Halves round toward positive infinity, so -1.005 becomes -1.00.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Add(roundingBias).Shift(2).Add(half).Floor().Shift(-2)
}

// Zero returns 0.00 with two-place exponent, matching rounded values.
func Zero() decimal.Decimal { return Round2(decimal.Zero) }

// FromFloat converts a boundary float into a decimal without binary noise.
func FromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// Float returns the float64 form of d for JSON responses.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
