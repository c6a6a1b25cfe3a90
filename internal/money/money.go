// Package money provides the fixed-precision decimal conventions shared by
// the challenge evaluation core and the risk scoring pipeline. Floating
// point never represents a monetary quantity; it is only ever used
// transiently inside statistical computations and must be converted back
// through this package before it leaves that layer.
package money

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits money values are rounded and
// quantized to when they cross a persistence or wire boundary.
const Scale = 2

// Zero is the additive identity, exported to avoid repeated decimal.Zero
// allocations at call sites.
var Zero = decimal.Zero

// RoundHalfUp quantizes d to Scale fractional digits using half-up
// rounding, matching the original implementation's
// decimal.ROUND_HALF_UP behavior.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// FloorZero clamps d to zero when it would otherwise go negative. Used for
// the equity floor invariant: current_equity never goes negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FromFloat converts a float64 statistic (mean, population stddev, ...)
// back into a decimal at Scale precision. Callers must not keep the
// float64 representation once the value re-enters domain state.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(Scale)
}
