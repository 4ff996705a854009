package types

import (
	"github.com/shopspring/decimal"
)

const (
	// ExternalPrecision is the precision used for stored and transmitted amounts
	ExternalPrecision int32 = 2

	// IntermediatePrecision is the precision carried through intermediate
	// calculation steps to avoid compounding rounding error before the final
	// external rounding
	IntermediatePrecision int32 = 4
)

// RoundExternal rounds an amount to the external 2 decimal precision.
// This must only be applied at calculation boundaries, never mid pipeline.
func RoundExternal(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(ExternalPrecision)
}

// RoundIntermediate rounds an amount to the 4 decimal intermediate precision
// used between calculation steps. Matches the legacy ledger's behavior.
func RoundIntermediate(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(IntermediatePrecision)
}

// ClampZero clamps a negative amount to zero. Totals and line amounts are
// never negative regardless of discount stacking.
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// PercentOf returns pct percent of amount at intermediate precision
func PercentOf(amount decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return RoundIntermediate(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}
