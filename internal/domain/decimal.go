package domain

import "github.com/shopspring/decimal"

// Fixed-point precision standard. Quantities, per-unit prices and ratios carry
// UnitPrecision fraction digits; currency-denominated totals and fees carry
// MoneyPrecision. Rounding is half-up and happens only at the documented
// points: fee outputs, gross/net amounts, and stored holding fields.
const (
	UnitPrecision  = 8
	MoneyPrecision = 4
)

// One is the default FX rate.
var One = decimal.NewFromInt(1)

// RoundUnit rounds a per-unit or ratio value to the unit precision.
// All values in this domain are non-negative, so decimal.Round (half away
// from zero) is exactly half-up here.
func RoundUnit(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitPrecision)
}

// RoundMoney rounds a currency-denominated amount to the money precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// RoundPct rounds a display percentage to two fraction digits.
func RoundPct(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
