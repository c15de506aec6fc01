package domain

import "github.com/shopspring/decimal"

// Account type constants (UK account wrappers).
const (
	AccountTypeISA  = "ISA"
	AccountTypeGIA  = "GIA"
	AccountTypeLISA = "LISA"
	AccountTypeSIPP = "SIPP"
)

// Platform is a broker/platform with its fee schedule. Reference data:
// read-only input to the fee calculator, never mutated by the engine.
type Platform struct {
	ID          string
	Name        string
	AccountType string
	Currency    string // base (domestic) currency, e.g. GBP

	TradingFeeFixed     decimal.Decimal // flat fee per trade
	TradingFeePct       decimal.Decimal // percent of gross
	FXFeePct            decimal.Decimal // percent of gross, cross-currency only
	StampDutyApplicable bool            // 0.5% on domestic-currency purchases
}
