// Package fees computes the fee breakdown for a trade from a platform's fee
// schedule. Pure functions, no state.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
)

// ErrNegativeAmount is returned for a negative gross amount. The guard
// rejects such transactions before they reach the calculator; this is the
// package-boundary check.
var ErrNegativeAmount = errors.New("gross amount is negative")

var (
	hundred   = decimal.NewFromInt(100)
	stampRate = decimal.RequireFromString("0.005") // UK stamp duty, 0.5%
)

// Breakdown is the fee decomposition of a single trade. Each component is
// non-negative and rounded to the money precision.
type Breakdown struct {
	Trading   decimal.Decimal
	FX        decimal.Decimal
	StampDuty decimal.Decimal
}

// Total returns the sum of all components.
func (b Breakdown) Total() decimal.Decimal {
	return b.Trading.Add(b.FX).Add(b.StampDuty)
}

// Calculate computes the fee breakdown for a trade of the given gross amount
// and currency on the platform:
//
//   - trading fee: fixed fee + gross * percentage / 100, always
//   - fx fee: gross * fx percentage / 100, only when the trade currency
//     differs from the platform's base currency
//   - stamp duty: 0.5% of gross, only on purchases when the platform is
//     flagged for it and the trade is in the platform's domestic currency
//
// buy distinguishes purchases for the stamp duty rule.
func Calculate(p *domain.Platform, gross decimal.Decimal, currency string, buy bool) (Breakdown, error) {
	if gross.Sign() < 0 {
		return Breakdown{}, fmt.Errorf("%w: %s", ErrNegativeAmount, gross)
	}

	trading := p.TradingFeeFixed.Add(gross.Mul(p.TradingFeePct).Div(hundred))

	fx := decimal.Zero
	if currency != p.Currency {
		fx = gross.Mul(p.FXFeePct).Div(hundred)
	}

	stamp := decimal.Zero
	if buy && p.StampDutyApplicable && currency == p.Currency {
		stamp = gross.Mul(stampRate)
	}

	return Breakdown{
		Trading:   domain.RoundMoney(trading),
		FX:        domain.RoundMoney(fx),
		StampDuty: domain.RoundMoney(stamp),
	}, nil
}
