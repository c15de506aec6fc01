package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInconsistentHolding is returned when a holding fails its arithmetic
// invariant. A mutation producing an inconsistent holding must be aborted,
// never persisted.
var ErrInconsistentHolding = errors.New("holding cost basis is inconsistent")

// HoldingKey uniquely identifies a position: one security on one platform
// within one account.
type HoldingKey struct {
	AccountID  string
	PlatformID string
	SecurityID string
}

func (k HoldingKey) String() string {
	return k.AccountID + "/" + k.PlatformID + "/" + k.SecurityID
}

// Holding is the current position for a holding key, derived entirely from
// the transaction ledger. Quantity and AverageCost carry unit precision,
// TotalCost money precision. A holding never exists with quantity <= 0;
// selling a position down to exactly zero deletes the record.
//
// Market fields (CurrentPrice onward) are written by the external price
// collaborator on its own schedule and are outside the consistency domain.
type Holding struct {
	AccountID  string
	PlatformID string
	SecurityID string

	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	TotalCost   decimal.Decimal
	Currency    string

	CurrentPrice      decimal.NullDecimal
	CurrentValue      decimal.NullDecimal
	UnrealizedGain    decimal.NullDecimal
	UnrealizedGainPct decimal.NullDecimal

	LastUpdated int64 // unix ms
}

// Key returns the holding's unique key.
func (h *Holding) Key() HoldingKey {
	return HoldingKey{AccountID: h.AccountID, PlatformID: h.PlatformID, SecurityID: h.SecurityID}
}

// unitUlp is one unit in the last place of the unit precision.
var unitUlp = decimal.New(1, -UnitPrecision)

// costDrift bounds how far total_cost may sit from quantity * average_cost.
// AverageCost is recomputed only on buys, and every sell subtracts a rounded
// proportional slice of TotalCost, so a run of sells walks the product away
// from the total by fractions of a money ulp per step. A cent of slack
// absorbs any realistic run while still flagging corrupted state, which is
// off by whole units.
var costDrift = decimal.New(1, -2)

// Validate checks the holding invariant: quantity > 0, total cost >= 0, and
// total_cost == quantity * average_cost up to the fixed rounding precision.
func (h *Holding) Validate() error {
	if h.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quantity %s is not positive", ErrInconsistentHolding, h.Quantity)
	}
	if h.TotalCost.Sign() < 0 {
		return fmt.Errorf("%w: total cost %s is negative", ErrInconsistentHolding, h.TotalCost)
	}
	if h.AverageCost.Sign() < 0 {
		return fmt.Errorf("%w: average cost %s is negative", ErrInconsistentHolding, h.AverageCost)
	}

	tolerance := costDrift.Add(h.Quantity.Mul(unitUlp))
	diff := h.TotalCost.Sub(h.Quantity.Mul(h.AverageCost)).Abs()
	if diff.GreaterThan(tolerance) {
		return fmt.Errorf("%w: total %s != quantity %s * average %s (diff %s)",
			ErrInconsistentHolding, h.TotalCost, h.Quantity, h.AverageCost, diff)
	}
	return nil
}

// Clone returns a deep copy. Decimal values are immutable, so field copies
// are sufficient.
func (h *Holding) Clone() *Holding {
	c := *h
	return &c
}

var hundred = decimal.NewFromInt(100)

// SetMarketPrice fills the market valuation fields from a current price.
// The gain percentage is left null when the position has zero cost.
func (h *Holding) SetMarketPrice(price decimal.Decimal) {
	value := RoundMoney(h.Quantity.Mul(price))
	gain := value.Sub(h.TotalCost)

	h.CurrentPrice = decimal.NewNullDecimal(RoundUnit(price))
	h.CurrentValue = decimal.NewNullDecimal(value)
	h.UnrealizedGain = decimal.NewNullDecimal(gain)
	if h.TotalCost.Sign() > 0 {
		h.UnrealizedGainPct = decimal.NewNullDecimal(RoundPct(gain.Div(h.TotalCost).Mul(hundred)))
	} else {
		h.UnrealizedGainPct = decimal.NullDecimal{}
	}
}
