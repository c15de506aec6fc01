// Package validate enforces structural invariants on proposed transactions
// before they are admitted to the ledger.
package validate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
)

// ErrRejected is the sentinel for all validation failures. Callers test with
// errors.Is and inspect the Reason via errors.As on *RejectionError.
var ErrRejected = errors.New("transaction rejected")

// Reason identifies why a transaction was rejected.
type Reason string

// Rejection reason codes.
const (
	ReasonInvalidType        Reason = "invalid_type"
	ReasonNonPositiveQty     Reason = "non_positive_quantity"
	ReasonNonPositivePrice   Reason = "non_positive_price"
	ReasonNonPositiveFXRate  Reason = "non_positive_fx_rate"
	ReasonNegativeFee        Reason = "negative_fee"
	ReasonUnknownCurrency    Reason = "unknown_currency"
	ReasonInsufficientShares Reason = "insufficient_shares"
)

// RejectionError reports a validation failure. It is always surfaced to the
// caller, never coerced into a partial apply.
type RejectionError struct {
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transaction rejected (%s): %s", e.Reason, e.Detail)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason Reason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Submission is the structural slice of a proposed transaction the guard
// checks before any state is read or written.
type Submission struct {
	Type         domain.TransactionType
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Currency     string
	FXRate       decimal.Decimal

	// Optional explicit fees; nil means "compute from the fee schedule".
	TradingFee *decimal.Decimal
	StampDuty  *decimal.Decimal
	FXFee      *decimal.Decimal
}

// CheckSubmission validates the stateless invariants of a proposed
// transaction: type, signs, currency. It does not touch holding state.
func CheckSubmission(s Submission) error {
	if s.Type != domain.TransactionBuy && s.Type != domain.TransactionSell {
		return reject(ReasonInvalidType, "type %q is not BUY or SELL", s.Type)
	}
	if s.Quantity.Sign() <= 0 {
		return reject(ReasonNonPositiveQty, "quantity %s must be positive", s.Quantity)
	}
	if s.PricePerUnit.Sign() <= 0 {
		return reject(ReasonNonPositivePrice, "price %s must be positive", s.PricePerUnit)
	}
	if s.FXRate.Sign() <= 0 {
		return reject(ReasonNonPositiveFXRate, "fx rate %s must be positive", s.FXRate)
	}
	for name, fee := range map[string]*decimal.Decimal{
		"trading_fee": s.TradingFee,
		"stamp_duty":  s.StampDuty,
		"fx_fee":      s.FXFee,
	} {
		if fee != nil && fee.Sign() < 0 {
			return reject(ReasonNegativeFee, "%s %s must not be negative", name, fee)
		}
	}
	if !domain.IsRecognizedCurrency(s.Currency) {
		return reject(ReasonUnknownCurrency, "currency %q is not a recognized ISO code", s.Currency)
	}
	return nil
}

// CheckSell validates that the existing holding can cover a sale. The caller
// must read the holding under the same lock that guards the subsequent
// mutation; otherwise two concurrent sells can both pass against a stale
// quantity and jointly oversell.
func CheckSell(h *domain.Holding, quantity decimal.Decimal) error {
	if h == nil {
		return reject(ReasonInsufficientShares, "no holding exists for this key")
	}
	if h.Quantity.LessThan(quantity) {
		return reject(ReasonInsufficientShares, "held %s is less than sale quantity %s", h.Quantity, quantity)
	}
	return nil
}
