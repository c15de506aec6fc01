// Package ledger implements the incremental cost-basis engine: it admits one
// transaction at a time and mutates the corresponding holding through
// weighted-average-cost arithmetic. The batch reconciler replays history
// through the same Apply function, which is what makes the two paths
// provably convergent.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/validate"
)

// Apply applies one admitted transaction to the current holding for its key.
// h is nil when no holding exists yet. Returns the resulting holding (nil
// when a full sell closes the position) and the cost basis removed by a
// sell (zero for buys).
//
// Weighted-average-cost rules:
//
//	BUY, absent:  quantity = tx quantity; total = gross + fees;
//	              average = total / quantity
//	BUY, open:    quantity += tx quantity; total += gross + fees;
//	              average = total / quantity
//	SELL:         removed = total * (sell quantity / held quantity);
//	              quantity -= sell quantity; total -= removed;
//	              average unchanged. Quantity hitting exactly zero deletes
//	              the holding rather than keeping a zero-quantity record.
//
// Divisions only ever see a non-zero divisor: buys always produce positive
// quantity and sells are pre-checked against the held quantity.
func Apply(h *domain.Holding, t *domain.Transaction) (*domain.Holding, decimal.Decimal, error) {
	switch t.Type {
	case domain.TransactionBuy:
		next, err := applyBuy(h, t)
		return next, decimal.Zero, err
	case domain.TransactionSell:
		return applySell(h, t)
	default:
		return nil, decimal.Zero, &validate.RejectionError{
			Reason: validate.ReasonInvalidType,
			Detail: fmt.Sprintf("type %q is not BUY or SELL", t.Type),
		}
	}
}

func applyBuy(h *domain.Holding, t *domain.Transaction) (*domain.Holding, error) {
	// NetAmount for a buy is gross + total fees: exactly the cost added.
	cost := t.NetAmount

	if h == nil {
		quantity := domain.RoundUnit(t.Quantity)
		total := domain.RoundMoney(cost)
		next := &domain.Holding{
			AccountID:   t.AccountID,
			PlatformID:  t.PlatformID,
			SecurityID:  t.SecurityID,
			Quantity:    quantity,
			AverageCost: domain.RoundUnit(total.Div(quantity)),
			TotalCost:   total,
			Currency:    t.Currency,
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("open position %s: %w", next.Key(), err)
		}
		return next, nil
	}

	next := h.Clone()
	next.Quantity = domain.RoundUnit(h.Quantity.Add(t.Quantity))
	next.TotalCost = domain.RoundMoney(h.TotalCost.Add(cost))
	next.AverageCost = domain.RoundUnit(next.TotalCost.Div(next.Quantity))
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("extend position %s: %w", next.Key(), err)
	}
	return next, nil
}

func applySell(h *domain.Holding, t *domain.Transaction) (*domain.Holding, decimal.Decimal, error) {
	// Rechecked here so the replay path carries the same guarantee as the
	// incremental one, where the guard has already seen current state.
	if err := validate.CheckSell(h, t.Quantity); err != nil {
		return nil, decimal.Zero, err
	}

	// Cost removed is proportional to the fraction of the pre-sale position
	// being sold.
	removed := domain.RoundMoney(h.TotalCost.Mul(t.Quantity).Div(h.Quantity))

	quantity := domain.RoundUnit(h.Quantity.Sub(t.Quantity))
	if quantity.IsZero() {
		return nil, removed, nil
	}

	next := h.Clone()
	next.Quantity = quantity
	next.TotalCost = domain.RoundMoney(h.TotalCost.Sub(removed))
	// Average cost is unchanged by a sell.
	if err := next.Validate(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("reduce position %s: %w", next.Key(), err)
	}
	return next, removed, nil
}
