package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
)

// AccountSummary aggregates cost and market value across an account's
// holdings. Market-derived fields only cover holdings the external price
// collaborator has priced.
type AccountSummary struct {
	AccountID      string
	Holdings       int
	TotalCost      decimal.Decimal
	CurrentValue   decimal.Decimal
	UnrealizedGain decimal.Decimal
	// UnrealizedGainPct is gain over cost, two fraction digits; zero when
	// the account has no cost basis.
	UnrealizedGainPct decimal.Decimal
}

// Summarize derives an account summary from current holdings.
func (p *Processor) Summarize(ctx context.Context, accountID string) (*AccountSummary, error) {
	holdings, err := p.holdings.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load holdings for %s: %w", accountID, err)
	}

	s := &AccountSummary{
		AccountID:      accountID,
		Holdings:       len(holdings),
		TotalCost:      decimal.Zero,
		CurrentValue:   decimal.Zero,
		UnrealizedGain: decimal.Zero,
	}
	for _, h := range holdings {
		s.TotalCost = s.TotalCost.Add(h.TotalCost)
		if h.CurrentValue.Valid {
			s.CurrentValue = s.CurrentValue.Add(h.CurrentValue.Decimal)
		}
		if h.UnrealizedGain.Valid {
			s.UnrealizedGain = s.UnrealizedGain.Add(h.UnrealizedGain.Decimal)
		}
	}
	if s.TotalCost.Sign() > 0 {
		s.UnrealizedGainPct = domain.RoundPct(s.UnrealizedGain.Div(s.TotalCost).Mul(decimal.NewFromInt(100)))
	}
	return s, nil
}
