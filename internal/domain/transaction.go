package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

// Transaction type constants. DIVIDEND and SPLIT exist in imported data but
// carry no holding arithmetic; the guard rejects them at the engine boundary.
const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is an immutable entry in the append-only ledger. It is created
// once, never updated or deleted, and is the unit of replay for rebuilds.
// Corresponds to the transactions table in PostgreSQL.
type Transaction struct {
	ID         int64  // store-assigned sequence, orders insertions
	AccountID  string // owning account (portfolio)
	PlatformID string // platform the trade executed on
	SecurityID string // traded security

	Type      TransactionType
	TradeDate time.Time // civil date, UTC midnight

	Quantity     decimal.Decimal // > 0
	PricePerUnit decimal.Decimal // > 0
	Currency     string          // ISO 4217 code
	FXRate       decimal.Decimal // > 0, 1 for domestic trades

	TradingFee decimal.Decimal // >= 0
	StampDuty  decimal.Decimal // >= 0
	FXFee      decimal.Decimal // >= 0

	GrossAmount decimal.Decimal // quantity * price, money precision
	NetAmount   decimal.Decimal // gross + fees for BUY, gross - fees for SELL

	Notes     string
	CreatedAt int64 // record creation timestamp (ms)
}

// TotalFees returns the sum of all fee components.
func (t *Transaction) TotalFees() decimal.Decimal {
	return t.TradingFee.Add(t.StampDuty).Add(t.FXFee)
}

// Key returns the holding key this transaction applies to.
func (t *Transaction) Key() HoldingKey {
	return HoldingKey{AccountID: t.AccountID, PlatformID: t.PlatformID, SecurityID: t.SecurityID}
}
