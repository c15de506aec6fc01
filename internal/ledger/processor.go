package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/fees"
	"invest-ledger/internal/observability"
	"invest-ledger/internal/storage"
	"invest-ledger/internal/validate"
)

// Processor is the incremental reconciliation engine. One admitted
// transaction is processed to completion before the next is considered for
// the same holding key; different accounts and different keys proceed
// concurrently.
type Processor struct {
	holdings  storage.HoldingStore
	platforms storage.PlatformStore
	ledger    storage.LedgerStore
	locks     *Locks
	log       zerolog.Logger
	now       func() time.Time
}

// Options configures a Processor. Locks may be shared with a Rebuilder so
// incremental submits and rebuilds coordinate on the same account locks.
type Options struct {
	Holdings  storage.HoldingStore
	Platforms storage.PlatformStore
	Ledger    storage.LedgerStore
	Locks     *Locks
	Logger    zerolog.Logger
}

// NewProcessor creates an incremental engine.
func NewProcessor(opts Options) *Processor {
	locks := opts.Locks
	if locks == nil {
		locks = NewLocks()
	}
	return &Processor{
		holdings:  opts.Holdings,
		platforms: opts.Platforms,
		ledger:    opts.Ledger,
		locks:     locks,
		log:       opts.Logger.With().Str("component", "ledger").Logger(),
		now:       time.Now,
	}
}

// Locks exposes the lock table for sharing with a Rebuilder.
func (p *Processor) Locks() *Locks {
	return p.locks
}

// SubmitRequest is a proposed transaction. Explicit fee fields always win
// over the computed schedule, which lets imported historical data carry
// already-known fees; nil fields are computed. A zero FXRate defaults to 1.
type SubmitRequest struct {
	AccountID  string
	PlatformID string
	SecurityID string

	Type      domain.TransactionType
	TradeDate time.Time

	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Currency     string
	FXRate       decimal.Decimal

	TradingFee *decimal.Decimal
	StampDuty  *decimal.Decimal
	FXFee      *decimal.Decimal

	Notes string
}

// Result is the outcome of an admitted transaction.
type Result struct {
	Transaction *domain.Transaction

	// Holding is the post-transaction snapshot; nil when a full sell closed
	// the position.
	Holding *domain.Holding
	Closed  bool

	// RealizedGain is the sale proceeds net of fees minus the cost basis
	// removed. Zero for buys. Reported to the caller; this engine keeps no
	// realized-gain ledger of its own.
	RealizedGain decimal.Decimal
}

// Submit validates, prices, and applies one transaction. Either the full
// fee computation and holding mutation commit together, or the transaction
// is rejected and no state changes.
func (p *Processor) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	fxRate := req.FXRate
	if fxRate.IsZero() {
		fxRate = domain.One
	}

	if err := validate.CheckSubmission(validate.Submission{
		Type:         req.Type,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		Currency:     req.Currency,
		FXRate:       fxRate,
		TradingFee:   req.TradingFee,
		StampDuty:    req.StampDuty,
		FXFee:        req.FXFee,
	}); err != nil {
		p.recordRejection(err)
		return nil, err
	}

	platform, err := p.platforms.GetByID(ctx, req.PlatformID)
	if err != nil {
		return nil, fmt.Errorf("load platform %s: %w", req.PlatformID, err)
	}

	txn, err := p.buildTransaction(req, platform, fxRate)
	if err != nil {
		return nil, err
	}

	// The sell check and the read-modify-write below must see the same
	// holding state: everything from here to the commit runs under the
	// per-key lock, with the account lock held shared so rebuilds barrier us.
	account := p.locks.Account(req.AccountID)
	account.RLock()
	defer account.RUnlock()

	key := p.locks.Key(txn.Key())
	key.Lock()
	defer key.Unlock()

	current, err := p.currentHolding(ctx, txn.Key())
	if err != nil {
		return nil, err
	}

	if txn.Type == domain.TransactionSell {
		if err := validate.CheckSell(current, txn.Quantity); err != nil {
			p.recordRejection(err)
			return nil, err
		}
	}

	next, removed, err := Apply(current, txn)
	if err != nil {
		if errors.Is(err, domain.ErrInconsistentHolding) {
			observability.RecordArithmeticFailure()
		} else {
			p.recordRejection(err)
		}
		return nil, err
	}

	mutation := p.buildMutation(txn.Key(), current, next)

	start := p.now()
	if err := p.ledger.Commit(ctx, txn, mutation); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrConcurrencyConflict) {
			observability.RecordConcurrencyConflict()
			return nil, fmt.Errorf("commit transaction: %w", storage.ErrConcurrencyConflict)
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	observability.RecordCommitDuration(p.now().Sub(start).Seconds())
	observability.RecordTransactionProcessed(string(txn.Type))
	switch mutation.Op {
	case storage.MutationCreate:
		observability.RecordHoldingOpened()
	case storage.MutationDelete:
		observability.RecordHoldingClosed()
	}

	result := &Result{
		Transaction:  txn,
		Holding:      next,
		Closed:       next == nil,
		RealizedGain: decimal.Zero,
	}
	if txn.Type == domain.TransactionSell {
		result.RealizedGain = domain.RoundMoney(txn.NetAmount.Sub(removed))
	}

	p.log.Info().
		Int64("transaction_id", txn.ID).
		Str("key", txn.Key().String()).
		Str("type", string(txn.Type)).
		Str("quantity", txn.Quantity.String()).
		Bool("closed", result.Closed).
		Msg("transaction applied")

	return result, nil
}

// buildTransaction prices the request into an immutable ledger entry.
func (p *Processor) buildTransaction(req SubmitRequest, platform *domain.Platform, fxRate decimal.Decimal) (*domain.Transaction, error) {
	gross := domain.RoundMoney(req.Quantity.Mul(req.PricePerUnit))

	breakdown, err := fees.Calculate(platform, gross, req.Currency, req.Type == domain.TransactionBuy)
	if err != nil {
		return nil, fmt.Errorf("compute fees: %w", err)
	}
	if req.TradingFee != nil {
		breakdown.Trading = domain.RoundMoney(*req.TradingFee)
	}
	if req.StampDuty != nil {
		breakdown.StampDuty = domain.RoundMoney(*req.StampDuty)
	}
	if req.FXFee != nil {
		breakdown.FX = domain.RoundMoney(*req.FXFee)
	}

	var net decimal.Decimal
	if req.Type == domain.TransactionBuy {
		net = domain.RoundMoney(gross.Add(breakdown.Total()))
	} else {
		net = domain.RoundMoney(gross.Sub(breakdown.Total()))
	}

	return &domain.Transaction{
		AccountID:    req.AccountID,
		PlatformID:   req.PlatformID,
		SecurityID:   req.SecurityID,
		Type:         req.Type,
		TradeDate:    civilDate(req.TradeDate),
		Quantity:     domain.RoundUnit(req.Quantity),
		PricePerUnit: domain.RoundUnit(req.PricePerUnit),
		Currency:     req.Currency,
		FXRate:       domain.RoundUnit(fxRate),
		TradingFee:   breakdown.Trading,
		StampDuty:    breakdown.StampDuty,
		FXFee:        breakdown.FX,
		GrossAmount:  gross,
		NetAmount:    net,
		Notes:        req.Notes,
		CreatedAt:    p.now().UnixMilli(),
	}, nil
}

// currentHolding reads the holding or nil when absent.
func (p *Processor) currentHolding(ctx context.Context, key domain.HoldingKey) (*domain.Holding, error) {
	h, err := p.holdings.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load holding %s: %w", key, err)
	}
	return h, nil
}

// buildMutation derives the commit operation from the before/after states.
func (p *Processor) buildMutation(key domain.HoldingKey, current, next *domain.Holding) *storage.HoldingMutation {
	if next == nil {
		return &storage.HoldingMutation{Op: storage.MutationDelete, Key: key}
	}
	next.LastUpdated = p.now().UnixMilli()
	op := storage.MutationUpdate
	if current == nil {
		op = storage.MutationCreate
	}
	return &storage.HoldingMutation{Op: op, Key: key, Holding: next}
}

func (p *Processor) recordRejection(err error) {
	var rejection *validate.RejectionError
	if errors.As(err, &rejection) {
		observability.RecordTransactionRejected(string(rejection.Reason))
		p.log.Warn().Str("reason", string(rejection.Reason)).Msg("transaction rejected")
	}
}

// civilDate truncates to UTC midnight; trade dates carry no time component.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
