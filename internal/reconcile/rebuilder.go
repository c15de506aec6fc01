// Package reconcile implements the batch rebuild engine: it replays an
// account's full transaction history through the same weighted-average-cost
// rules as the incremental path and produces a fresh holding set. Used after
// bulk import and as the drift-repair tool.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/ledger"
	"invest-ledger/internal/observability"
	"invest-ledger/internal/storage"
)

// Rebuilder replays transaction history into holdings for whole accounts.
type Rebuilder struct {
	transactions storage.TransactionStore
	holdings     storage.HoldingStore
	ledger       storage.LedgerStore
	locks        *ledger.Locks
	log          zerolog.Logger
	now          func() time.Time
}

// RebuilderOptions configures a Rebuilder. Locks must be the same table the
// incremental Processor uses: a rebuild takes the account lock exclusive and
// must not run concurrently with incremental updates for that account.
type RebuilderOptions struct {
	Transactions storage.TransactionStore
	Holdings     storage.HoldingStore
	Ledger       storage.LedgerStore
	Locks        *ledger.Locks
	Logger       zerolog.Logger
}

// NewRebuilder creates a batch reconciliation engine.
func NewRebuilder(opts RebuilderOptions) *Rebuilder {
	locks := opts.Locks
	if locks == nil {
		locks = ledger.NewLocks()
	}
	return &Rebuilder{
		transactions: opts.Transactions,
		holdings:     opts.Holdings,
		ledger:       opts.Ledger,
		locks:        locks,
		log:          opts.Logger.With().Str("component", "reconcile").Logger(),
		now:          time.Now,
	}
}

// Replay is a pure function of an ordered transaction history: it applies
// each entry through ledger.Apply and returns the resulting holding set,
// sorted by key. Running it twice on the same history yields bit-identical
// cost-basis fields, and it equals what sequential incremental application
// would have produced, because both paths share the apply arithmetic.
//
// The input slice is not mutated; replay sorts a copy.
func Replay(history []*domain.Transaction) ([]*domain.Holding, error) {
	ordered := make([]*domain.Transaction, len(history))
	copy(ordered, history)
	SortTransactions(ordered)

	positions := make(map[domain.HoldingKey]*domain.Holding)
	for _, t := range ordered {
		key := t.Key()
		next, _, err := ledger.Apply(positions[key], t)
		if err != nil {
			return nil, fmt.Errorf("replay transaction %d (%s): %w", t.ID, key, err)
		}
		if next == nil {
			delete(positions, key)
		} else {
			positions[key] = next
		}
	}

	result := make([]*domain.Holding, 0, len(positions))
	for _, h := range positions {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return result, nil
}

// Rebuild replays an account's full history and atomically replaces its
// stored holdings with the result. The account lock is held exclusive for
// the duration, barriering incremental writers.
func (r *Rebuilder) Rebuild(ctx context.Context, accountID string) ([]*domain.Holding, error) {
	account := r.locks.Account(accountID)
	account.Lock()
	defer account.Unlock()

	start := r.now()

	history, err := r.transactions.GetByAccount(ctx, accountID)
	if err != nil {
		observability.RecordRebuild("error", r.now().Sub(start).Seconds())
		return nil, fmt.Errorf("load history for %s: %w", accountID, err)
	}

	rebuilt, err := Replay(history)
	if err != nil {
		observability.RecordRebuild("error", r.now().Sub(start).Seconds())
		return nil, err
	}

	nowMs := r.now().UnixMilli()
	for _, h := range rebuilt {
		h.LastUpdated = nowMs
	}

	if err := r.ledger.ReplaceHoldings(ctx, accountID, rebuilt); err != nil {
		observability.RecordRebuild("error", r.now().Sub(start).Seconds())
		return nil, fmt.Errorf("replace holdings for %s: %w", accountID, err)
	}

	observability.RecordRebuild("success", r.now().Sub(start).Seconds())
	r.log.Info().
		Str("account", accountID).
		Int("transactions", len(history)).
		Int("holdings", len(rebuilt)).
		Msg("account rebuilt")

	return rebuilt, nil
}

// Verify replays an account's history without writing and compares the
// result against stored holdings. Divergence signals a latent bug; it is
// reported, never auto-corrected.
func (r *Rebuilder) Verify(ctx context.Context, accountID string) (*DivergenceReport, error) {
	account := r.locks.Account(accountID)
	account.Lock()
	defer account.Unlock()

	history, err := r.transactions.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", accountID, err)
	}

	rebuilt, err := Replay(history)
	if err != nil {
		return nil, err
	}

	stored, err := r.holdings.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load holdings for %s: %w", accountID, err)
	}

	report := CompareHoldingSets(accountID, stored, rebuilt)
	if report.Divergent > 0 {
		observability.RecordDivergences(report.Divergent)
		r.log.Error().
			Str("account", accountID).
			Int("divergent", report.Divergent).
			Msg("stored holdings diverge from replay")
	}
	return report, nil
}
