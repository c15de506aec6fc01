package reconcile

import (
	"sort"

	"invest-ledger/internal/domain"
)

// SortTransactions orders by (trade_date ASC, id ASC). This ordering is
// load-bearing: weighted-average cost is path-dependent for interleaved buys
// and sells at different prices, so replay must walk the ledger in the same
// stable order every time. The id tiebreaker is the store-assigned insertion
// sequence, which makes same-day trades deterministic.
func SortTransactions(ts []*domain.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		return compareTransactions(ts[i], ts[j]) < 0
	})
}

// compareTransactions returns negative, zero, or positive for a < b, a == b,
// a > b under the replay ordering.
func compareTransactions(a, b *domain.Transaction) int {
	if !a.TradeDate.Equal(b.TradeDate) {
		if a.TradeDate.Before(b.TradeDate) {
			return -1
		}
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	return 0
}
