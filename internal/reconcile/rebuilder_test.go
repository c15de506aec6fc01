package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/ledger"
	"invest-ledger/internal/storage/memory"
)

type testEnv struct {
	processor    *ledger.Processor
	rebuilder    *Rebuilder
	transactions *memory.TransactionStore
	holdings     *memory.HoldingStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	transactions := memory.NewTransactionStore()
	holdings := memory.NewHoldingStore()
	platforms := memory.NewPlatformStore()
	ledgerStore := memory.NewLedgerStore(transactions, holdings)

	err := platforms.Insert(context.Background(), &domain.Platform{
		ID:       "plat1",
		Name:     "Test Platform",
		Currency: "GBP",
	})
	require.NoError(t, err)

	processor := ledger.NewProcessor(ledger.Options{
		Holdings:  holdings,
		Platforms: platforms,
		Ledger:    ledgerStore,
		Logger:    zerolog.Nop(),
	})
	rebuilder := NewRebuilder(RebuilderOptions{
		Transactions: transactions,
		Holdings:     holdings,
		Ledger:       ledgerStore,
		Locks:        processor.Locks(),
		Logger:       zerolog.Nop(),
	})

	return &testEnv{
		processor:    processor,
		rebuilder:    rebuilder,
		transactions: transactions,
		holdings:     holdings,
	}
}

func submit(t *testing.T, env *testEnv, txnType domain.TransactionType, securityID, quantity, price, fee string, day int) {
	t.Helper()

	req := ledger.SubmitRequest{
		AccountID:    "acct1",
		PlatformID:   "plat1",
		SecurityID:   securityID,
		Type:         txnType,
		TradeDate:    time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Quantity:     decimal.RequireFromString(quantity),
		PricePerUnit: decimal.RequireFromString(price),
		Currency:     "GBP",
	}
	f := decimal.RequireFromString(fee)
	req.TradingFee = &f

	_, err := env.processor.Submit(context.Background(), req)
	require.NoError(t, err)
}

// requireSameCostBasis asserts two holding sets agree on every cost-basis
// field, exactly.
func requireSameCostBasis(t *testing.T, want, got []*domain.Holding) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key(), got[i].Key())
		assert.True(t, got[i].Quantity.Equal(want[i].Quantity),
			"%s quantity: %s vs %s", want[i].Key(), got[i].Quantity, want[i].Quantity)
		assert.True(t, got[i].AverageCost.Equal(want[i].AverageCost),
			"%s average: %s vs %s", want[i].Key(), got[i].AverageCost, want[i].AverageCost)
		assert.True(t, got[i].TotalCost.Equal(want[i].TotalCost),
			"%s total: %s vs %s", want[i].Key(), got[i].TotalCost, want[i].TotalCost)
	}
}

func TestReplay_MatchesIncrementalPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)
	submit(t, env, domain.TransactionBuy, "sec1", "50", "12", "1", 2)
	submit(t, env, domain.TransactionSell, "sec1", "30", "15", "0", 3)
	submit(t, env, domain.TransactionBuy, "sec2", "7.5", "33.333333", "1.50", 3)
	submit(t, env, domain.TransactionSell, "sec2", "2.5", "40", "0", 4)

	incremental, err := env.holdings.GetByAccount(ctx, "acct1")
	require.NoError(t, err)

	history, err := env.transactions.GetByAccount(ctx, "acct1")
	require.NoError(t, err)
	replayed, err := Replay(history)
	require.NoError(t, err)

	requireSameCostBasis(t, incremental, replayed)
}

func TestReplay_Deterministic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)
	submit(t, env, domain.TransactionSell, "sec1", "40", "12", "0", 2)
	submit(t, env, domain.TransactionBuy, "sec1", "25", "11.50", "1", 3)

	history, err := env.transactions.GetByAccount(ctx, "acct1")
	require.NoError(t, err)

	first, err := Replay(history)
	require.NoError(t, err)
	second, err := Replay(history)
	require.NoError(t, err)

	requireSameCostBasis(t, first, second)
}

func TestReplay_SortsUnorderedInput(t *testing.T) {
	// Same-day trades resolve by ID; cross-day by trade date. Feed the
	// history shuffled and expect the canonical result.
	history := []*domain.Transaction{
		rawTxn(3, domain.TransactionSell, "30", "15", 3),
		rawTxn(1, domain.TransactionBuy, "100", "10", 1),
		rawTxn(2, domain.TransactionBuy, "50", "12", 2),
	}

	replayed, err := Replay(history)
	require.NoError(t, err)
	require.Len(t, replayed, 1)

	h := replayed[0]
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(120)), "Quantity: got %s", h.Quantity)
	assert.True(t, h.TotalCost.Equal(decimal.RequireFromString("1281.60")), "TotalCost: got %s", h.TotalCost)
	assert.True(t, h.AverageCost.Equal(decimal.RequireFromString("10.68")), "AverageCost: got %s", h.AverageCost)
}

func TestReplay_OversellInHistory(t *testing.T) {
	history := []*domain.Transaction{
		rawTxn(1, domain.TransactionBuy, "10", "10", 1),
		rawTxn(2, domain.TransactionSell, "20", "10", 2),
	}

	_, err := Replay(history)
	require.Error(t, err)
}

func TestRebuild_ReplacesStoredHoldings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)
	submit(t, env, domain.TransactionSell, "sec1", "30", "15", "0", 2)

	// Corrupt the stored holding, then rebuild.
	key := domain.HoldingKey{AccountID: "acct1", PlatformID: "plat1", SecurityID: "sec1"}
	corrupted, err := env.holdings.Get(ctx, key)
	require.NoError(t, err)
	corrupted.TotalCost = decimal.NewFromInt(9999)
	require.NoError(t, env.holdings.Update(ctx, corrupted))

	rebuilt, err := env.rebuilder.Rebuild(ctx, "acct1")
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)

	stored, err := env.holdings.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, stored.TotalCost.Equal(decimal.RequireFromString("700.70")),
		"TotalCost: got %s", stored.TotalCost)
	assert.NotZero(t, stored.LastUpdated)
}

func TestRebuild_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)
	submit(t, env, domain.TransactionBuy, "sec2", "50", "20", "1", 2)
	submit(t, env, domain.TransactionSell, "sec1", "100", "11", "0", 3)

	first, err := env.rebuilder.Rebuild(ctx, "acct1")
	require.NoError(t, err)
	second, err := env.rebuilder.Rebuild(ctx, "acct1")
	require.NoError(t, err)

	requireSameCostBasis(t, first, second)
}

func TestVerify_CleanAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)
	submit(t, env, domain.TransactionSell, "sec1", "30", "15", "0", 2)

	report, err := env.rebuilder.Verify(ctx, "acct1")
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Matched)
	assert.Empty(t, report.Divergences)
}

func TestVerify_DetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)

	key := domain.HoldingKey{AccountID: "acct1", PlatformID: "plat1", SecurityID: "sec1"}
	tampered, err := env.holdings.Get(ctx, key)
	require.NoError(t, err)
	tampered.TotalCost = decimal.NewFromInt(1)
	require.NoError(t, env.holdings.Update(ctx, tampered))

	report, err := env.rebuilder.Verify(ctx, "acct1")
	require.NoError(t, err)

	assert.False(t, report.Clean())
	assert.Equal(t, 1, report.Divergent)
	require.NotEmpty(t, report.Divergences)
	assert.Equal(t, "total_cost", report.Divergences[0].Field)

	// Verify never repairs: the tampered value is still stored.
	stored, err := env.holdings.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, stored.TotalCost.Equal(decimal.NewFromInt(1)))
}

func TestVerify_DetectsMissingAndUnexpected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit(t, env, domain.TransactionBuy, "sec1", "100", "10", "1", 1)

	// Remove the real holding and plant one with no backing history.
	key := domain.HoldingKey{AccountID: "acct1", PlatformID: "plat1", SecurityID: "sec1"}
	require.NoError(t, env.holdings.Delete(ctx, key))
	require.NoError(t, env.holdings.Insert(ctx, &domain.Holding{
		AccountID:   "acct1",
		PlatformID:  "plat1",
		SecurityID:  "ghost",
		Quantity:    decimal.NewFromInt(5),
		AverageCost: decimal.NewFromInt(1),
		TotalCost:   decimal.NewFromInt(5),
		Currency:    "GBP",
	}))

	report, err := env.rebuilder.Verify(ctx, "acct1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Divergent)
	assert.Equal(t, 0, report.Matched)
}

func rawTxn(id int64, txnType domain.TransactionType, quantity, price string, day int) *domain.Transaction {
	q := decimal.RequireFromString(quantity)
	p := decimal.RequireFromString(price)
	gross := domain.RoundMoney(q.Mul(p))
	fee := decimal.Zero
	if txnType == domain.TransactionBuy {
		fee = domain.One
	}
	net := gross.Add(fee)
	if txnType == domain.TransactionSell {
		net = gross.Sub(fee)
	}
	return &domain.Transaction{
		ID:           id,
		AccountID:    "acct1",
		PlatformID:   "plat1",
		SecurityID:   "sec1",
		Type:         txnType,
		TradeDate:    time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Quantity:     q,
		PricePerUnit: p,
		Currency:     "GBP",
		FXRate:       domain.One,
		TradingFee:   fee,
		GrossAmount:  gross,
		NetAmount:    domain.RoundMoney(net),
	}
}
