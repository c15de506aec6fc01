package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

func createTestTransaction(accountID, securityID string, tradeDate time.Time) *domain.Transaction {
	return &domain.Transaction{
		AccountID:    accountID,
		PlatformID:   "plat1",
		SecurityID:   securityID,
		Type:         domain.TransactionBuy,
		TradeDate:    tradeDate,
		Quantity:     decimal.NewFromInt(100),
		PricePerUnit: decimal.RequireFromString("10.00"),
		Currency:     "GBP",
		FXRate:       domain.One,
		TradingFee:   decimal.RequireFromString("1.00"),
		StampDuty:    decimal.Zero,
		FXFee:        decimal.Zero,
		GrossAmount:  decimal.RequireFromString("1000.00"),
		NetAmount:    decimal.RequireFromString("1001.00"),
		Notes:        "test trade",
		CreatedAt:    time.Now().UnixMilli(),
	}
}

func TestTransactionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txn := createTestTransaction("acct1", "sec1", date)

	err := store.Insert(ctx, txn)
	require.NoError(t, err)
	require.NotZero(t, txn.ID, "Insert must assign an ID")

	retrieved, err := store.GetByID(ctx, txn.ID)
	require.NoError(t, err)

	assert.Equal(t, txn.AccountID, retrieved.AccountID)
	assert.Equal(t, txn.Type, retrieved.Type)
	assert.True(t, retrieved.TradeDate.Equal(date), "TradeDate mismatch: got %v", retrieved.TradeDate)
	assert.True(t, retrieved.Quantity.Equal(txn.Quantity), "Quantity mismatch: got %s", retrieved.Quantity)
	assert.True(t, retrieved.PricePerUnit.Equal(txn.PricePerUnit), "PricePerUnit mismatch: got %s", retrieved.PricePerUnit)
	assert.True(t, retrieved.NetAmount.Equal(txn.NetAmount), "NetAmount mismatch: got %s", retrieved.NetAmount)
	assert.Equal(t, txn.Notes, retrieved.Notes)
}

func TestTransactionStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	_, err := store.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_GetByAccountReplayOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	// February lands first so it gets the lower ID, but January must replay first.
	late := createTestTransaction("acct1", "sec1", feb)
	require.NoError(t, store.Insert(ctx, late))
	earlyA := createTestTransaction("acct1", "sec1", jan)
	require.NoError(t, store.Insert(ctx, earlyA))
	earlyB := createTestTransaction("acct1", "sec2", jan)
	require.NoError(t, store.Insert(ctx, earlyB))
	require.NoError(t, store.Insert(ctx, createTestTransaction("acct2", "sec1", jan)))

	result, err := store.GetByAccount(ctx, "acct1")
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, earlyA.ID, result[0].ID)
	assert.Equal(t, earlyB.ID, result[1].ID)
	assert.Equal(t, late.ID, result[2].ID)
}

func TestTransactionStore_GetByHoldingKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Transaction{
		createTestTransaction("acct1", "sec1", date),
		createTestTransaction("acct1", "sec2", date),
		createTestTransaction("acct1", "sec1", date),
	}))

	key := domain.HoldingKey{AccountID: "acct1", PlatformID: "plat1", SecurityID: "sec1"}
	result, err := store.GetByHoldingKey(ctx, key)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestTransactionStore_InsertBulkAssignsSequentialIDs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := []*domain.Transaction{
		createTestTransaction("acct1", "sec1", date),
		createTestTransaction("acct1", "sec1", date),
		createTestTransaction("acct1", "sec1", date),
	}
	require.NoError(t, store.InsertBulk(ctx, txns))

	assert.Less(t, txns[0].ID, txns[1].ID)
	assert.Less(t, txns[1].ID, txns[2].ID)
}
