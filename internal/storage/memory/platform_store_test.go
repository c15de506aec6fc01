package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

func TestPlatformStore_InsertAndGet(t *testing.T) {
	store := NewPlatformStore()
	ctx := context.Background()

	p := &domain.Platform{
		ID:                  "hl-isa",
		Name:                "Hargreaves Lansdown",
		AccountType:         domain.AccountTypeISA,
		Currency:            "GBP",
		TradingFeeFixed:     decimal.RequireFromString("11.95"),
		StampDutyApplicable: true,
	}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "hl-isa")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.TradingFeeFixed.Equal(p.TradingFeeFixed) {
		t.Errorf("TradingFeeFixed mismatch: got %s", got.TradingFeeFixed)
	}
	if !got.StampDutyApplicable {
		t.Error("StampDutyApplicable not preserved")
	}
}

func TestPlatformStore_DuplicateKey(t *testing.T) {
	store := NewPlatformStore()
	ctx := context.Background()

	p := &domain.Platform{ID: "plat1", Name: "One", Currency: "GBP"}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, &domain.Platform{ID: "plat1", Name: "Two", Currency: "GBP"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPlatformStore_NotFound(t *testing.T) {
	store := NewPlatformStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPlatformStore_GetAllOrdered(t *testing.T) {
	store := NewPlatformStore()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := store.Insert(ctx, &domain.Platform{ID: id, Name: id, Currency: "GBP"}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 platforms, got %d", len(result))
	}
	if result[0].ID != "a" || result[2].ID != "c" {
		t.Errorf("Platforms not ordered by ID: %s, %s, %s", result[0].ID, result[1].ID, result[2].ID)
	}
}
