package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-ledger/internal/domain"
)

func testPlatform() *domain.Platform {
	return &domain.Platform{
		ID:                  "plat1",
		Name:                "Test Platform",
		Currency:            "GBP",
		TradingFeeFixed:     decimal.RequireFromString("11.95"),
		TradingFeePct:       decimal.RequireFromString("0.25"),
		FXFeePct:            decimal.RequireFromString("1.00"),
		StampDutyApplicable: true,
	}
}

func TestCalculate_DomesticPurchase(t *testing.T) {
	p := testPlatform()
	gross := decimal.NewFromInt(1000)

	b, err := Calculate(p, gross, "GBP", true)
	require.NoError(t, err)

	// 11.95 + 1000 * 0.25% = 14.45
	assert.True(t, b.Trading.Equal(decimal.RequireFromString("14.45")), "Trading: got %s", b.Trading)
	// Domestic trade: no FX fee
	assert.True(t, b.FX.IsZero(), "FX: got %s", b.FX)
	// 0.5% of 1000
	assert.True(t, b.StampDuty.Equal(decimal.RequireFromString("5.00")), "StampDuty: got %s", b.StampDuty)
	assert.True(t, b.Total().Equal(decimal.RequireFromString("19.45")), "Total: got %s", b.Total())
}

func TestCalculate_CrossCurrencyPurchase(t *testing.T) {
	p := testPlatform()
	gross := decimal.NewFromInt(1000)

	b, err := Calculate(p, gross, "USD", true)
	require.NoError(t, err)

	// FX fee applies, stamp duty does not: the trade is not in the
	// platform's domestic currency.
	assert.True(t, b.FX.Equal(decimal.RequireFromString("10.00")), "FX: got %s", b.FX)
	assert.True(t, b.StampDuty.IsZero(), "StampDuty: got %s", b.StampDuty)
}

func TestCalculate_SellSkipsStampDuty(t *testing.T) {
	p := testPlatform()
	gross := decimal.NewFromInt(1000)

	b, err := Calculate(p, gross, "GBP", false)
	require.NoError(t, err)

	assert.True(t, b.StampDuty.IsZero(), "no stamp duty on sells, got %s", b.StampDuty)
	assert.True(t, b.Trading.Equal(decimal.RequireFromString("14.45")))
}

func TestCalculate_NotFlaggedSkipsStampDuty(t *testing.T) {
	p := testPlatform()
	p.StampDutyApplicable = false

	b, err := Calculate(p, decimal.NewFromInt(1000), "GBP", true)
	require.NoError(t, err)

	assert.True(t, b.StampDuty.IsZero())
}

func TestCalculate_ZeroSchedule(t *testing.T) {
	p := &domain.Platform{ID: "free", Currency: "GBP"}

	b, err := Calculate(p, decimal.NewFromInt(500), "GBP", true)
	require.NoError(t, err)

	assert.True(t, b.Total().IsZero(), "zero schedule yields zero fees, got %s", b.Total())
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	p := &domain.Platform{
		ID:              "plat1",
		Currency:        "GBP",
		TradingFeeFixed: decimal.Zero,
		TradingFeePct:   decimal.RequireFromString("0.25"),
	}

	// 123.45 * 0.25% = 0.3086 25 -> 0.3086; 123.47 * 0.25% = 0.3086 75 -> 0.3087
	b, err := Calculate(p, decimal.RequireFromString("123.45"), "GBP", false)
	require.NoError(t, err)
	assert.True(t, b.Trading.Equal(decimal.RequireFromString("0.3086")), "got %s", b.Trading)

	b, err = Calculate(p, decimal.RequireFromString("123.47"), "GBP", false)
	require.NoError(t, err)
	assert.True(t, b.Trading.Equal(decimal.RequireFromString("0.3087")), "got %s", b.Trading)
}

func TestCalculate_NegativeGross(t *testing.T) {
	_, err := Calculate(testPlatform(), decimal.NewFromInt(-1), "GBP", true)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}
