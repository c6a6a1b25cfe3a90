package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTrade(pnl float64, qty, price float64, at time.Time) Trade {
	return Trade{
		TradeID:     at.String(),
		Symbol:      "EURUSD",
		Side:        "BUY",
		Quantity:    decimal.NewFromFloat(qty),
		Price:       decimal.NewFromFloat(price),
		RealizedPnL: decimal.NewFromFloat(pnl),
		ExecutedAt:  at,
	}
}

func TestComputeFeatures_NoTradesReturnsDefaults(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := started.Add(2 * time.Hour)

	fs := ComputeFeatures(nil, started, now)

	assert.True(t, fs.ProfitFactor.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, fs.TotalTrades)
	assert.True(t, fs.AnalysisPeriodHours.Equal(decimal.NewFromInt(1)))
}

func TestComputeFeatures_WinRateAndProfitFactor(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(100, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-50, 1, 100, started.Add(2*time.Hour)),
		mkTrade(200, 1, 100, started.Add(3*time.Hour)),
	}
	now := started.Add(4 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	require.Equal(t, 3, fs.TotalTrades)
	assert.True(t, fs.WinRate.Equal(decimal.NewFromFloat(66.67)), fs.WinRate.String())

	expectedFactor := decimal.NewFromInt(300).Div(decimal.NewFromInt(50)).Round(2)
	assert.True(t, fs.ProfitFactor.Equal(expectedFactor), fs.ProfitFactor.String())
}

func TestComputeFeatures_LossStreakCountsFromMostRecent(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(100, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-10, 1, 100, started.Add(2*time.Hour)),
		mkTrade(-20, 1, 100, started.Add(3*time.Hour)),
		mkTrade(-30, 1, 100, started.Add(4*time.Hour)),
	}
	now := started.Add(5 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	assert.Equal(t, 3, fs.LossStreak)
}

func TestComputeFeatures_LossStreakResetsOnWin(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(-10, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-20, 1, 100, started.Add(2*time.Hour)),
		mkTrade(5, 1, 100, started.Add(3*time.Hour)),
	}
	now := started.Add(4 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	assert.Equal(t, 0, fs.LossStreak)
}

func TestComputeFeatures_RevengeTradingRequiresThreeTrades(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(-10, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-5, 10, 100, started.Add(2*time.Hour)),
	}
	now := started.Add(3 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	assert.True(t, fs.RevengeTradingScore.IsZero())
}

func TestComputeFeatures_RevengeTradingDetectsLargerFollowOnPosition(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(100, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-10, 1, 100, started.Add(2*time.Hour)),  // loss, notional 100
		mkTrade(-5, 5, 100, started.Add(3*time.Hour)),   // notional 500, >1.2x
	}
	now := started.Add(4 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	assert.True(t, fs.RevengeTradingScore.GreaterThan(decimal.Zero))
}

func TestComputeFeatures_OrdersOutOfOrderInputChronologically(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		mkTrade(-20, 1, 100, started.Add(3*time.Hour)),
		mkTrade(100, 1, 100, started.Add(1*time.Hour)),
		mkTrade(-10, 1, 100, started.Add(2*time.Hour)),
	}
	now := started.Add(4 * time.Hour)

	fs := ComputeFeatures(trades, started, now)

	// Most recent chronologically is the -20 trade, so streak should be 2
	// (the -10 then -20), not influenced by input order.
	assert.Equal(t, 2, fs.LossStreak)
}
