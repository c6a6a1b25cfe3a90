package challenge

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot() Snapshot {
	return Snapshot{
		Status:                  StatusActive,
		CurrentEquity:           decimal.NewFromInt(10000),
		MaxEquityEver:           decimal.NewFromInt(10000),
		DailyStartEquity:        decimal.NewFromInt(10000),
		InitialBalance:          decimal.NewFromInt(10000),
		MaxDailyDrawdownPercent: decimal.NewFromInt(5),
		MaxTotalDrawdownPercent: decimal.NewFromInt(10),
		ProfitTargetPercent:     decimal.NewFromInt(10),
	}
}

func TestEvaluateRules_NonActiveNeverFires(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusFailed, StatusFunded} {
		s := baseSnapshot()
		s.Status = status
		result := EvaluateRules(s)
		assert.Equal(t, status, result.NewStatus)
		assert.Nil(t, result.Reason)
	}
}

func TestEvaluateRules_DailyDrawdownFires(t *testing.T) {
	s := baseSnapshot()
	s.CurrentEquity = decimal.NewFromInt(9400) // 6% daily loss, limit 5%

	result := EvaluateRules(s)

	require.Equal(t, StatusFailed, result.NewStatus)
	require.NotNil(t, result.Reason)
	assert.Equal(t, FailureMaxDailyDrawdown, *result.Reason)
}

func TestEvaluateRules_DailyDrawdownAtExactLimitDoesNotFire(t *testing.T) {
	s := baseSnapshot()
	s.CurrentEquity = decimal.NewFromInt(9500) // exactly 5% loss, strict '>' required

	result := EvaluateRules(s)

	assert.Equal(t, StatusActive, result.NewStatus)
}

func TestEvaluateRules_TotalDrawdownFiresWhenDailyDoesNot(t *testing.T) {
	s := baseSnapshot()
	s.MaxEquityEver = decimal.NewFromInt(20000)
	s.DailyStartEquity = decimal.NewFromInt(9000) // no daily drawdown
	s.CurrentEquity = decimal.NewFromInt(17000)   // 15% total drawdown, limit 10%

	result := EvaluateRules(s)

	require.Equal(t, StatusFailed, result.NewStatus)
	assert.Equal(t, FailureMaxTotalDrawdown, *result.Reason)
}

func TestEvaluateRules_DailyDrawdownDominatesTotalDrawdown(t *testing.T) {
	s := baseSnapshot()
	s.MaxEquityEver = decimal.NewFromInt(20000)
	s.DailyStartEquity = decimal.NewFromInt(10000)
	s.CurrentEquity = decimal.NewFromInt(9000) // 10% daily (fires), also 55% total (would fire)

	result := EvaluateRules(s)

	require.Equal(t, StatusFailed, result.NewStatus)
	assert.Equal(t, FailureMaxDailyDrawdown, *result.Reason)
}

func TestEvaluateRules_ProfitTargetFunds(t *testing.T) {
	s := baseSnapshot()
	s.CurrentEquity = decimal.NewFromInt(11000) // exactly 10% profit, non-strict '>='

	result := EvaluateRules(s)

	assert.Equal(t, StatusFunded, result.NewStatus)
	assert.Nil(t, result.Reason)
}

func TestEvaluateRules_ZeroDenominatorGuards(t *testing.T) {
	s := baseSnapshot()
	s.DailyStartEquity = decimal.Zero
	s.MaxEquityEver = decimal.Zero
	s.InitialBalance = decimal.Zero
	s.CurrentEquity = decimal.NewFromInt(-100) // unreachable in practice (floored at zero upstream)

	result := EvaluateRules(s)

	assert.Equal(t, StatusActive, result.NewStatus)
}

func TestEvaluateRules_Determinism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same snapshot always yields same result", prop.ForAll(
		func(equity, maxEquity, dailyStart, initial float64) bool {
			s := baseSnapshot()
			s.CurrentEquity = decimal.NewFromFloat(equity)
			s.MaxEquityEver = decimal.NewFromFloat(maxEquity)
			s.DailyStartEquity = decimal.NewFromFloat(dailyStart)
			s.InitialBalance = decimal.NewFromFloat(initial)

			r1 := EvaluateRules(s)
			r2 := EvaluateRules(s)

			return r1.NewStatus == r2.NewStatus &&
				((r1.Reason == nil && r2.Reason == nil) || (r1.Reason != nil && r2.Reason != nil && *r1.Reason == *r2.Reason))
		},
		gen.Float64Range(0, 50000),
		gen.Float64Range(0, 50000),
		gen.Float64Range(0, 50000),
		gen.Float64Range(1, 50000),
	))

	properties.TestingRun(t)
}

func TestDailyDrawdownPercentage(t *testing.T) {
	pct := DailyDrawdownPercentage(decimal.NewFromInt(9000), decimal.NewFromInt(10000))
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.1)))
}

func TestTotalDrawdownPercentage(t *testing.T) {
	pct := TotalDrawdownPercentage(decimal.NewFromInt(8000), decimal.NewFromInt(10000))
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.2)))
}

func TestProfitPercentage(t *testing.T) {
	pct := ProfitPercentage(decimal.NewFromInt(11000), decimal.NewFromInt(10000))
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.1)))
}
