package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateThresholds_CoversContiguousRange(t *testing.T) {
	require.NoError(t, ValidateThresholds())
}

func TestClassifyScore_Boundaries(t *testing.T) {
	cases := []struct {
		score    int64
		expected Level
	}{
		{0, LevelStable},
		{30, LevelStable},
		{31, LevelMonitor},
		{60, LevelMonitor},
		{61, LevelHighRisk},
		{80, LevelHighRisk},
		{81, LevelCritical},
		{100, LevelCritical},
	}

	for _, c := range cases {
		th, err := ClassifyScore(decimal.NewFromInt(c.score))
		require.NoError(t, err)
		assert.Equal(t, c.expected, th.Level, "score=%d", c.score)
	}
}

func TestClassifyScore_OutOfRangeErrors(t *testing.T) {
	_, err := ClassifyScore(decimal.NewFromInt(101))
	assert.Error(t, err)

	_, err = ClassifyScore(decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestGenerateActionPlan_CriticalSuspendsImmediately(t *testing.T) {
	plan, err := GenerateActionPlan(decimal.NewFromInt(95))
	require.NoError(t, err)

	assert.Equal(t, LevelCritical, plan.RiskLevel)
	assert.Contains(t, plan.ImmediateActions, "Suspend trading activity immediately")
}

func TestShouldEmitAlert_Thresholds(t *testing.T) {
	_, emit := ShouldEmitAlert(decimal.NewFromInt(59))
	assert.False(t, emit)

	severity, emit := ShouldEmitAlert(decimal.NewFromInt(60))
	assert.True(t, emit)
	assert.Equal(t, "WARNING", severity)

	severity, emit = ShouldEmitAlert(decimal.NewFromInt(80))
	assert.True(t, emit)
	assert.Equal(t, "CRITICAL", severity)
}
