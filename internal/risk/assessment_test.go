package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessChallengeRisk_ProducesTimeSortableID(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := started.Add(1 * time.Hour)

	a1, err := AssessChallengeRisk("c1", "trader1", nil, started, now, "1.0.0")
	require.NoError(t, err)
	assert.NotEmpty(t, a1.ID)
	assert.Equal(t, "c1", a1.ChallengeID)
	assert.Equal(t, LevelStable, a1.Level) // no trades -> neutral-to-low score
	assert.Equal(t, "1.0.0", a1.AssessmentVersion)

	a2, err := AssessChallengeRisk("c1", "trader1", nil, started, now.Add(time.Minute), "1.0.0")
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID, a2.ID)
	assert.True(t, a2.ID > a1.ID, "ksuid ids should sort by creation time")
}
