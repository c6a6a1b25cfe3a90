package risk

import (
	"time"

	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
)

// Assessment is the complete, persisted output of one pipeline run for a
// single challenge: the score, its classification, the feature vector it
// was computed from, and the recommended action plan (§4.5, §4.5.4).
type Assessment struct {
	ID          string // ksuid stamped with AssessedAt, so ids sort by assessment time
	ChallengeID string
	TraderID    string

	Score      decimal.Decimal
	Breakdown  ScoreBreakdown
	Level      Level
	Features   FeatureSet
	ActionPlan ActionPlan

	AssessedAt        time.Time
	AssessmentVersion string
}

// AssessChallengeRisk runs the full cold-path pipeline (feature
// engineering, scoring, classification, action planning) for one
// challenge's trade history (§4.5 steps 1-5). now should be
// time.Now().UTC() in production and a fixed instant in tests.
// assessmentVersion is the deployment's configured §6.4
// assessment_version knob, persisted verbatim with the row so a stored
// assessment records which scoring model version produced it.
func AssessChallengeRisk(challengeID, traderID string, trades []Trade, challengeStartedAt, now time.Time, assessmentVersion string) (Assessment, error) {
	features := ComputeFeatures(trades, challengeStartedAt, now)
	breakdown := Score(features)

	threshold, err := ClassifyScore(breakdown.Total)
	if err != nil {
		return Assessment{}, err
	}

	plan, err := GenerateActionPlan(breakdown.Total)
	if err != nil {
		return Assessment{}, err
	}

	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		ID:                id.String(),
		ChallengeID:       challengeID,
		TraderID:          traderID,
		Score:             breakdown.Total,
		Breakdown:         breakdown,
		Level:             threshold.Level,
		Features:          features,
		ActionPlan:        plan,
		AssessedAt:        now,
		AssessmentVersion: assessmentVersion,
	}, nil
}

// ShouldEmitAlert reports whether score crosses the warning or critical
// boundary and, if so, the severity to use on the RiskAlert event
// (§4.5.4): advisory only, never a challenge-status change.
func ShouldEmitAlert(score decimal.Decimal) (severity string, emit bool) {
	switch {
	case score.GreaterThanOrEqual(AlertCriticalThreshold):
		return "CRITICAL", true
	case score.GreaterThanOrEqual(AlertWarningThreshold):
		return "WARNING", true
	default:
		return "", false
	}
}
