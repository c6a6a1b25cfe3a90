package risk

import (
	"context"
	"time"
)

// ChallengeRef is the minimal set of fields the cold path needs about a
// challenge, kept separate from challenge.Challenge so this package never
// imports the hot-path aggregate.
type ChallengeRef struct {
	ChallengeID string
	TraderID    string
	StartedAt   time.Time
}

// TradeReader gives the pipeline read-only access to trade history. It
// never locks rows and never writes: the cold path must not interfere
// with the hot path's pessimistic locking (§4.5, §5).
type TradeReader interface {
	// ActiveChallenges returns every challenge currently eligible for
	// assessment (typically: status ACTIVE).
	ActiveChallenges(ctx context.Context) ([]ChallengeRef, error)

	// TradesForChallenge returns the full trade tape for challengeID,
	// in any order; ComputeFeatures sorts it.
	TradesForChallenge(ctx context.Context, challengeID string) ([]Trade, error)
}

// AssessmentStore appends completed assessments. Assessment history is
// append-only (§4.5.5): a store must never update or delete a prior
// Assessment, only add new ones.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, a Assessment) error
}
