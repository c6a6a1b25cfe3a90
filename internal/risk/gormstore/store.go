// Package gormstore implements the risk package's read-only trade
// queries and append-only assessment persistence over gorm/PostgreSQL.
package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/challengeeval/internal/risk"
)

// tradeRow is a read-only projection of the hot path's trade ledger; it
// deliberately mirrors only the columns the feature pipeline consumes.
type tradeRow struct {
	ChallengeID string `gorm:"column:challenge_id"`
	TradeID     string `gorm:"column:trade_id"`
	Symbol      string
	Side        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	RealizedPnL decimal.Decimal `gorm:"column:realized_pnl"`
	ExecutedAt  time.Time       `gorm:"column:executed_at"`
}

func (tradeRow) TableName() string { return "trades" }

type challengeRow struct {
	ID        string `gorm:"column:id"`
	TraderID  string `gorm:"column:trader_id"`
	Status    string
	StartedAt *time.Time `gorm:"column:started_at"`
}

func (challengeRow) TableName() string { return "challenges" }

// AssessmentModel is the append-only persisted row for one pipeline run.
// Rows are never updated after insert (§4.5.5): a new assessment for the
// same challenge is always a new row, ordered by AssessedAt/ID.
type AssessmentModel struct {
	ID                string `gorm:"primaryKey;type:varchar(27)"` // ksuid string length
	ChallengeID       string `gorm:"type:varchar(36);index;not null"`
	TraderID          string `gorm:"type:varchar(36);index"`
	Score             decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Level             string          `gorm:"type:varchar(20);index;not null"`
	Breakdown         string          `gorm:"type:jsonb"`
	Features          string          `gorm:"type:jsonb"`
	ActionPlan        string          `gorm:"type:jsonb"`
	AssessedAt        time.Time       `gorm:"index;not null"`
	AssessmentVersion string          `gorm:"column:assessment_version;type:varchar(20);not null"`
}

func (AssessmentModel) TableName() string { return "risk_assessments" }

// Store implements risk.TradeReader and risk.AssessmentStore.
type Store struct {
	db *gorm.DB
}

// New builds a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ActiveChallenges implements risk.TradeReader.
func (s *Store) ActiveChallenges(ctx context.Context) ([]risk.ChallengeRef, error) {
	var rows []challengeRow
	if err := s.db.WithContext(ctx).Where("status = ?", "ACTIVE").Find(&rows).Error; err != nil {
		return nil, err
	}

	refs := make([]risk.ChallengeRef, 0, len(rows))
	for _, r := range rows {
		var startedAt time.Time
		if r.StartedAt != nil {
			startedAt = *r.StartedAt
		}
		refs = append(refs, risk.ChallengeRef{
			ChallengeID: r.ID,
			TraderID:    r.TraderID,
			StartedAt:   startedAt,
		})
	}
	return refs, nil
}

// TradesForChallenge implements risk.TradeReader.
func (s *Store) TradesForChallenge(ctx context.Context, challengeID string) ([]risk.Trade, error) {
	var rows []tradeRow
	if err := s.db.WithContext(ctx).Where("challenge_id = ?", challengeID).Find(&rows).Error; err != nil {
		return nil, err
	}

	trades := make([]risk.Trade, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, risk.Trade{
			TradeID:     r.TradeID,
			Symbol:      r.Symbol,
			Side:        r.Side,
			Quantity:    r.Quantity,
			Price:       r.Price,
			RealizedPnL: r.RealizedPnL,
			ExecutedAt:  r.ExecutedAt,
		})
	}
	return trades, nil
}

// SaveAssessment implements risk.AssessmentStore. It always inserts: the
// table has no update path, enforcing append-only history at the storage
// layer as well as the domain layer.
func (s *Store) SaveAssessment(ctx context.Context, a risk.Assessment) error {
	breakdown, err := json.Marshal(a.Breakdown)
	if err != nil {
		return err
	}
	features, err := json.Marshal(a.Features)
	if err != nil {
		return err
	}
	actionPlan, err := json.Marshal(a.ActionPlan)
	if err != nil {
		return err
	}

	row := AssessmentModel{
		ID:                a.ID,
		ChallengeID:       a.ChallengeID,
		TraderID:          a.TraderID,
		Score:             a.Score,
		Level:             string(a.Level),
		Breakdown:         string(breakdown),
		Features:          string(features),
		ActionPlan:        string(actionPlan),
		AssessedAt:        a.AssessedAt,
		AssessmentVersion: a.AssessmentVersion,
	}

	return s.db.WithContext(ctx).Create(&row).Error
}
