// Package gormstore implements the challenge.Storage contract on top of
// gorm and PostgreSQL, using SELECT ... FOR UPDATE plus an optimistic
// version check as the storage contract's two lines of defense (§6.2).
package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/challengeeval/internal/challenge"
)

// Model is the gorm row shape for a challenge. Monetary fields are stored
// as fixed-precision decimal columns, never float, matching the
// shopspring/decimal convention used throughout the domain.
type Model struct {
	ID string `gorm:"primaryKey;type:varchar(36)"`

	InitialBalance          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	MaxDailyDrawdownPercent decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	MaxTotalDrawdownPercent decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	ProfitTargetPercent     decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	ChallengeType           string          `gorm:"type:varchar(40);index"`

	CurrentEquity decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	MaxEquityEver decimal.Decimal `gorm:"type:decimal(20,2);not null"`

	DailyStartEquity decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	DailyMaxEquity   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	DailyMinEquity   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CurrentDate      time.Time       `gorm:"type:date;not null"`

	TotalTrades int64           `gorm:"not null;default:0"`
	TotalPnL    decimal.Decimal `gorm:"type:decimal(20,2);not null"`

	Status        string     `gorm:"type:varchar(10);index;not null"`
	CreatedAt     time.Time  `gorm:"not null"`
	StartedAt     *time.Time
	EndedAt       *time.Time
	LastTradeAt   *time.Time
	FundedAt      *time.Time
	FailureReason *string `gorm:"type:varchar(40)"`

	Version int64 `gorm:"not null;default:0"`
}

// TableName pins the table name so renames of Model never rename the table.
func (Model) TableName() string { return "challenges" }

func toDomain(m Model) *challenge.Challenge {
	var reason *challenge.FailureReason
	if m.FailureReason != nil {
		fr := challenge.FailureReason(*m.FailureReason)
		reason = &fr
	}
	return &challenge.Challenge{
		ID:                      m.ID,
		InitialBalance:          m.InitialBalance,
		MaxDailyDrawdownPercent: m.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: m.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     m.ProfitTargetPercent,
		ChallengeType:           m.ChallengeType,
		CurrentEquity:           m.CurrentEquity,
		MaxEquityEver:           m.MaxEquityEver,
		DailyStartEquity:        m.DailyStartEquity,
		DailyMaxEquity:          m.DailyMaxEquity,
		DailyMinEquity:          m.DailyMinEquity,
		CurrentDate:             m.CurrentDate,
		TotalTrades:             m.TotalTrades,
		TotalPnL:                m.TotalPnL,
		Status:                  challenge.Status(m.Status),
		CreatedAt:               m.CreatedAt,
		StartedAt:               m.StartedAt,
		EndedAt:                 m.EndedAt,
		LastTradeAt:             m.LastTradeAt,
		FundedAt:                m.FundedAt,
		FailureReason:           reason,
		Version:                 m.Version,
	}
}

func fromDomain(c *challenge.Challenge) Model {
	var reason *string
	if c.FailureReason != nil {
		s := string(*c.FailureReason)
		reason = &s
	}
	return Model{
		ID:                      c.ID,
		InitialBalance:          c.InitialBalance,
		MaxDailyDrawdownPercent: c.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: c.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     c.ProfitTargetPercent,
		ChallengeType:           c.ChallengeType,
		CurrentEquity:           c.CurrentEquity,
		MaxEquityEver:           c.MaxEquityEver,
		DailyStartEquity:        c.DailyStartEquity,
		DailyMaxEquity:          c.DailyMaxEquity,
		DailyMinEquity:          c.DailyMinEquity,
		CurrentDate:             c.CurrentDate,
		TotalTrades:             c.TotalTrades,
		TotalPnL:                c.TotalPnL,
		Status:                  string(c.Status),
		CreatedAt:               c.CreatedAt,
		StartedAt:               c.StartedAt,
		EndedAt:                 c.EndedAt,
		LastTradeAt:             c.LastTradeAt,
		FundedAt:                c.FundedAt,
		FailureReason:           reason,
		Version:                 c.Version,
	}
}
