package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a Challenge aggregate (§3).
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusFailed  Status = "FAILED"
	StatusFunded  Status = "FUNDED"
)

// IsTerminal reports whether s can never transition again.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusFunded
}

// FailureReason identifies which rule caused a FAILED transition.
type FailureReason string

const (
	FailureMaxDailyDrawdown FailureReason = "MAX_DAILY_DRAWDOWN"
	FailureMaxTotalDrawdown FailureReason = "MAX_TOTAL_DRAWDOWN"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Challenge is the aggregate root described in §3. It is mutable in-memory
// state exclusively owned, at any moment, by the transaction holding its
// row lock (§4.2); between transactions the persisted row is authoritative
// and no in-process cache may outlive a transaction (§5).
type Challenge struct {
	ID string

	// Configuration — immutable after creation.
	InitialBalance           decimal.Decimal
	MaxDailyDrawdownPercent  decimal.Decimal
	MaxTotalDrawdownPercent  decimal.Decimal
	ProfitTargetPercent      decimal.Decimal
	ChallengeType            string

	// Equity state.
	CurrentEquity decimal.Decimal
	MaxEquityEver decimal.Decimal

	// Daily tracking.
	DailyStartEquity decimal.Decimal
	DailyMaxEquity   decimal.Decimal
	DailyMinEquity   decimal.Decimal
	CurrentDate      time.Time // UTC calendar date, truncated to midnight

	// Performance tracking.
	TotalTrades int64
	TotalPnL    decimal.Decimal

	// Lifecycle.
	Status        Status
	CreatedAt     time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
	LastTradeAt   *time.Time
	FundedAt      *time.Time
	FailureReason *FailureReason

	// Concurrency.
	Version int64
}

// Snapshot is the read-only view the Rules Evaluator (C1) consumes. It is
// derived from a Challenge but kept as its own type so C1 never depends on
// the mutable aggregate directly (§4.1).
type Snapshot struct {
	Status                  Status
	CurrentEquity           decimal.Decimal
	MaxEquityEver           decimal.Decimal
	DailyStartEquity        decimal.Decimal
	InitialBalance          decimal.Decimal
	MaxDailyDrawdownPercent decimal.Decimal
	MaxTotalDrawdownPercent decimal.Decimal
	ProfitTargetPercent     decimal.Decimal
}

// Snapshot projects the current aggregate state for rule evaluation.
func (c *Challenge) Snapshot() Snapshot {
	return Snapshot{
		Status:                  c.Status,
		CurrentEquity:           c.CurrentEquity,
		MaxEquityEver:           c.MaxEquityEver,
		DailyStartEquity:        c.DailyStartEquity,
		InitialBalance:          c.InitialBalance,
		MaxDailyDrawdownPercent: c.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: c.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     c.ProfitTargetPercent,
	}
}
