package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type names published on the event bus (§6.3). Field order carries
// no stability guarantee; names and semantics do.
const (
	EventEquityUpdated        = "EQUITY_UPDATED"
	EventChallengeStatusChanged = "CHALLENGE_STATUS_CHANGED"
	EventRiskAlert            = "RISK_ALERT"
)

// TradeExecuted is the inbound event that drives the hot path (§3).
type TradeExecuted struct {
	ChallengeID string
	TradeID     string
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	RealizedPnL decimal.Decimal
	ExecutedAt  time.Time
}

// EquityUpdated is emitted after equity is fully consistent and before any
// ChallengeStatusChanged (§4.3.1 ordering guarantee).
type EquityUpdated struct {
	ChallengeID      string
	PreviousEquity   decimal.Decimal
	CurrentEquity    decimal.Decimal
	MaxEquityEver    decimal.Decimal
	DailyStartEquity decimal.Decimal
	DailyMaxEquity   decimal.Decimal
	DailyMinEquity   decimal.Decimal
	TradePnL         decimal.Decimal
	TotalTrades      int64
	TotalPnL         decimal.Decimal
	ExecutedAt       time.Time
}

// ChallengeStatusChanged records every lifecycle transition, emitted after
// EquityUpdated and before the caller's transaction commits.
type ChallengeStatusChanged struct {
	ChallengeID string
	OldStatus   Status
	NewStatus   Status
	Reason      *FailureReason
	ChangedAt   time.Time
}

// AlertSeverity is the severity of a RiskAlert. MEDIUM and HIGH are the
// two severities the hot-path drawdown-approach alerts use (supplemented
// from original_source/; see SPEC_FULL.md); the cold-path pipeline uses
// HIGH for warning-level scores and CRITICAL for critical ones.
type AlertSeverity string

const (
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// RiskAlert is advisory only: it never changes challenge status (§3, §4.3.1
// step 5, §4.5.4).
type RiskAlert struct {
	ChallengeID string
	AlertType   string
	Severity    AlertSeverity
	Title       string
	Message     string
	// Context carries a snapshot of the metrics that triggered the alert,
	// e.g. "current_equity", "drawdown_percentage", "threshold_percentage".
	Context map[string]string
	RaisedAt time.Time
}
