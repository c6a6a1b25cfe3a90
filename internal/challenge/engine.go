package challenge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/challengeeval/internal/metrics"
	"github.com/abdoElHodaky/challengeeval/internal/money"
)

// Publisher is the subset of the event bus the engine depends on. It lets
// the hot path emit domain events without importing the bus package
// directly (§4.3, §6.3).
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// alertThresholdFactor is how close to a rule's limit an advisory alert
// fires, expressed as a fraction of the limit (§4.3.1 step 5, supplemented
// from original_source/: 80% of the configured limit).
var alertThresholdFactor = decimal.NewFromFloat(0.8)

// Engine is the Challenge Evaluation Core (C3): it turns a TradeExecuted
// event into equity updates, rule evaluation, and lifecycle transitions,
// all inside the transaction the caller's Storage holds open.
type Engine struct {
	storage Storage
	bus     Publisher
	log     *zap.Logger
	metrics *metrics.Registry
}

// NewEngine builds an Engine over storage, publishing domain events to
// bus. metricsReg may be nil, in which case the engine runs without
// instrumentation.
func NewEngine(storage Storage, bus Publisher, log *zap.Logger, metricsReg *metrics.Registry) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{storage: storage, bus: bus, log: log, metrics: metricsReg}
}

// HandleTradeExecuted is the engine's single entry point (§4.3.1). It
// loads the challenge under the storage contract's row lock, applies the
// trade, evaluates the rules, updates status if changed, and persists the
// result. The caller owns the transaction boundary: Save is expected to
// commit it (or the caller commits separately, per the Storage
// implementation's convention).
func (e *Engine) HandleTradeExecuted(ctx context.Context, evt TradeExecuted) error {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.EngineHandleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	c, err := e.storage.LoadForUpdate(ctx, evt.ChallengeID)
	if err != nil {
		return err
	}

	oldStatus := c.Status

	if err := e.validateTradeAllowed(c, evt); err != nil {
		e.recordRejection(err)
		return err
	}

	e.handleDailyReset(c, evt.ExecutedAt)
	e.updateEquity(c, evt)

	result := EvaluateRules(c.Snapshot())
	e.emitRiskAlertsIfNeeded(c, result)

	if _, err := e.updateStatusIfChanged(c, result, evt.ExecutedAt); err != nil {
		e.recordRejection(err)
		return err
	}

	// Every accepted trade mutates the aggregate, so the version advances
	// unconditionally (§3 "monotonically increasing version integer"),
	// not only on a status transition; the storage layer's optimistic
	// check relies on this to guard every Save, not just terminal ones.
	c.Version++

	if err := e.storage.Save(ctx, c); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.TradesProcessed.Inc()
	}

	// The activating PENDING->ACTIVE transition happens in
	// validateTradeAllowed, before rule evaluation runs, so
	// updateStatusIfChanged's own return value only covers rule-driven
	// transitions. Compare against the status captured before any
	// mutation so both kinds of transition are reported (§4.3.1 step 6-7).
	statusChanged := c.Status != oldStatus
	if statusChanged {
		if e.metrics != nil {
			e.metrics.StatusTransitions.WithLabelValues(string(c.Status)).Inc()
		}
		e.bus.Publish(ctx, EventChallengeStatusChanged, ChallengeStatusChanged{
			ChallengeID: c.ID,
			OldStatus:   oldStatus,
			NewStatus:   c.Status,
			Reason:      c.FailureReason,
			ChangedAt:   evt.ExecutedAt,
		})
	}

	return nil
}

func (e *Engine) recordRejection(err error) {
	if e.metrics == nil {
		return
	}
	var ee *EngineError
	code := "unknown"
	if asEngineError(err, &ee) {
		code = string(ee.Code)
	}
	e.metrics.TradesRejected.WithLabelValues(code).Inc()
}

// validateTradeAllowed implements §4.3.1 step 2: terminal states reject
// every trade; a PENDING challenge activates on its first trade.
func (e *Engine) validateTradeAllowed(c *Challenge, evt TradeExecuted) error {
	switch c.Status {
	case StatusFailed:
		return NewTradeRejected(c.ID, "already FAILED")
	case StatusFunded:
		return NewTradeRejected(c.ID, "already FUNDED")
	case StatusPending:
		c.Status = StatusActive
		startedAt := evt.ExecutedAt
		c.StartedAt = &startedAt
	}
	return nil
}

// handleDailyReset implements §4.3.1 step 3: daily tracking resets at UTC
// midnight, using the calendar date of the trade.
func (e *Engine) handleDailyReset(c *Challenge, executedAt time.Time) {
	tradeDate := executedAt.UTC().Truncate(24 * time.Hour)
	if !tradeDate.Equal(c.CurrentDate) {
		c.CurrentDate = tradeDate
		c.DailyStartEquity = c.CurrentEquity
		c.DailyMaxEquity = c.CurrentEquity
		c.DailyMinEquity = c.CurrentEquity
	}
}

// updateEquity implements §4.3.1 step 4: apply realized PnL, floor at
// zero, track all-time and daily extremes, then publish EquityUpdated.
// This runs before rule evaluation so C1 always sees fully consistent
// state (§4.1).
func (e *Engine) updateEquity(c *Challenge, evt TradeExecuted) {
	previousEquity := c.CurrentEquity

	c.CurrentEquity = money.FloorZero(c.CurrentEquity.Add(evt.RealizedPnL))

	if c.CurrentEquity.GreaterThan(c.MaxEquityEver) {
		c.MaxEquityEver = c.CurrentEquity
	}
	if c.CurrentEquity.GreaterThan(c.DailyMaxEquity) {
		c.DailyMaxEquity = c.CurrentEquity
	}
	if c.CurrentEquity.LessThan(c.DailyMinEquity) {
		c.DailyMinEquity = c.CurrentEquity
	}

	c.TotalTrades++
	c.TotalPnL = c.TotalPnL.Add(evt.RealizedPnL)
	lastTradeAt := evt.ExecutedAt
	c.LastTradeAt = &lastTradeAt

	e.bus.Publish(context.Background(), EventEquityUpdated, EquityUpdated{
		ChallengeID:      c.ID,
		PreviousEquity:   previousEquity,
		CurrentEquity:    c.CurrentEquity,
		MaxEquityEver:    c.MaxEquityEver,
		DailyStartEquity: c.DailyStartEquity,
		DailyMaxEquity:   c.DailyMaxEquity,
		DailyMinEquity:   c.DailyMinEquity,
		TradePnL:         evt.RealizedPnL,
		TotalTrades:      c.TotalTrades,
		TotalPnL:         c.TotalPnL,
		ExecutedAt:       evt.ExecutedAt,
	})
}

// updateStatusIfChanged implements §4.3.1 step 6: apply the rule
// result if it differs from the current status, validating the
// transition and stamping terminal-state timestamps and the failure
// reason. The version is advanced by HandleTradeExecuted, not here.
func (e *Engine) updateStatusIfChanged(c *Challenge, result RuleResult, executedAt time.Time) (bool, error) {
	if result.NewStatus == c.Status {
		return false, nil
	}

	if err := validateStatusTransition(c.Status, result.NewStatus); err != nil {
		return false, NewInvalidTransition(c.ID, c.Status, result.NewStatus)
	}

	c.Status = result.NewStatus

	if result.NewStatus.IsTerminal() {
		endedAt := executedAt
		c.EndedAt = &endedAt
		if result.NewStatus == StatusFunded {
			fundedAt := executedAt
			c.FundedAt = &fundedAt
		}
	}

	if result.NewStatus == StatusFailed {
		c.FailureReason = result.Reason
	}

	return true, nil
}

var validTransitions = map[Status]map[Status]bool{
	StatusPending: {StatusActive: true},
	StatusActive:  {StatusFailed: true, StatusFunded: true},
	StatusFailed:  {},
	StatusFunded:  {},
}

func validateStatusTransition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		return NewInvalidTransition("", from, to)
	}
	return nil
}

// emitRiskAlertsIfNeeded implements the hot-path advisory alerts
// supplemented from original_source/: fired when drawdown crosses 80% of
// its configured limit, independent of whether the rule itself fired.
// These never change challenge status (§4.5.4).
func (e *Engine) emitRiskAlertsIfNeeded(c *Challenge, result RuleResult) {
	dailyPct := DailyDrawdownPercentage(c.CurrentEquity, c.DailyStartEquity)
	totalPct := TotalDrawdownPercentage(c.CurrentEquity, c.MaxEquityEver)

	dailyAlertThreshold := c.MaxDailyDrawdownPercent.Div(hundred).Mul(alertThresholdFactor)
	totalAlertThreshold := c.MaxTotalDrawdownPercent.Div(hundred).Mul(alertThresholdFactor)

	raisedAt := time.Now().UTC()
	if c.LastTradeAt != nil {
		raisedAt = *c.LastTradeAt
	}

	if dailyPct.GreaterThanOrEqual(dailyAlertThreshold) {
		if e.metrics != nil {
			e.metrics.RiskAlertsRaised.WithLabelValues(string(AlertSeverityMedium)).Inc()
		}
		e.bus.Publish(context.Background(), EventRiskAlert, RiskAlert{
			ChallengeID: c.ID,
			AlertType:   "HIGH_DAILY_DRAWDOWN",
			Severity:    AlertSeverityMedium,
			Title:       "High Daily Drawdown Warning",
			Message:     "daily drawdown approaching configured limit",
			Context: map[string]string{
				"current_equity":      c.CurrentEquity.String(),
				"daily_start_equity":  c.DailyStartEquity.String(),
				"drawdown_percentage": dailyPct.String(),
				"threshold_percentage": c.MaxDailyDrawdownPercent.String(),
			},
			RaisedAt: raisedAt,
		})
	}

	if totalPct.GreaterThanOrEqual(totalAlertThreshold) {
		if e.metrics != nil {
			e.metrics.RiskAlertsRaised.WithLabelValues(string(AlertSeverityHigh)).Inc()
		}
		e.bus.Publish(context.Background(), EventRiskAlert, RiskAlert{
			ChallengeID: c.ID,
			AlertType:   "HIGH_TOTAL_DRAWDOWN",
			Severity:    AlertSeverityHigh,
			Title:       "High Total Drawdown Warning",
			Message:     "total drawdown approaching configured limit",
			Context: map[string]string{
				"current_equity":       c.CurrentEquity.String(),
				"max_equity_ever":      c.MaxEquityEver.String(),
				"drawdown_percentage":  totalPct.String(),
				"threshold_percentage": c.MaxTotalDrawdownPercent.String(),
			},
			RaisedAt: raisedAt,
		})
	}
}
