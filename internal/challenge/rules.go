package challenge

import "github.com/shopspring/decimal"

// RuleResult is the output of the Rules Evaluator (§3, §4.1): the next
// status and, for a FAILED transition, the failure reason. Reason is nil
// for every other result; a FUNDED result carries no reason.
type RuleResult struct {
	NewStatus Status
	Reason    *FailureReason
}

var hundred = decimal.NewFromInt(100)

// EvaluateRules is the pure, total function at the core of the engine. It
// takes no I/O, no clock, no randomness: the same Snapshot always produces
// the same RuleResult (§4.1, testable property 6).
//
// Rules fire in strict priority order and the first firing rule wins
// (testable property 7): daily drawdown, then total drawdown, then profit
// target. A non-ACTIVE snapshot never fires any rule.
func EvaluateRules(s Snapshot) RuleResult {
	if s.Status != StatusActive {
		return RuleResult{NewStatus: s.Status}
	}

	if res, fired := evaluateDailyDrawdown(s); fired {
		return res
	}
	if res, fired := evaluateTotalDrawdown(s); fired {
		return res
	}
	if res, fired := evaluateProfitTarget(s); fired {
		return res
	}

	return RuleResult{NewStatus: StatusActive}
}

// evaluateDailyDrawdown implements §4.1 rule 1: FAILED/MAX_DAILY_DRAWDOWN
// when (daily_start_equity - current_equity) / daily_start_equity exceeds
// max_daily_drawdown_percent/100. Strict '>' per spec.
func evaluateDailyDrawdown(s Snapshot) (RuleResult, bool) {
	if s.DailyStartEquity.Sign() <= 0 {
		return RuleResult{}, false
	}

	loss := s.DailyStartEquity.Sub(s.CurrentEquity)
	if loss.Sign() <= 0 {
		return RuleResult{}, false
	}

	drawdownPercent := loss.Div(s.DailyStartEquity)
	limit := s.MaxDailyDrawdownPercent.Div(hundred)

	if drawdownPercent.GreaterThan(limit) {
		reason := FailureMaxDailyDrawdown
		return RuleResult{NewStatus: StatusFailed, Reason: &reason}, true
	}
	return RuleResult{}, false
}

// evaluateTotalDrawdown implements §4.1 rule 2: FAILED/MAX_TOTAL_DRAWDOWN
// when (max_equity_ever - current_equity) / max_equity_ever exceeds
// max_total_drawdown_percent/100. Strict '>' per spec.
func evaluateTotalDrawdown(s Snapshot) (RuleResult, bool) {
	if s.MaxEquityEver.Sign() <= 0 {
		return RuleResult{}, false
	}

	loss := s.MaxEquityEver.Sub(s.CurrentEquity)
	if loss.Sign() <= 0 {
		return RuleResult{}, false
	}

	drawdownPercent := loss.Div(s.MaxEquityEver)
	limit := s.MaxTotalDrawdownPercent.Div(hundred)

	if drawdownPercent.GreaterThan(limit) {
		reason := FailureMaxTotalDrawdown
		return RuleResult{NewStatus: StatusFailed, Reason: &reason}, true
	}
	return RuleResult{}, false
}

// evaluateProfitTarget implements §4.1 rule 3: FUNDED (with a nil Reason) when
// (current_equity - initial_balance) / initial_balance reaches
// profit_target_percent/100. Non-strict '>=' per spec.
func evaluateProfitTarget(s Snapshot) (RuleResult, bool) {
	if s.InitialBalance.Sign() <= 0 {
		return RuleResult{}, false
	}

	profit := s.CurrentEquity.Sub(s.InitialBalance)
	if profit.Sign() <= 0 {
		return RuleResult{}, false
	}

	profitPercent := profit.Div(s.InitialBalance)
	target := s.ProfitTargetPercent.Div(hundred)

	if profitPercent.GreaterThanOrEqual(target) {
		return RuleResult{NewStatus: StatusFunded}, true
	}
	return RuleResult{}, false
}

// DailyDrawdownPercentage is the monitoring accessor carried over from the
// original implementation's rules.calculate_daily_drawdown_percentage:
// exposed so a caller outside the engine can reproduce the same figure the
// engine used to decide whether to fire an alert or rule (§4.3.1 step 5).
func DailyDrawdownPercentage(currentEquity, dailyStartEquity decimal.Decimal) decimal.Decimal {
	if dailyStartEquity.Sign() <= 0 {
		return decimal.Zero
	}
	loss := dailyStartEquity.Sub(currentEquity)
	if loss.Sign() <= 0 {
		return decimal.Zero
	}
	return loss.Div(dailyStartEquity)
}

// TotalDrawdownPercentage mirrors calculate_total_drawdown_percentage.
func TotalDrawdownPercentage(currentEquity, maxEquityEver decimal.Decimal) decimal.Decimal {
	if maxEquityEver.Sign() <= 0 {
		return decimal.Zero
	}
	loss := maxEquityEver.Sub(currentEquity)
	if loss.Sign() <= 0 {
		return decimal.Zero
	}
	return loss.Div(maxEquityEver)
}

// ProfitPercentage mirrors calculate_profit_percentage.
func ProfitPercentage(currentEquity, initialBalance decimal.Decimal) decimal.Decimal {
	if initialBalance.Sign() <= 0 {
		return decimal.Zero
	}
	profit := currentEquity.Sub(initialBalance)
	if profit.Sign() <= 0 {
		return decimal.Zero
	}
	return profit.Div(initialBalance)
}
