package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/challengeeval/internal/money"
)

// componentWeights are the five sub-score weights, summing to 1.0
// (§4.5.2). They are the explainability contract: every point of the
// final score traces back to one of these five named components.
var componentWeights = map[string]decimal.Decimal{
	"volatility":  decimal.NewFromFloat(0.30),
	"drawdown":    decimal.NewFromFloat(0.25),
	"behavior":    decimal.NewFromFloat(0.20),
	"loss_streak": decimal.NewFromFloat(0.15),
	"overtrading": decimal.NewFromFloat(0.10),
}

// ComponentScore is one weighted contribution to the final risk score,
// kept alongside its raw (pre-weight) value and a short explanation
// string for audit (§4.5.2).
type ComponentScore struct {
	Name         string
	RawScore     decimal.Decimal
	Weight       decimal.Decimal
	Contribution decimal.Decimal
	Explanation  string
}

// ScoreBreakdown is the full explainable decomposition of a Score.
type ScoreBreakdown struct {
	Components []ComponentScore
	Total      decimal.Decimal
}

// FeatureImportance reports the scorer's fixed component weights, carried
// over from the original scorer's WEIGHTS table so a caller can display
// or audit the model's sensitivity without recomputing a score.
func FeatureImportance() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(componentWeights))
	for k, v := range componentWeights {
		out[k] = v
	}
	return out
}

// Score computes the weighted 0-100 risk score for a FeatureSet (§4.5.2).
// The five sub-scores are each computed on their own 0-100 scale, then
// combined by componentWeights; the total is clamped to [0, 100].
func Score(fs FeatureSet) ScoreBreakdown {
	volatility, volatilityWhy := volatilityScore(fs)
	drawdown, drawdownWhy := drawdownScore(fs)
	behavior, behaviorWhy := behaviorScore(fs)
	lossStreak, lossStreakWhy := lossStreakScore(fs)
	overtrading, overtradingWhy := fs.OvertradingScore, overtradingExplanation(fs)

	components := []ComponentScore{
		weighted("volatility", volatility, volatilityWhy),
		weighted("drawdown", drawdown, drawdownWhy),
		weighted("behavior", behavior, behaviorWhy),
		weighted("loss_streak", lossStreak, lossStreakWhy),
		weighted("overtrading", overtrading, overtradingWhy),
	}

	total := money.Zero
	for _, c := range components {
		total = total.Add(c.Contribution)
	}
	total = money.RoundHalfUp(clamp(total, decimal.Zero, hundredD))

	return ScoreBreakdown{Components: components, Total: total}
}

func weighted(name string, raw decimal.Decimal, explanation string) ComponentScore {
	w := componentWeights[name]
	return ComponentScore{
		Name:         name,
		RawScore:     raw,
		Weight:       w,
		Contribution: raw.Mul(w),
		Explanation:  explanation,
	}
}

func clamp(d, min, max decimal.Decimal) decimal.Decimal {
	if d.LessThan(min) {
		return min
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}

var (
	volatilityCapRatio = decimal.NewFromFloat(5.0)
	hundredD           = decimal.NewFromInt(100)
)

// volatilityScore normalizes PnL standard deviation by the average trade
// size: a trader with wildly inconsistent returns scores near 100; a
// trader with fewer than two trades gets a neutral 50.
func volatilityScore(fs FeatureSet) (decimal.Decimal, string) {
	if fs.TotalTrades < 2 {
		return decimal.NewFromInt(50), "fewer than two trades, neutral volatility assumed"
	}

	var ratio decimal.Decimal
	if fs.AvgTradePnL.IsZero() {
		ratio = volatilityCapRatio
	} else {
		ratio = fs.PnLVolatility.Div(fs.AvgTradePnL.Abs())
	}

	if ratio.GreaterThan(volatilityCapRatio) {
		ratio = volatilityCapRatio
	}

	score := clamp(ratio.Div(volatilityCapRatio).Mul(hundredD), decimal.Zero, hundredD)
	explanation := fmt.Sprintf("PnL stddev/avg ratio %s against a %s cap", ratio.StringFixed(2), volatilityCapRatio.String())
	return score, explanation
}

// drawdownScore combines maximum intraday drawdown (70% weight) and
// drawdown speed (30% weight), each capped before combination.
func drawdownScore(fs FeatureSet) (decimal.Decimal, string) {
	maxDD := clamp(fs.MaxIntradayDrawdown.Mul(decimal.NewFromInt(2)), decimal.Zero, hundredD)
	speed := clamp(fs.DrawdownSpeed.Mul(decimal.NewFromInt(10)), decimal.Zero, hundredD)

	combined := clamp(maxDD.Mul(decimal.NewFromFloat(0.7)).Add(speed.Mul(decimal.NewFromFloat(0.3))), decimal.Zero, hundredD)
	explanation := fmt.Sprintf("max intraday drawdown %s%%, drawdown speed %s", fs.MaxIntradayDrawdown.StringFixed(2), fs.DrawdownSpeed.StringFixed(2))
	return combined, explanation
}

// behaviorScore penalizes trading frequency far outside the 1-5
// trades-per-hour band considered optimal.
func behaviorScore(fs FeatureSet) (decimal.Decimal, string) {
	tph, _ := fs.TradesPerHour.Float64()

	switch {
	case tph < 1:
		return decimal.NewFromInt(30), fmt.Sprintf("%.2f trades/hour, below the optimal 1-5 band", tph)
	case tph <= 5:
		return decimal.NewFromInt(10), fmt.Sprintf("%.2f trades/hour, within the optimal 1-5 band", tph)
	case tph <= 10:
		return decimal.NewFromInt(40), fmt.Sprintf("%.2f trades/hour, above the optimal 1-5 band", tph)
	default:
		return decimal.NewFromInt(80), fmt.Sprintf("%.2f trades/hour, far above the optimal 1-5 band", tph)
	}
}

// lossStreakScore maps the current consecutive-loss count to an
// escalating 0-100 score; streaks beyond 5 are maximally penalized.
func lossStreakScore(fs FeatureSet) (decimal.Decimal, string) {
	explanation := fmt.Sprintf("%d consecutive losing trades", fs.LossStreak)
	switch {
	case fs.LossStreak == 0:
		return decimal.Zero, explanation
	case fs.LossStreak == 1:
		return decimal.NewFromInt(20), explanation
	case fs.LossStreak == 2:
		return decimal.NewFromInt(40), explanation
	case fs.LossStreak == 3:
		return decimal.NewFromInt(65), explanation
	case fs.LossStreak <= 5:
		return decimal.NewFromInt(80), explanation
	default:
		return decimal.NewFromInt(100), explanation
	}
}

// overtradingExplanation renders the audit text for the overtrading
// component, whose score itself is precomputed in FeatureSet.OvertradingScore.
func overtradingExplanation(fs FeatureSet) string {
	return fmt.Sprintf("%s trades/hour against win rate signal, overtrading score %s", fs.TradesPerHour.StringFixed(2), fs.OvertradingScore.StringFixed(2))
}
