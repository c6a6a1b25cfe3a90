// Package risk implements the Adaptive Risk Scoring pipeline (C5): a
// cold-path, explainable classifier over historical trade data, entirely
// separate from the hot-path Challenge Evaluation Core.
package risk

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/abdoElHodaky/challengeeval/internal/money"
)

// referenceBalance anchors the drawdown-normalization features to the
// same assumed starting equity the original scorer used, independent of
// any specific challenge's configured InitialBalance. It keeps the
// cold-path score comparable across challenges with different balances.
var referenceBalance = decimal.NewFromInt(10000)

// revengeSizeMultiplier is how much larger, by notional, a trade must be
// than the losing trade before it to count as a revenge-trading instance.
var revengeSizeMultiplier = decimal.NewFromFloat(1.2)

// Trade is the historical record the feature pipeline consumes. It is
// deliberately narrower than challenge.TradeExecuted: the cold path never
// needs the challenge's live aggregate state, only the trade tape.
type Trade struct {
	TradeID     string
	Symbol      string
	Side        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	RealizedPnL decimal.Decimal
	ExecutedAt  time.Time
}

// IsProfit reports whether the trade closed with positive realized PnL.
func (t Trade) IsProfit() bool { return t.RealizedPnL.IsPositive() }

// IsLoss reports whether the trade closed with negative realized PnL.
func (t Trade) IsLoss() bool { return t.RealizedPnL.IsNegative() }

// notional returns quantity * price as the trade's position size.
func (t Trade) notional() decimal.Decimal { return t.Quantity.Mul(t.Price) }

// FeatureSet is the complete, explainable feature vector computed from a
// trader's history (§4.5.1): eleven features spanning performance, risk,
// and behavior, plus the metadata needed to reproduce the computation.
type FeatureSet struct {
	// Performance.
	AvgTradePnL  decimal.Decimal
	PnLVolatility decimal.Decimal
	WinRate      decimal.Decimal
	ProfitFactor decimal.Decimal

	// Risk.
	MaxIntradayDrawdown decimal.Decimal
	DrawdownSpeed       decimal.Decimal
	LossStreak          int

	// Behavior.
	TradesPerHour       decimal.Decimal
	OvertradingScore    decimal.Decimal
	RevengeTradingScore decimal.Decimal

	// Metadata.
	TotalTrades         int
	AnalysisPeriodHours decimal.Decimal
	ComputedAt          time.Time
}

// ComputeFeatures extracts the full feature vector from trades (assumed
// to belong to one challenge) relative to when the challenge started.
// now is injected so the computation stays deterministic and testable;
// callers pass time.Now().UTC() in production.
func ComputeFeatures(trades []Trade, challengeStartedAt, now time.Time) FeatureSet {
	if len(trades) == 0 {
		return defaultFeatures(now)
	}

	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt) })

	period := analysisPeriodHours(challengeStartedAt, sorted, now)

	fs := FeatureSet{
		TotalTrades:         len(sorted),
		AnalysisPeriodHours: period,
		ComputedAt:          now,
	}

	computePerformanceFeatures(sorted, &fs)
	computeRiskFeatures(sorted, &fs)
	computeBehavioralFeatures(sorted, period, &fs)

	return fs
}

func defaultFeatures(now time.Time) FeatureSet {
	return FeatureSet{
		ProfitFactor:        decimal.NewFromInt(1),
		AnalysisPeriodHours: decimal.NewFromInt(1),
		ComputedAt:          now,
	}
}

func analysisPeriodHours(challengeStartedAt time.Time, sorted []Trade, now time.Time) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.NewFromInt(1)
	}

	start := challengeStartedAt
	if sorted[0].ExecutedAt.Before(start) {
		start = sorted[0].ExecutedAt
	}

	end := sorted[len(sorted)-1].ExecutedAt
	if now.After(end) {
		end = now
	}

	hours := end.Sub(start).Hours()
	if hours < 1 {
		hours = 1
	}
	return money.FromFloat(hours)
}

func computePerformanceFeatures(trades []Trade, fs *FeatureSet) {
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i], _ = t.RealizedPnL.Float64()
	}

	mean := stat.Mean(pnls, nil)
	fs.AvgTradePnL = money.FromFloat(mean)

	if len(pnls) > 1 {
		fs.PnLVolatility = money.FromFloat(stat.PopStdDev(pnls, nil))
	} else {
		fs.PnLVolatility = decimal.Zero
	}

	wins := 0
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range trades {
		if t.IsProfit() {
			wins++
			grossProfit = grossProfit.Add(t.RealizedPnL)
		} else if t.IsLoss() {
			grossLoss = grossLoss.Add(t.RealizedPnL.Abs())
		}
	}

	winRate := decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(trades)))).Mul(decimal.NewFromInt(100))
	fs.WinRate = winRate.Round(money.Scale)

	profitFactor := decimal.NewFromInt(1)
	if grossLoss.IsPositive() {
		profitFactor = grossProfit.Div(grossLoss)
	}
	fs.ProfitFactor = profitFactor.Round(money.Scale)
}

func computeRiskFeatures(trades []Trade, fs *FeatureSet) {
	fs.MaxIntradayDrawdown = maxIntradayDrawdown(trades)
	fs.DrawdownSpeed = drawdownSpeed(trades)
	fs.LossStreak = lossStreak(trades)
}

// maxIntradayDrawdown replays trades against an assumed starting equity
// (referenceBalance), grouping by UTC calendar day, and returns the largest
// percentage decline on any single day from that day's first replayed
// equity (after its first trade) to that day's lowest equity. A rise
// above the day's first equity does not raise the reference point.
func maxIntradayDrawdown(trades []Trade) decimal.Decimal {
	type dayTrack struct {
		start decimal.Decimal
		low   decimal.Decimal
		seen  bool
	}
	days := make(map[time.Time]*dayTrack)
	var order []time.Time

	equity := referenceBalance
	for _, t := range trades {
		day := t.ExecutedAt.UTC().Truncate(24 * time.Hour)
		equity = equity.Add(t.RealizedPnL)

		dt, ok := days[day]
		if !ok {
			dt = &dayTrack{start: equity, low: equity}
			days[day] = dt
			order = append(order, day)
		}
		dt.seen = true
		if equity.LessThan(dt.low) {
			dt.low = equity
		}
	}

	maxDrawdown := decimal.Zero
	for _, day := range order {
		dt := days[day]
		if dt.start.IsPositive() {
			drawdownPct := dt.start.Sub(dt.low).Div(dt.start).Mul(decimal.NewFromInt(100))
			if drawdownPct.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdownPct
			}
		}
	}

	return maxDrawdown.Round(money.Scale)
}

// drawdownSpeed is the average losing-trade size as a percentage of the
// reference balance. It is not capped, so losses larger than the
// reference balance give values above 100.
func drawdownSpeed(trades []Trade) decimal.Decimal {
	losses := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.IsLoss() {
			f, _ := t.RealizedPnL.Float64()
			losses = append(losses, f)
		}
	}
	if len(losses) == 0 {
		return decimal.Zero
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss < 0 {
		avgLoss = -avgLoss
	}

	refFloat, _ := referenceBalance.Float64()
	speed := (avgLoss / refFloat) * 100
	return money.FromFloat(speed)
}

// lossStreak counts consecutive losing trades ending at the most recent
// trade; a single profitable or breakeven trade resets it to zero.
func lossStreak(trades []Trade) int {
	streak := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].IsLoss() {
			streak++
		} else {
			break
		}
	}
	return streak
}

func computeBehavioralFeatures(trades []Trade, period decimal.Decimal, fs *FeatureSet) {
	periodFloat, _ := period.Float64()
	tph := decimal.NewFromFloat(float64(len(trades)) / periodFloat).Round(money.Scale)
	fs.TradesPerHour = tph

	fs.OvertradingScore = overtradingScore(trades, tph)
	fs.RevengeTradingScore = revengeTradingScore(trades)
}

// overtradingScore penalizes high trading frequency combined with a low
// win rate: frequency_penalty (capped at 1.0 beyond 10 trades/hour)
// multiplied by the trader's loss rate, scaled to 0-100.
func overtradingScore(trades []Trade, tph decimal.Decimal) decimal.Decimal {
	if len(trades) == 0 {
		return decimal.Zero
	}

	wins := 0
	for _, t := range trades {
		if t.IsProfit() {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(trades))

	tphFloat, _ := tph.Float64()
	frequencyPenalty := tphFloat / 10
	if frequencyPenalty > 1.0 {
		frequencyPenalty = 1.0
	}

	score := frequencyPenalty * (1 - winRate) * 100
	return money.FromFloat(score)
}

// revengeTradingScore measures how often a losing trade is followed by a
// meaningfully larger position, a classic emotional-trading signal. It
// requires at least three trades to produce a non-zero result.
func revengeTradingScore(trades []Trade) decimal.Decimal {
	if len(trades) < 3 {
		return decimal.Zero
	}

	revengeInstances := 0
	totalSequences := 0

	for i := 0; i < len(trades)-1; i++ {
		if !trades[i].IsLoss() {
			continue
		}
		totalSequences++

		currentSize := trades[i].notional()
		nextSize := trades[i+1].notional()

		if nextSize.GreaterThan(currentSize.Mul(revengeSizeMultiplier)) {
			revengeInstances++
		}
	}

	if totalSequences == 0 {
		return decimal.Zero
	}

	rate := decimal.NewFromInt(int64(revengeInstances)).Div(decimal.NewFromInt(int64(totalSequences)))
	return rate.Mul(decimal.NewFromInt(100)).Round(money.Scale)
}
