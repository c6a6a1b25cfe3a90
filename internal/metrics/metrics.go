// Package metrics exposes the Prometheus collectors shared by the
// evaluation core and the risk pipeline. Collectors are constructed once
// and threaded through via constructor injection, not package globals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the counters and histograms both the hot path and the
// cold path record against. A single instance is constructed at startup
// and registered with a prometheus.Registerer by the caller.
type Registry struct {
	TradesProcessed      prometheus.Counter
	TradesRejected       *prometheus.CounterVec
	StatusTransitions    *prometheus.CounterVec
	RiskAlertsRaised     *prometheus.CounterVec
	RiskAssessmentsRun   prometheus.Counter
	RiskAssessmentScore  prometheus.Histogram
	EngineHandleDuration prometheus.Histogram
}

// NewRegistry builds a Registry with all collectors defined but not yet
// registered; callers register it against a prometheus.Registerer of
// their choosing (typically the global DefaultRegisterer, exactly once,
// at process startup).
func NewRegistry() *Registry {
	return &Registry{
		TradesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "challengeeval",
			Name:      "trades_processed_total",
			Help:      "Number of TradeExecuted events successfully handled.",
		}),
		TradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "challengeeval",
			Name:      "trades_rejected_total",
			Help:      "Number of TradeExecuted events rejected, by reason code.",
		}, []string{"code"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "challengeeval",
			Name:      "challenge_status_transitions_total",
			Help:      "Number of challenge status transitions, by new status.",
		}, []string{"new_status"}),
		RiskAlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "challengeeval",
			Name:      "risk_alerts_raised_total",
			Help:      "Number of RiskAlert events raised, by severity.",
		}, []string{"severity"}),
		RiskAssessmentsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "challengeeval",
			Name:      "risk_assessments_run_total",
			Help:      "Number of cold-path risk assessments completed.",
		}),
		RiskAssessmentScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "challengeeval",
			Name:      "risk_assessment_score",
			Help:      "Distribution of computed risk scores (0-100).",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		EngineHandleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "challengeeval",
			Name:      "engine_handle_trade_duration_seconds",
			Help:      "Latency of HandleTradeExecuted, including storage round-trip.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// MustRegister registers every collector in r against reg, panicking on
// a duplicate-registration error (a startup-time programmer error).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.TradesProcessed,
		r.TradesRejected,
		r.StatusTransitions,
		r.RiskAlertsRaised,
		r.RiskAssessmentsRun,
		r.RiskAssessmentScore,
		r.EngineHandleDuration,
	)
}
