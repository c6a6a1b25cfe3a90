package risk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/challengeeval/internal/challenge"
	"github.com/abdoElHodaky/challengeeval/internal/metrics"
)

// Publisher is the subset of the event bus the pipeline needs to raise
// advisory RiskAlert events (§4.5.4). It is the same shape as the
// challenge engine's Publisher so both paths can share one bus instance.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// PipelineConfig holds the cold-path cadence and concurrency knobs
// (§6.4): how often a cycle runs, how many challenges are assessed
// concurrently, the ceiling on how long a single cycle may run before it
// is abandoned, the bounded maximum total runtime after which Run exits
// for supervisor restart (§5), the assessment_version stamped on every
// persisted assessment, and the RiskAlert score boundaries.
type PipelineConfig struct {
	Interval       time.Duration
	WorkerPoolSize int
	CycleBudget    time.Duration
	MaxRuntime     time.Duration

	AssessmentVersion string

	AlertWarningThreshold  decimal.Decimal
	AlertCriticalThreshold decimal.Decimal
}

// DefaultPipelineConfig mirrors the original worker's defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Interval:               5 * time.Minute,
		WorkerPoolSize:         8,
		CycleBudget:            2 * time.Minute,
		MaxRuntime:             24 * time.Hour,
		AssessmentVersion:      "1.0.0",
		AlertWarningThreshold:  AlertWarningThreshold,
		AlertCriticalThreshold: AlertCriticalThreshold,
	}
}

// Pipeline runs the cold-path Adaptive Risk Scoring loop: on each tick it
// assesses every active challenge in parallel (bounded by a worker pool,
// §5 "parallel across challenges"), persists the resulting assessments,
// and raises advisory alerts for scores crossing a threshold.
type Pipeline struct {
	cfg     PipelineConfig
	reader  TradeReader
	store   AssessmentStore
	bus     Publisher
	log     *zap.Logger
	metrics *metrics.Registry

	mu           sync.RWMutex
	lastCycleAt  time.Time
}

// NewPipeline builds a Pipeline. bus may be nil, in which case alerts are
// computed but never published (useful for dry-run assessments).
// metricsReg may be nil, in which case the pipeline runs uninstrumented.
func NewPipeline(cfg PipelineConfig, reader TradeReader, store AssessmentStore, bus Publisher, log *zap.Logger, metricsReg *metrics.Registry) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = DefaultPipelineConfig().WorkerPoolSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPipelineConfig().Interval
	}
	if cfg.CycleBudget <= 0 {
		cfg.CycleBudget = DefaultPipelineConfig().CycleBudget
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = DefaultPipelineConfig().MaxRuntime
	}
	if cfg.AssessmentVersion == "" {
		cfg.AssessmentVersion = DefaultPipelineConfig().AssessmentVersion
	}
	if cfg.AlertWarningThreshold.IsZero() {
		cfg.AlertWarningThreshold = DefaultPipelineConfig().AlertWarningThreshold
	}
	if cfg.AlertCriticalThreshold.IsZero() {
		cfg.AlertCriticalThreshold = DefaultPipelineConfig().AlertCriticalThreshold
	}
	SetAlertThresholds(cfg.AlertWarningThreshold, cfg.AlertCriticalThreshold)
	return &Pipeline{cfg: cfg, reader: reader, store: store, bus: bus, log: log, metrics: metricsReg}
}

// LastCycleAt reports when the most recent cycle started; it is set at the
// start of every cycle, whether or not that cycle then succeeds. A
// caller (e.g. a liveness probe) can compare this against time.Now() to
// detect a stalled worker, in place of a filesystem heartbeat file.
func (p *Pipeline) LastCycleAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCycleAt
}

// Run blocks, ticking every cfg.Interval and running one cycle per tick,
// until ctx is cancelled or cfg.MaxRuntime elapses (§5: a bounded maximum
// cold-path worker runtime, after which the process exits cleanly for its
// supervisor to restart it, rather than running forever). Each cycle runs
// under a context that expires after cfg.CycleBudget. Run waits for every
// submitted assessment of a cycle to return before it handles the next
// tick; once the budget has expired, reads and saves made with the
// cycle's context fail, and those assessments are logged and dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	deadline := time.NewTimer(p.cfg.MaxRuntime)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			p.log.Info("risk pipeline reached max runtime, exiting for restart",
				zap.Duration("max_runtime", p.cfg.MaxRuntime))
			return ErrMaxRuntimeExceeded
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, p.cfg.CycleBudget)
			p.runCycle(cycleCtx)
			cancel()
		}
	}
}

// ErrMaxRuntimeExceeded is returned by Run when cfg.MaxRuntime elapses; it
// is not a failure, just the signal for the caller's supervisor to restart
// the worker.
var ErrMaxRuntimeExceeded = errors.New("risk pipeline: max runtime exceeded")

func (p *Pipeline) runCycle(ctx context.Context) {
	p.mu.Lock()
	p.lastCycleAt = time.Now().UTC()
	p.mu.Unlock()

	challenges, err := p.reader.ActiveChallenges(ctx)
	if err != nil {
		p.log.Error("failed to list active challenges", zap.Error(err))
		return
	}
	if len(challenges) == 0 {
		return
	}

	pool, err := ants.NewPool(p.cfg.WorkerPoolSize, ants.WithPanicHandler(func(r any) {
		p.log.Error("risk assessment task panicked", zap.Any("recovered", r))
	}))
	if err != nil {
		p.log.Error("failed to create worker pool", zap.Error(err))
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	now := time.Now().UTC()

	for _, ref := range challenges {
		ref := ref
		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.assessOne(ctx, ref, now)
		}
		if err := pool.Submit(task); err != nil {
			p.log.Error("failed to submit assessment task", zap.String("challenge_id", ref.ChallengeID), zap.Error(err))
			wg.Done()
		}
	}

	wg.Wait()
}

func (p *Pipeline) assessOne(ctx context.Context, ref ChallengeRef, now time.Time) {
	trades, err := p.reader.TradesForChallenge(ctx, ref.ChallengeID)
	if err != nil {
		p.log.Error("failed to load trades", zap.String("challenge_id", ref.ChallengeID), zap.Error(err))
		return
	}

	assessment, err := AssessChallengeRisk(ref.ChallengeID, ref.TraderID, trades, ref.StartedAt, now, p.cfg.AssessmentVersion)
	if err != nil {
		p.log.Error("risk assessment failed", zap.String("challenge_id", ref.ChallengeID), zap.Error(err))
		return
	}

	if err := p.store.SaveAssessment(ctx, assessment); err != nil {
		p.log.Error("failed to persist assessment", zap.String("challenge_id", ref.ChallengeID), zap.Error(err))
		return
	}

	if p.metrics != nil {
		p.metrics.RiskAssessmentsRun.Inc()
		scoreFloat, _ := assessment.Score.Float64()
		p.metrics.RiskAssessmentScore.Observe(scoreFloat)
	}

	p.emitAlertIfNeeded(ctx, assessment)
}

func (p *Pipeline) emitAlertIfNeeded(ctx context.Context, a Assessment) {
	if p.bus == nil {
		return
	}

	severity, emit := ShouldEmitAlert(a.Score)
	if !emit {
		return
	}

	alertSeverity := challenge.AlertSeverityHigh
	if severity == "CRITICAL" {
		alertSeverity = challenge.AlertSeverityCritical
	}

	p.bus.Publish(ctx, challenge.EventRiskAlert, challenge.RiskAlert{
		ChallengeID: a.ChallengeID,
		AlertType:   "ADAPTIVE_RISK_SCORE",
		Severity:    alertSeverity,
		Title:       "Adaptive Risk Score " + string(a.Level),
		Message:     "assessment " + a.ID + " scored " + scoreString(a.Score),
		Context: map[string]string{
			"assessment_id": a.ID,
			"score":         scoreString(a.Score),
			"level":         string(a.Level),
		},
		RaisedAt: a.AssessedAt,
	})
}

func scoreString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
