// Command evalworker runs the cold-path Adaptive Risk Scoring pipeline as
// a standalone background process, independent of the hot-path engine
// (§5 "never share state with the hot path except through the database
// and the event bus").
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/challengeeval/internal/config"
	"github.com/abdoElHodaky/challengeeval/internal/eventbus"
	"github.com/abdoElHodaky/challengeeval/internal/eventbus/wsbridge"
	"github.com/abdoElHodaky/challengeeval/internal/metrics"
	"github.com/abdoElHodaky/challengeeval/internal/risk"
	riskstore "github.com/abdoElHodaky/challengeeval/internal/risk/gormstore"
)

func main() {
	app := fx.New(
		fx.Provide(
			newLogger,
			newConfig,
			newDB,
			newBus,
			newMetrics,
			newPipeline,
		),
		fx.Invoke(validateRiskThresholds, registerPipelineHooks, registerMetricsServer),
		fx.NopLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "evalworker: startup failed:", err)
		os.Exit(1)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	_ = app.Stop(stopCtx)
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func newConfig() (*config.Config, error) {
	return config.Load(os.Getenv("CHALLENGEEVAL_CONFIG_DIR"))
}

func newDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
}

func newBus(cfg *config.Config, log *zap.Logger) *eventbus.Bus {
	var sink eventbus.Sink
	if cfg.EventBus.WebSocketSinkEnabled {
		sink = wsbridge.New(cfg.EventBus.SinkQueueCapacity, log)
	}
	return eventbus.New(sink, log)
}

func newMetrics() *metrics.Registry {
	reg := metrics.NewRegistry()
	reg.MustRegister(prometheus.DefaultRegisterer)
	return reg
}

func newPipeline(cfg *config.Config, db *gorm.DB, bus *eventbus.Bus, log *zap.Logger, metricsReg *metrics.Registry) *risk.Pipeline {
	store := riskstore.New(db)
	pcfg := risk.PipelineConfig{
		Interval:               cfg.WorkerInterval(),
		WorkerPoolSize:         cfg.Worker.WorkerPoolSize,
		CycleBudget:            cfg.CycleBudget(),
		MaxRuntime:             cfg.MaxRuntime(),
		AssessmentVersion:      cfg.Risk.AssessmentVersion,
		AlertWarningThreshold:  decimal.NewFromInt(int64(cfg.Risk.AlertWarningThreshold)),
		AlertCriticalThreshold: decimal.NewFromInt(int64(cfg.Risk.AlertCriticalThreshold)),
	}
	return risk.NewPipeline(pcfg, store, store, bus, log, metricsReg)
}

// validateRiskThresholds fails application startup if the classification
// band table does not contiguously cover [0, 100] (§4.5.2 "must be
// validated at startup").
func validateRiskThresholds() error {
	return risk.ValidateThresholds()
}

// registerMetricsServer exposes the Prometheus registry on
// cfg.Monitoring.PrometheusPort for scraping (§6.4).
func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	addr := ":" + strconv.Itoa(cfg.Monitoring.PrometheusPort)
	srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			log.Info("metrics server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func registerPipelineHooks(lc fx.Lifecycle, pipeline *risk.Pipeline, log *zap.Logger) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go func() {
				err := pipeline.Run(runCtx)
				switch {
				case err == nil, err == context.Canceled:
				case errors.Is(err, risk.ErrMaxRuntimeExceeded):
					log.Info("risk pipeline exited at max runtime, awaiting supervisor restart")
				default:
					log.Error("risk pipeline stopped", zap.Error(err))
				}
			}()
			log.Info("risk pipeline started")
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			log.Info("risk pipeline stopped")
			return nil
		},
	})
}
