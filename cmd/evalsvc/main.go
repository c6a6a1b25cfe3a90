// Command evalsvc wires the hot-path Challenge Evaluation Core (engine,
// storage, event bus) and blocks, ready to be driven by an embedding
// system. HTTP/gRPC transport and authentication are explicitly out of
// scope (§1); this process exposes the engine as a library surface for a
// co-located caller, not a network API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/challengeeval/internal/challenge"
	"github.com/abdoElHodaky/challengeeval/internal/challenge/gormstore"
	"github.com/abdoElHodaky/challengeeval/internal/config"
	"github.com/abdoElHodaky/challengeeval/internal/eventbus"
	"github.com/abdoElHodaky/challengeeval/internal/eventbus/wsbridge"
	"github.com/abdoElHodaky/challengeeval/internal/metrics"
)

func main() {
	app := fx.New(
		fx.Provide(
			newLogger,
			newConfig,
			newDB,
			newBus,
			newStorage,
			newMetrics,
			newEngine,
		),
		fx.Invoke(registerEngineHooks, registerMetricsServer),
		fx.NopLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "evalsvc: startup failed:", err)
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

func newStorage(db *gorm.DB) challenge.Storage {
	return gormstore.New(db)
}

func newMetrics() *metrics.Registry {
	reg := metrics.NewRegistry()
	reg.MustRegister(prometheus.DefaultRegisterer)
	return reg
}

func newEngine(storage challenge.Storage, bus *eventbus.Bus, log *zap.Logger, metricsReg *metrics.Registry) *challenge.Engine {
	return challenge.NewEngine(storage, bus, log, metricsReg)
}

func registerEngineHooks(lc fx.Lifecycle, engine *challenge.Engine, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("challenge evaluation engine ready")
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("challenge evaluation engine stopping")
			return nil
		},
	})
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
