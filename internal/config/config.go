// Package config loads the deployment knobs the evaluation core and risk
// pipeline need at startup (§6.4). It follows the teacher's viper-based
// loading style, but returns a freshly constructed Config from Load
// instead of a package-level singleton: the redesign notes call for
// explicit dependencies constructed once at startup, not global state.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
)

// Config holds every knob the core and the risk pipeline read at
// startup. Generic platform/request configuration (HTTP, auth, transport)
// is explicitly out of scope (§1) and owned by the surrounding system;
// this type only covers the evaluation core's own contract.
type Config struct {
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Worker struct {
		IntervalSeconds    int `mapstructure:"interval_seconds"`
		WorkerPoolSize     int `mapstructure:"worker_pool_size"`
		CycleBudgetSeconds int `mapstructure:"cycle_budget_seconds"`
		MaxRuntimeHours    int `mapstructure:"max_runtime_hours"`
	} `mapstructure:"worker"`

	Risk struct {
		AssessmentVersion      string `mapstructure:"assessment_version"`
		AlertWarningThreshold  int    `mapstructure:"alert_warning_threshold"`
		AlertCriticalThreshold int    `mapstructure:"alert_critical_threshold"`
	} `mapstructure:"risk"`

	EventBus struct {
		WebSocketSinkEnabled bool `mapstructure:"websocket_sink_enabled"`
		SinkQueueCapacity    int  `mapstructure:"sink_queue_capacity"`
	} `mapstructure:"event_bus"`

	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.interval_seconds", 300)
	v.SetDefault("worker.worker_pool_size", 8)
	v.SetDefault("worker.cycle_budget_seconds", 120)
	v.SetDefault("worker.max_runtime_hours", 24)
	v.SetDefault("risk.assessment_version", "1.0.0")
	v.SetDefault("risk.alert_warning_threshold", 60)
	v.SetDefault("risk.alert_critical_threshold", 80)
	v.SetDefault("event_bus.websocket_sink_enabled", false)
	v.SetDefault("event_bus.sink_queue_capacity", 256)
	v.SetDefault("monitoring.prometheus_port", 9090)
	v.SetDefault("monitoring.log_level", "info")
}

// Load reads configuration from configPath (directory containing
// config.yaml), falling back to defaults and environment variables
// prefixed CHALLENGEEVAL_ (dots in a key become underscores, e.g.
// CHALLENGEEVAL_WORKER_INTERVAL_SECONDS). It validates risk.assessment_version as a
// semver string, since the risk pipeline's output schema is versioned by
// it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("CHALLENGEEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("database.dsn"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := semver.NewVersion(cfg.Risk.AssessmentVersion); err != nil {
		return nil, fmt.Errorf("risk.assessment_version %q is not valid semver: %w", cfg.Risk.AssessmentVersion, err)
	}

	return cfg, nil
}

// WorkerInterval returns the configured cold-path tick interval.
func (c *Config) WorkerInterval() time.Duration {
	return time.Duration(c.Worker.IntervalSeconds) * time.Second
}

// CycleBudget returns the configured per-cycle time budget.
func (c *Config) CycleBudget() time.Duration {
	return time.Duration(c.Worker.CycleBudgetSeconds) * time.Second
}

// MaxRuntime returns the configured bounded maximum cold-path worker
// runtime (§5), after which the worker process exits for supervisor
// restart rather than running indefinitely.
func (c *Config) MaxRuntime() time.Duration {
	return time.Duration(c.Worker.MaxRuntimeHours) * time.Hour
}
