// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the controller and the worker.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	HTTPPort    int    `mapstructure:"http_port"`
	LogLevel    string `mapstructure:"log_level"`

	// External solver service
	SolverURL     string        `mapstructure:"solver_url"`
	SolverTimeout time.Duration `mapstructure:"solver_timeout"`

	// PublicURL is where this service is reachable. Run responses advertise
	// {PublicURL}/api/v1/solver-runs/{id}/ingest-result.
	PublicURL string `mapstructure:"public_url"`

	// InternalSecret guards the ingestion endpoint when non-empty.
	InternalSecret string `mapstructure:"internal_secret"`

	// Run orchestration
	RunFailureMarkers    []string      `mapstructure:"run_failure_markers"`
	RunMaxAttempts       int           `mapstructure:"run_max_attempts"`
	RunVisibilityTimeout time.Duration `mapstructure:"run_visibility_timeout"`
	RunTimeout           time.Duration `mapstructure:"run_timeout"`
	RunRateLimit         float64       `mapstructure:"run_rate_limit"`
	RunRateBurst         int           `mapstructure:"run_rate_burst"`

	// Worker-specific configuration
	WorkerID                  string        `mapstructure:"worker_id"`
	WorkerConcurrency         int           `mapstructure:"worker_concurrency"`
	WorkerPollInterval        time.Duration `mapstructure:"worker_poll_interval"`
	WorkerMaxBackoff          time.Duration `mapstructure:"worker_max_backoff"`
	WorkerHeartbeatInterval   time.Duration `mapstructure:"worker_heartbeat_interval"`
	WorkerVisibilityExtension time.Duration `mapstructure:"worker_visibility_extension"`
	WorkerMetricsPort         int           `mapstructure:"worker_metrics_port"`

	// Object storage for raw solver responses. Disabled when the endpoint is empty.
	ArchiveEndpoint  string `mapstructure:"archive_endpoint"`
	ArchiveAccessKey string `mapstructure:"archive_access_key"`
	ArchiveSecretKey string `mapstructure:"archive_secret_key"`
	ArchiveBucket    string `mapstructure:"archive_bucket"`
	ArchiveUseSSL    bool   `mapstructure:"archive_use_ssl"`

	// OpenTelemetry collector (gRPC)
	OTELEndpoint string `mapstructure:"otel_endpoint"`
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"database_url":                "DATABASE_URL",
	"http_port":                   "PORT",
	"log_level":                   "LOG_LEVEL",
	"solver_url":                  "SOLVER_URL",
	"solver_timeout":              "SOLVER_TIMEOUT",
	"public_url":                  "PUBLIC_URL",
	"internal_secret":             "INTERNAL_SECRET",
	"run_failure_markers":         "RUN_FAILURE_MARKERS",
	"run_max_attempts":            "RUN_MAX_ATTEMPTS",
	"run_visibility_timeout":      "RUN_VISIBILITY_TIMEOUT",
	"run_timeout":                 "RUN_TIMEOUT",
	"run_rate_limit":              "RUN_RATE_LIMIT",
	"run_rate_burst":              "RUN_RATE_BURST",
	"worker_id":                   "WORKER_ID",
	"worker_concurrency":          "WORKER_CONCURRENCY",
	"worker_poll_interval":        "WORKER_POLL_INTERVAL",
	"worker_max_backoff":          "WORKER_MAX_BACKOFF",
	"worker_heartbeat_interval":   "WORKER_HEARTBEAT_INTERVAL",
	"worker_visibility_extension": "WORKER_VISIBILITY_EXTENSION",
	"worker_metrics_port":         "WORKER_METRICS_PORT",
	"archive_endpoint":            "ARCHIVE_ENDPOINT",
	"archive_access_key":          "ARCHIVE_ACCESS_KEY",
	"archive_secret_key":          "ARCHIVE_SECRET_KEY",
	"archive_bucket":              "ARCHIVE_BUCKET",
	"archive_use_ssl":             "ARCHIVE_USE_SSL",
	"otel_endpoint":               "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("solver_url", "http://127.0.0.1:8000")
	v.SetDefault("solver_timeout", 120*time.Second)
	v.SetDefault("public_url", "http://127.0.0.1:8080")
	v.SetDefault("run_failure_markers", []string{"fail"})
	v.SetDefault("run_max_attempts", 5)
	v.SetDefault("run_visibility_timeout", 5*time.Minute)
	v.SetDefault("run_timeout", 10*time.Minute)
	v.SetDefault("run_rate_limit", 0.0)
	v.SetDefault("run_rate_burst", 5)
	v.SetDefault("worker_concurrency", 1)
	v.SetDefault("worker_poll_interval", 1*time.Second)
	v.SetDefault("worker_max_backoff", 30*time.Second)
	v.SetDefault("worker_heartbeat_interval", 2*time.Minute)
	v.SetDefault("worker_visibility_extension", 5*time.Minute)
	v.SetDefault("worker_metrics_port", 6162)
	v.SetDefault("archive_bucket", "shiftplane-solver-runs")
	v.SetDefault("otel_endpoint", "localhost:4317")
}

// Load reads configuration from path (if non-empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.RunFailureMarkers = splitMarkers(cfg.RunFailureMarkers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitMarkers accepts both YAML lists and comma separated env values.
func splitMarkers(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required (env: DATABASE_URL)"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid http_port: %d", c.HTTPPort))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.SolverURL == "" {
		errs = append(errs, errors.New("solver_url is required (env: SOLVER_URL)"))
	}
	if c.RunMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("run_max_attempts must be at least 1, got %d", c.RunMaxAttempts))
	}
	if c.RunRateLimit < 0 {
		errs = append(errs, fmt.Errorf("run_rate_limit must not be negative, got %v", c.RunRateLimit))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("worker_concurrency must be at least 1, got %d", c.WorkerConcurrency))
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"solver_timeout", c.SolverTimeout},
		{"run_visibility_timeout", c.RunVisibilityTimeout},
		{"run_timeout", c.RunTimeout},
		{"worker_poll_interval", c.WorkerPollInterval},
		{"worker_max_backoff", c.WorkerMaxBackoff},
		{"worker_heartbeat_interval", c.WorkerHeartbeatInterval},
		{"worker_visibility_extension", c.WorkerVisibilityExtension},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.key, d.d))
		}
	}

	// A run solved by the API is not heartbeated; its queue item must stay
	// hidden from workers for the whole solver call.
	if c.SolverTimeout > 0 && c.RunVisibilityTimeout > 0 && c.RunVisibilityTimeout <= c.SolverTimeout {
		errs = append(errs, fmt.Errorf("run_visibility_timeout (%v) must exceed solver_timeout (%v)",
			c.RunVisibilityTimeout, c.SolverTimeout))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// IngestURL is the callback address of a run.
func (c *Config) IngestURL(runID int64) string {
	return fmt.Sprintf("%s/api/v1/solver-runs/%d/ingest-result", strings.TrimRight(c.PublicURL, "/"), runID)
}
