// Package config defines the indexer configuration and validation
// helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by SOLIDX_* environment
// variables.
type Config struct {
	Source     SourceConfig     `toml:"source"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Clickhouse ClickhouseConfig `toml:"clickhouse"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// SourceConfig selects the transaction source. ReplayFile takes
// precedence over the WebSocket endpoint when both are set.
type SourceConfig struct {
	WSEndpoint string `toml:"ws_endpoint"`
	AuthToken  string `toml:"auth_token"`
	ReplayFile string `toml:"replay_file"`
}

// PostgresConfig holds the primary event store parameters. An empty DSN
// disables Postgres persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ClickhouseConfig holds the optional analytics mirror parameters. An
// empty DSN disables the mirror.
type ClickhouseConfig struct {
	DSN string `toml:"dsn"`
}

// PipelineConfig holds queue and batching parameters.
type PipelineConfig struct {
	QueueCapacity   int `toml:"queue_capacity"`
	BatchSize       int `toml:"batch_size"`
	FlushIntervalMs int `toml:"flush_interval_ms"`
	RetryDelayMs    int `toml:"retry_delay_ms"`
}

// FlushInterval returns the flush interval as a duration.
func (p PipelineConfig) FlushInterval() time.Duration {
	return time.Duration(p.FlushIntervalMs) * time.Millisecond
}

// RetryDelay returns the source retry delay as a duration.
func (p PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// MetricsConfig holds the Prometheus listener parameters.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			WSEndpoint: "ws://localhost:8900",
		},
		Postgres: PostgresConfig{
			DSN:           "",
			RunMigrations: true,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:   1000,
			BatchSize:       50,
			FlushIntervalMs: 500,
			RetryDelayMs:    100,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks the configuration for internal consistency. It
// collects all problems instead of stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Source.WSEndpoint == "" && c.Source.ReplayFile == "" {
		errs = append(errs, "source: either ws_endpoint or replay_file must be set")
	}

	if c.Pipeline.QueueCapacity <= 0 {
		errs = append(errs, "pipeline: queue_capacity must be positive")
	}
	if c.Pipeline.BatchSize <= 0 {
		errs = append(errs, "pipeline: batch_size must be positive")
	}
	if c.Pipeline.BatchSize > c.Pipeline.QueueCapacity {
		errs = append(errs, "pipeline: batch_size must not exceed queue_capacity")
	}
	if c.Pipeline.FlushIntervalMs <= 0 {
		errs = append(errs, "pipeline: flush_interval_ms must be positive")
	}
	if c.Pipeline.RetryDelayMs <= 0 {
		errs = append(errs, "pipeline: retry_delay_ms must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
