package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOLIDX_* environment variable overrides,
// and returns the final Config. Pass an empty path to run on defaults
// plus environment only. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOLIDX_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject endpoints and credentials at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Source.WSEndpoint, "SOLIDX_SOURCE_WS_ENDPOINT")
	setStr(&cfg.Source.AuthToken, "SOLIDX_SOURCE_AUTH_TOKEN")
	setStr(&cfg.Source.ReplayFile, "SOLIDX_SOURCE_REPLAY_FILE")

	setStr(&cfg.Postgres.DSN, "SOLIDX_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "SOLIDX_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Clickhouse.DSN, "SOLIDX_CLICKHOUSE_DSN")

	setInt(&cfg.Pipeline.QueueCapacity, "SOLIDX_PIPELINE_QUEUE_CAPACITY")
	setInt(&cfg.Pipeline.BatchSize, "SOLIDX_PIPELINE_BATCH_SIZE")
	setInt(&cfg.Pipeline.FlushIntervalMs, "SOLIDX_PIPELINE_FLUSH_INTERVAL_MS")
	setInt(&cfg.Pipeline.RetryDelayMs, "SOLIDX_PIPELINE_RETRY_DELAY_MS")

	setStr(&cfg.Metrics.Addr, "SOLIDX_METRICS_ADDR")
}

// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
