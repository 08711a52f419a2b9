package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"solana-defi-indexer/internal/config"
	"solana-defi-indexer/internal/observability"
	"solana-defi-indexer/internal/pipeline"
	"solana-defi-indexer/internal/source"
	"solana-defi-indexer/internal/storage"
	chstore "solana-defi-indexer/internal/storage/clickhouse"
	"solana-defi-indexer/internal/storage/migrations"
	pgstore "solana-defi-indexer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	wsEndpoint := flag.String("ws-endpoint", "", "Transaction stream WebSocket endpoint (overrides config)")
	replayFile := flag.String("replay-file", "", "Replay transactions from a newline-delimited JSON file instead of the stream")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the analytics mirror (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config, empty keeps config value)")

	flag.Parse()

	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over config file and environment.
	if *wsEndpoint != "" {
		cfg.Source.WSEndpoint = *wsEndpoint
	}
	if *replayFile != "" {
		cfg.Source.ReplayFile = *replayFile
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Clickhouse.DSN = *clickhouseDSN
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)

	p := pipeline.New(pipeline.Options{
		Source:        src,
		Repository:    repo,
		QueueCapacity: cfg.Pipeline.QueueCapacity,
		BatchSize:     cfg.Pipeline.BatchSize,
		FlushInterval: cfg.Pipeline.FlushInterval(),
		RetryDelay:    cfg.Pipeline.RetryDelay(),
		Logger:        logger,
		Metrics:       metrics,
	})

	// The pipeline finishing cleanly (replay exhaustion) must still bring
	// the metrics server down; errgroup only cancels on non-nil returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return p.Run(ctx)
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// closeSource is the common surface of the file and WebSocket sources.
type closeSource interface {
	source.TransactionSource
	Close() error
}

// buildSource constructs the transaction source. A replay file takes
// precedence over the live stream.
func buildSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (closeSource, error) {
	if cfg.Source.ReplayFile != "" {
		logger.Printf("Replaying transactions from %s", cfg.Source.ReplayFile)
		return source.NewFileSource(cfg.Source.ReplayFile, logger)
	}

	logger.Printf("Connecting to transaction stream at %s", cfg.Source.WSEndpoint)
	return source.NewWSSource(ctx, source.WSConfig{
		Endpoint:  cfg.Source.WSEndpoint,
		AuthToken: cfg.Source.AuthToken,
		Logger:    logger,
	})
}

// buildRepository connects the configured stores. With no DSN set the
// pipeline runs repo-less; parsed events are counted and discarded.
func buildRepository(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.EventRepository, func(), error) {
	var repos []storage.EventRepository
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if cfg.Postgres.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return nil, cleanup, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		repos = append(repos, pgstore.NewEventRepository(pool))
		logger.Println("Postgres event store connected")
	}

	if cfg.Clickhouse.DSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		repos = append(repos, chstore.NewEventRepository(conn))
		logger.Println("ClickHouse analytics mirror connected")
	}

	if len(repos) == 0 {
		logger.Println("No storage configured, running without persistence")
		return nil, cleanup, nil
	}
	return storage.NewMultiRepository(repos...), cleanup, nil
}
