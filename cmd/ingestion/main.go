// Command ingestion starts the genome ingestion HTTP service.
//
// The service accepts genomes via POST /api/v1/genomes as JSON or FASTA,
// validates them, persists them to PostgreSQL, and publishes them to the
// genome ingest topic for the searchers to index.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.GenomeIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.GenomeIngest)

	m := metrics.New(nil)
	breaker := resilience.NewCircuitBreaker("kafka-genome-ingest", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	pub := publisher.New(store.New(db), producer, cfg.Indexer.NumShards, breaker)
	h := handler.New(pub, cfg.Server.MaxBodyBytes)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/genomes", h.Ingest)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		limiter.StartCleanup(ctx, cfg.RateLimit.Window)
	}
	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.RateLimit(limiter, m),
		middleware.Timeout(cfg.Server.WriteTimeout),
		middleware.Metrics(m),
	)

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
