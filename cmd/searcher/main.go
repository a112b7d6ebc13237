// Command searcher starts the genome query service.
//
// It warm-starts a sharded in-memory seed index from PostgreSQL, follows the
// genome ingest topic to index new genomes as they arrive, and answers
// fragment and relatedness queries over HTTP. Results are cached in Redis
// and every query is reported to the analytics topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/tracing"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"num_shards", cfg.Indexer.NumShards,
		"min_search_length", cfg.Indexer.MinSearchLength,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	router, err := shard.NewRouter(cfg.Indexer)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	m.ActiveShards.Set(float64(router.NumShards()))

	var genomeStore *store.Store
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, warm start and status updates disabled", "error", err)
	} else {
		defer db.Close()
		genomeStore = store.New(db)
		if cfg.Indexer.WarmStart {
			if err := warmStart(ctx, genomeStore, router, m); err != nil {
				slog.Error("warm start failed", "error", err)
				os.Exit(1)
			}
		}
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	queryCollector := analytics.NewCollector(analyticsProducer, 10000)
	queryCollector.Start(ctx)
	defer queryCollector.Close()
	indexCollector := collector.NewBatchCollector(analyticsProducer, 100, 5*time.Second)
	indexCollector.Start(ctx)
	defer indexCollector.Close()

	onIndexed := func(ctx context.Context, event ingestion.GenomeIngestEvent, shardID int, took time.Duration) {
		m.GenomesIndexedTotal.WithLabelValues("stream").Inc()
		m.BasesIndexedTotal.Add(float64(len(event.Sequence)))
		m.ShardGenomeCount.WithLabelValues(strconv.Itoa(shardID)).Inc()
		if queryCache != nil {
			if _, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after indexing failed", "error", err)
			}
		}
		indexCollector.Track(string(analytics.EventGenomeIndexed), analytics.IndexEvent{
			Type:      analytics.EventGenomeIndexed,
			GenomeID:  event.GenomeID,
			Name:      event.Name,
			ShardID:   shardID,
			Length:    len(event.Sequence),
			LatencyMs: took.Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}

	var statusUpdater consumer.StatusUpdater
	if genomeStore != nil {
		statusUpdater = genomeStore
	}
	ingestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.GenomeIngest,
		consumer.HandleMessage(router, statusUpdater, onIndexed),
		kafka.WithGroupID(replicaGroup(cfg.Kafka.ConsumerGroup)),
		kafka.FromBeginning(),
	)
	indexConsumer := consumer.New(ingestConsumer)
	go func() {
		if err := indexConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("index consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", health.ThresholdCheck(router.NumShards, 1, "shards"))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient))
	}
	if db != nil {
		checker.Register("postgres", health.PingCheck(db))
	}

	exec := executor.NewSharded(router.GetAllEngines(), cfg.Search.TimeoutPerShard)
	h := handler.New(exec, parser.DefaultsFrom(cfg.Indexer, cfg.Search), handler.Options{
		Cache:   queryCache,
		Tracker: queryCollector,
		Index:   router,
		Metrics: m,
		Tracer:  tracing.NewTracer(cfg.Tracing),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/fragments", h.Fragment)
	mux.HandleFunc("POST /api/v1/related", h.Related)
	mux.HandleFunc("GET /api/v1/genomes/{name}", h.Genome)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

var errIndexStored = errors.New("indexing stored genome")

// warmStart loads every stored genome into the router. A retried attempt
// skips genomes already loaded by an earlier one.
func warmStart(ctx context.Context, st *store.Store, router *shard.Router, m *metrics.Metrics) error {
	start := time.Now()
	retry := resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		// only database reads are worth repeating, indexing fails the same way every time
		Retryable: func(err error) bool { return !errors.Is(err, errIndexStored) },
		OnRetry: func(attempt int, err error) {
			m.WarmStartRetries.Inc()
		},
	}
	err := resilience.Retry(ctx, "warm-start", retry, func() error {
		return st.LoadAll(ctx, func(ordinal int64, g genome.Genome) error {
			shardID, err := router.AddGenome(ordinal, g)
			if errors.Is(err, apperrors.ErrGenomeExists) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w %q: %w", errIndexStored, g.Name(), err)
			}
			m.GenomesIndexedTotal.WithLabelValues("warm_start").Inc()
			m.BasesIndexedTotal.Add(float64(g.Len()))
			m.ShardGenomeCount.WithLabelValues(strconv.Itoa(shardID)).Inc()
			return nil
		})
	})
	if err != nil {
		return err
	}
	_, total := router.Stats()
	slog.Info("warm start complete",
		"genomes", humanize.Comma(int64(total.Genomes)),
		"bases", humanize.SIWithDigits(float64(total.Bases), 2, "bp"),
		"seeds", humanize.Comma(int64(total.Seeds)),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// replicaGroup gives each searcher process its own consumer group so that
// every replica indexes every genome.
func replicaGroup(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = strconv.Itoa(os.Getpid())
	}
	return base + "-searcher-" + host
}
