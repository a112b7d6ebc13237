// Package handler exposes the query HTTP API of the searcher service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/tracing"
)

// maxRelatedBody bounds POST /api/v1/related bodies beyond the query itself.
const maxRelatedBody = 4 << 10

// Tracker receives analytics events. *analytics.Collector implements it.
type Tracker interface {
	Track(event interface{})
}

// Index describes the genomes held by the searcher. *shard.Router
// implements it.
type Index interface {
	Has(name string) bool
	ShardFor(name string) int
	Stats() (map[int]indexer.Stats, indexer.Stats)
}

// Options carries the optional collaborators of a Handler. Nil fields
// disable the matching feature.
type Options struct {
	Cache   *cache.QueryCache
	Tracker Tracker
	Index   Index
	Metrics *metrics.Metrics
	Tracer  *tracing.Tracer
}

type Handler struct {
	executor executor.Executor
	defaults parser.Defaults
	cache    *cache.QueryCache
	tracker  Tracker
	index    Index
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	logger   *slog.Logger
}

func New(exec executor.Executor, defaults parser.Defaults, opts Options) *Handler {
	return &Handler{
		executor: exec,
		defaults: defaults,
		cache:    opts.Cache,
		tracker:  opts.Tracker,
		index:    opts.Index,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Fragment handles GET /api/v1/fragments?fragment=&minLength=&exact=&limit=.
func (h *Handler) Fragment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parser.ParseFragment(r.URL.Query(), h.defaults)
	if err != nil {
		h.writeAppError(w, err, "invalid fragment query")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "fragment_query", middleware.GetRequestID(r.Context()))
	defer finish(span)
	span.SetAttr("fragment_length", len(q.Fragment))

	result, cacheHit, err := cache.GetOrCompute(ctx, h.cache, cache.Key(q.CacheKey()), func() (*executor.FragmentResult, error) {
		return h.executor.Fragment(ctx, q)
	})
	if err != nil {
		h.queryFailed(ctx, w, "fragment", err)
		return
	}

	names := make([]string, len(result.Matches))
	for i, m := range result.Matches {
		names[i] = m.GenomeName
	}
	h.queryDone(ctx, "fragment", start, cacheHit, len(result.Matches))
	h.track(analytics.QueryEvent{
		Type:         analytics.EventFragmentQuery,
		QueryLength:  len(q.Fragment),
		MinLength:    q.MinLength,
		Exact:        q.Exact,
		Matches:      result.TotalMatches,
		GenomeNames:  names,
		LatencyMs:    time.Since(start).Milliseconds(),
		CacheHit:     cacheHit,
		ShardsFailed: result.ShardsFailed,
		Timestamp:    time.Now().UTC(),
		RequestID:    middleware.GetRequestID(ctx),
	})
	span.SetAttr("matches", result.TotalMatches)
	h.writeJSON(w, http.StatusOK, result)
}

// Related handles POST /api/v1/related with a parser.RelatedRequest body.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.defaults.MaxQueryLength > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.defaults.MaxQueryLength)+maxRelatedBody)
	}
	var req parser.RelatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	q, err := parser.ParseRelated(req, h.defaults)
	if err != nil {
		h.writeAppError(w, err, "invalid related query")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "related_query", middleware.GetRequestID(r.Context()))
	defer finish(span)
	span.SetAttr("query_length", len(q.Query))
	span.SetAttr("window_length", q.WindowLength)

	result, cacheHit, err := cache.GetOrCompute(ctx, h.cache, cache.Key(q.CacheKey()), func() (*executor.RelatedResult, error) {
		return h.executor.Related(ctx, q)
	})
	if err != nil {
		h.queryFailed(ctx, w, "related", err)
		return
	}

	names := make([]string, len(result.Matches))
	for i, m := range result.Matches {
		names[i] = m.GenomeName
	}
	h.queryDone(ctx, "related", start, cacheHit, len(result.Matches))
	h.track(analytics.QueryEvent{
		Type:         analytics.EventRelatedQuery,
		QueryLength:  len(q.Query),
		WindowLength: q.WindowLength,
		Threshold:    q.Threshold,
		Exact:        q.Exact,
		Matches:      result.TotalMatches,
		GenomeNames:  names,
		LatencyMs:    time.Since(start).Milliseconds(),
		CacheHit:     cacheHit,
		ShardsFailed: result.ShardsFailed,
		Timestamp:    time.Now().UTC(),
		RequestID:    middleware.GetRequestID(ctx),
	})
	span.SetAttr("matches", result.TotalMatches)
	h.writeJSON(w, http.StatusOK, result)
}

// Genome handles GET /api/v1/genomes/{name}.
func (h *Handler) Genome(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		h.writeError(w, http.StatusServiceUnavailable, "index not available")
		return
	}
	name := r.PathValue("name")
	if !h.index.Has(name) {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrGenomeNotFound, http.StatusNotFound, "genome %q is not indexed", name), "genome not indexed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"shard_id": h.index.ShardFor(name),
	})
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		h.writeError(w, http.StatusServiceUnavailable, "index not available")
		return
	}
	perShard, total := h.index.Stats()
	shards := make(map[string]indexer.Stats, len(perShard))
	for id, s := range perShard {
		shards[strconv.Itoa(id)] = s
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"shards": shards,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	removed, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "removed": removed})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) queryDone(ctx context.Context, kind string, start time.Time, cacheHit bool, returned int) {
	took := time.Since(start)
	logger.FromContext(ctx).Info("query completed",
		"kind", kind,
		"returned", returned,
		"cache_hit", cacheHit,
		"latency_ms", took.Milliseconds(),
	)
	if h.metrics == nil {
		return
	}
	outcome := "match"
	if returned == 0 {
		outcome = "no_match"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	h.metrics.QueryLatency.WithLabelValues(kind, cacheStatus).Observe(took.Seconds())
	h.metrics.QueryMatches.WithLabelValues(kind).Observe(float64(returned))
}

func (h *Handler) queryFailed(ctx context.Context, w http.ResponseWriter, kind string, err error) {
	statusCode := apperrors.HTTPStatusCode(err)
	logger.FromContext(ctx).Error("query failed", "kind", kind, "error", err, "status_code", statusCode)
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(kind, "error").Inc()
	}
	h.writeError(w, statusCode, apperrors.Message(err, apperrors.ErrInternal.Error()))
}

// finish ends a sampled root span and logs its tree.
func finish(span *tracing.Span) {
	span.End()
	span.Log()
}

func (h *Handler) track(event analytics.QueryEvent) {
	if h.tracker != nil {
		h.tracker.Track(event)
	}
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error, fallback string) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Message(err, fallback))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
