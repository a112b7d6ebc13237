package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
)

// maxLatencySamples bounds the window used for latency percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries     int64         `json:"total_queries"`
	FragmentQueries  int64         `json:"fragment_queries"`
	RelatedQueries   int64         `json:"related_queries"`
	GenomesIndexed   int64         `json:"genomes_indexed"`
	BasesIndexed     int64         `json:"bases_indexed"`
	CacheHits        int64         `json:"cache_hits"`
	CacheMisses      int64         `json:"cache_misses"`
	ZeroResultCount  int64         `json:"zero_result_count"`
	AvgLatencyMs     float64       `json:"avg_latency_ms"`
	P50LatencyMs     int64         `json:"p50_latency_ms"`
	P95LatencyMs     int64         `json:"p95_latency_ms"`
	P99LatencyMs     int64         `json:"p99_latency_ms"`
	TopGenomes       []GenomeCount `json:"top_genomes"`
	QueriesPerMinute float64       `json:"queries_per_minute"`
}

// GenomeCount is how often a genome appeared in query results.
type GenomeCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu              sync.RWMutex
	fragmentQueries atomic.Int64
	relatedQueries  atomic.Int64
	genomesIndexed  atomic.Int64
	basesIndexed    atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	zeroResults     atomic.Int64
	latencies       []int64
	next            int
	genomeCounts    map[string]int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:    make([]int64, 0, 1024),
		genomeCounts: make(map[string]int64),
		startTime:    time.Now(),
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka MessageHandler feeding agg. Events are
// dispatched on their type field; unknown types are skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var envelope struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventFragmentQuery, EventRelatedQuery:
			event, err := kafka.DecodeJSON[QueryEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode query event", "error", err)
				return nil
			}
			agg.RecordQuery(event)
		case EventGenomeIndexed:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		default:
			agg.logger.Debug("skipping analytics event", "type", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordQuery(event QueryEvent) {
	if event.Type == EventRelatedQuery {
		a.relatedQueries.Add(1)
	} else {
		a.fragmentQueries.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Matches == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	for _, name := range event.GenomeNames {
		a.genomeCounts[name]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.genomesIndexed.Add(1)
	a.basesIndexed.Add(int64(event.Length))
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		FragmentQueries: a.fragmentQueries.Load(),
		RelatedQueries:  a.relatedQueries.Load(),
		GenomesIndexed:  a.genomesIndexed.Load(),
		BasesIndexed:    a.basesIndexed.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	stats.TotalQueries = stats.FragmentQueries + stats.RelatedQueries
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopGenomes = topN(a.genomeCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []GenomeCount {
	result := make([]GenomeCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, GenomeCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
