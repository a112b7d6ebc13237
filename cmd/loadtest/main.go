// Command loadtest drives the searcher with fragment and relatedness queries
// sampled from a FASTA library and reports throughput and latency.
//
// Usage:
//
//	go run ./cmd/loadtest -g library.fa -concurrency 20 -duration 1m
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	RelatedRatio float64
	Queries      []Query
}

// Query is one request the workers replay.
type Query struct {
	Related bool
	Bases   string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	basesSent     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	library := flag.String("g", "", "FASTA library to sample queries from")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	numQueries := flag.Int("queries", 200, "number of distinct queries to sample")
	fragmentLength := flag.Int("fragment-length", 40, "bases per sampled query")
	relatedRatio := flag.Float64("related-ratio", 0.2, "share of queries sent to /api/v1/related")
	seed := flag.Uint64("seed", 1, "sampling seed")
	flag.Parse()

	if *library == "" {
		fmt.Fprintln(os.Stderr, "a library is required: -g library.fa")
		os.Exit(2)
	}
	genomes, err := genome.LoadFile(*library)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading library: %v\n", err)
		os.Exit(1)
	}
	r := rand.New(rand.NewPCG(*seed, *seed))
	queries := sampleQueries(r, genomes, *numQueries, *fragmentLength, *relatedRatio)
	if len(queries) == 0 {
		fmt.Fprintf(os.Stderr, "no genome is at least %d bases long\n", *fragmentLength)
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:      *baseURL,
		Concurrency:  *concurrency,
		Duration:     *duration,
		RelatedRatio: *relatedRatio,
		Queries:      queries,
	}

	fmt.Println("=== Genome Matcher Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique, %d bases each, %.0f%% related\n",
		len(cfg.Queries), *fragmentLength, cfg.RelatedRatio*100)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// sampleQueries cuts n substrings of the given length at random offsets of
// random genomes. Genomes shorter than length are never sampled.
func sampleQueries(r *rand.Rand, genomes []genome.Genome, n, length int, relatedRatio float64) []Query {
	var eligible []genome.Genome
	for _, g := range genomes {
		if g.Len() >= length {
			eligible = append(eligible, g)
		}
	}
	if len(eligible) == 0 || length <= 0 {
		return nil
	}
	queries := make([]Query, 0, n)
	for i := 0; i < n; i++ {
		g := eligible[r.IntN(len(eligible))]
		pos := r.IntN(g.Len() - length + 1)
		bases, _ := g.Extract(pos, length)
		queries = append(queries, Query{Related: r.Float64() < relatedRatio, Bases: bases})
	}
	return queries
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				q := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				req, err := newRequest(ctx, cfg.BaseURL, q)
				if err != nil {
					stats.RecordRequest(0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)

				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(duration, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.basesSent.Add(int64(len(q.Bases)))
				stats.RecordRequest(duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func newRequest(ctx context.Context, baseURL string, q Query) (*http.Request, error) {
	if !q.Related {
		target := fmt.Sprintf("%s/api/v1/fragments?fragment=%s&limit=10", baseURL, url.QueryEscape(q.Bases))
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	body, err := json.Marshal(map[string]any{"query": q.Bases, "limit": 10})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/related", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %s\n", humanize.Comma(total))
	fmt.Printf("Successful:      %s\n", humanize.Comma(success))
	fmt.Printf("Errors:          %s\n", humanize.Comma(errors))
	fmt.Printf("Bases Queried:   %s\n", humanize.SIWithDigits(float64(stats.basesSent.Load()), 2, "bp"))

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
