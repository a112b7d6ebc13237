package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordQuery(QueryEvent{Type: EventFragmentQuery, Matches: 2, GenomeNames: []string{"oryx", "kitten"}, LatencyMs: 10})
	agg.RecordQuery(QueryEvent{Type: EventFragmentQuery, Matches: 1, GenomeNames: []string{"oryx"}, LatencyMs: 30, CacheHit: true})
	agg.RecordQuery(QueryEvent{Type: EventRelatedQuery, Matches: 0, LatencyMs: 20})
	agg.RecordIndex(IndexEvent{Type: EventGenomeIndexed, Name: "oryx", Length: 1200})

	s := agg.Stats()
	if s.TotalQueries != 3 || s.FragmentQueries != 2 || s.RelatedQueries != 1 {
		t.Errorf("query counts = %+v", s)
	}
	if s.CacheHits != 1 || s.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d", s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d", s.ZeroResultCount)
	}
	if s.GenomesIndexed != 1 || s.BasesIndexed != 1200 {
		t.Errorf("index counts = %d/%d", s.GenomesIndexed, s.BasesIndexed)
	}
	if s.AvgLatencyMs != 20 || s.P50LatencyMs != 20 || s.P99LatencyMs != 30 {
		t.Errorf("latency avg=%v p50=%d p99=%d", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if len(s.TopGenomes) != 2 || s.TopGenomes[0] != (GenomeCount{Name: "oryx", Count: 2}) {
		t.Errorf("TopGenomes = %v", s.TopGenomes)
	}
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+50; i++ {
		agg.RecordQuery(QueryEvent{Type: EventFragmentQuery, LatencyMs: int64(i)})
	}
	if len(agg.latencies) != maxLatencySamples {
		t.Errorf("latency samples = %d", len(agg.latencies))
	}
	if got := agg.Stats().TotalQueries; got != maxLatencySamples+50 {
		t.Errorf("TotalQueries = %d", got)
	}
}

func TestTopNTieBreaksByName(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 3}, 2)
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "a" {
		t.Errorf("topN = %v", got)
	}
}

func TestHandleEventDispatchesOnType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	query, _ := json.Marshal(QueryEvent{Type: EventRelatedQuery, Matches: 3})
	index, _ := json.Marshal(IndexEvent{Type: EventGenomeIndexed, Length: 50})
	for _, v := range [][]byte{query, index, []byte(`{"type":"mystery"}`), []byte(`not json`)} {
		if err := handle(ctx, nil, v); err != nil {
			t.Fatalf("handle(%s) = %v", v, err)
		}
	}

	s := agg.Stats()
	if s.RelatedQueries != 1 || s.FragmentQueries != 0 {
		t.Errorf("queries = %+v", s)
	}
	if s.GenomesIndexed != 1 || s.BasesIndexed != 50 {
		t.Errorf("indexed = %d/%d", s.GenomesIndexed, s.BasesIndexed)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func TestCollectorPublishesAndStopsAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 16)
	c.Start(context.Background())

	c.Track(QueryEvent{Type: EventFragmentQuery})
	c.Track(IndexEvent{Type: EventGenomeIndexed})
	c.Close()
	c.Track(QueryEvent{Type: EventRelatedQuery})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 {
		t.Fatalf("published %d events", len(pub.events))
	}
	if pub.events[0].Key != "fragment_query" || pub.events[1].Key != "genome_indexed" {
		t.Errorf("keys = %q, %q", pub.events[0].Key, pub.events[1].Key)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, 1)
	c.Track(QueryEvent{})
	c.Track(QueryEvent{})
	if len(c.eventCh) != 1 {
		t.Errorf("buffered = %d", len(c.eventCh))
	}
}

type fakeSnapshots struct {
	snaps []Snapshot
	err   error
	limit int
}

func (f *fakeSnapshots) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return f.snaps, f.err
}

func (f *fakeSnapshots) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	if f.err != nil || len(f.snaps) == 0 {
		return nil, f.err
	}
	return &f.snaps[0], nil
}

func TestHandlerLatestSnapshot(t *testing.T) {
	store := &fakeSnapshots{}
	h := NewHandler(NewAggregator(), store)

	rec := httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty store code = %d, want 404", rec.Code)
	}

	store.snaps = []Snapshot{{CapturedAt: time.Unix(200, 0).UTC(), Stats: AggregatedStats{TotalQueries: 7}}}
	rec = httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots/latest", nil))
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || snap.Stats.TotalQueries != 7 {
		t.Errorf("code=%d snapshot=%+v", rec.Code, snap)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store error code = %d", rec.Code)
	}
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordQuery(QueryEvent{Type: EventFragmentQuery, Matches: 1})
	rec := httptest.NewRecorder()
	NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	var s AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || s.TotalQueries != 1 {
		t.Errorf("code=%d stats=%+v", rec.Code, s)
	}
}

func TestHandlerSnapshots(t *testing.T) {
	store := &fakeSnapshots{snaps: []Snapshot{{CapturedAt: time.Unix(100, 0).UTC()}}}
	h := NewHandler(NewAggregator(), store)

	rec := httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=5000", nil))
	if rec.Code != http.StatusOK || store.limit != 1000 {
		t.Errorf("code=%d limit=%d", rec.Code, store.limit)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit code = %d", rec.Code)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	if rec.Code != http.StatusInternalServerError || store.limit != 24 {
		t.Errorf("code=%d limit=%d", rec.Code, store.limit)
	}

	rec = httptest.NewRecorder()
	NewHandler(NewAggregator(), nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no store code = %d", rec.Code)
	}
}
