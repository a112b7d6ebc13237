package publisher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/resilience"
)

type memStore struct {
	rows   []store.Record
	byName map[string]bool
}

func newMemStore() *memStore {
	return &memStore{byName: make(map[string]bool)}
}

func (m *memStore) Insert(_ context.Context, g store.NewGenome) (store.Record, error) {
	if m.byName[g.Name] {
		return store.Record{}, apperrors.Newf(apperrors.ErrGenomeExists, http.StatusConflict, "genome %q already exists", g.Name)
	}
	m.byName[g.Name] = true
	rec := store.Record{
		ID:             int64(len(m.rows) + 1),
		Name:           g.Name,
		Length:         len(g.Bases),
		ContentHash:    g.ContentHash,
		Status:         store.StatusPending,
		IdempotencyKey: g.IdempotencyKey,
	}
	m.rows = append(m.rows, rec)
	return rec, nil
}

func (m *memStore) FindByIdempotencyKey(_ context.Context, key string) (*store.Record, error) {
	for i := range m.rows {
		if m.rows[i].IdempotencyKey == key {
			rec := m.rows[i]
			return &rec, nil
		}
	}
	return nil, nil
}

type recordingProducer struct {
	events []kafka.Event
	err    error
}

func (r *recordingProducer) Publish(_ context.Context, e kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func TestIngestPublishesEvent(t *testing.T) {
	st, prod := newMemStore(), &recordingProducer{}
	p := New(st, prod, 8, nil)

	resp, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Name: "oryx", Sequence: "ACGTACGT"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.GenomeID != 1 || resp.Status != store.StatusPending || resp.Length != 8 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.ShardID != shard.ShardFor("oryx", 8) {
		t.Errorf("shard = %d, want %d", resp.ShardID, shard.ShardFor("oryx", 8))
	}
	if len(prod.events) != 1 {
		t.Fatalf("published %d events", len(prod.events))
	}
	ev, ok := prod.events[0].Value.(ingestion.GenomeIngestEvent)
	if !ok {
		t.Fatalf("event value type %T", prod.events[0].Value)
	}
	if ev.Ordinal != 1 || ev.Name != "oryx" || ev.Sequence != "ACGTACGT" || ev.ShardID != resp.ShardID {
		t.Errorf("event = %+v", ev)
	}
	if len(st.rows[0].ContentHash) != 64 {
		t.Errorf("content hash = %q", st.rows[0].ContentHash)
	}
}

func TestIngestIdempotent(t *testing.T) {
	st, prod := newMemStore(), &recordingProducer{}
	p := New(st, prod, 4, nil)
	req := &ingestion.IngestRequest{Name: "kitten", Sequence: "ACGT", IdempotencyKey: "k-1"}

	first, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.GenomeID != first.GenomeID || len(st.rows) != 1 || len(prod.events) != 1 {
		t.Errorf("replay inserted or published again: %+v, rows=%d events=%d", second, len(st.rows), len(prod.events))
	}
}

func TestIngestDuplicateName(t *testing.T) {
	p := New(newMemStore(), &recordingProducer{}, 4, nil)
	p.Ingest(context.Background(), &ingestion.IngestRequest{Name: "oryx", Sequence: "ACGT"})
	_, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Name: "oryx", Sequence: "TTTT"})
	if !errors.Is(err, apperrors.ErrGenomeExists) {
		t.Errorf("err = %v, want ErrGenomeExists", err)
	}
}

func TestIngestSurvivesKafkaOutage(t *testing.T) {
	prod := &recordingProducer{err: errors.New("broker down")}
	cb := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	p := New(newMemStore(), prod, 4, cb)

	for i, name := range []string{"a", "b", "c"} {
		resp, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Name: name, Sequence: "ACGT"})
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		if resp.Status != store.StatusPending {
			t.Errorf("status = %s", resp.Status)
		}
	}
	if cb.GetState() != resilience.StateOpen {
		t.Errorf("breaker state = %s, want open", cb.GetState())
	}
}
