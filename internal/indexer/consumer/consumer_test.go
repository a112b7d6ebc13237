package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
)

type statusLog map[int64]string

func (s statusLog) UpdateStatus(_ context.Context, id int64, status string) error {
	s[id] = status
	return nil
}

func encode(t *testing.T, ev ingestion.GenomeIngestEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleMessage(t *testing.T) {
	router, err := shard.NewRouter(config.IndexerConfig{NumShards: 3, MinSearchLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	statuses := statusLog{}
	var indexed []string
	h := HandleMessage(router, statuses, func(_ context.Context, ev ingestion.GenomeIngestEvent, shardID int, _ time.Duration) {
		if shardID != router.ShardFor(ev.Name) {
			t.Errorf("hook shard = %d, want %d", shardID, router.ShardFor(ev.Name))
		}
		indexed = append(indexed, ev.Name)
	})
	ctx := context.Background()

	ev := ingestion.GenomeIngestEvent{GenomeID: 1, Ordinal: 1, Name: "oryx", Sequence: "ACGTACGTAA"}
	if err := h(ctx, nil, encode(t, ev)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !router.Has("oryx") || statuses[1] != store.StatusIndexed {
		t.Errorf("after first delivery: has=%v status=%q", router.Has("oryx"), statuses[1])
	}

	// redelivery is acknowledged without re-firing the hook
	if err := h(ctx, nil, encode(t, ev)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(indexed) != 1 {
		t.Errorf("hook fired %d times", len(indexed))
	}

	bad := ingestion.GenomeIngestEvent{GenomeID: 2, Ordinal: 2, Name: "bad", Sequence: "ACGU"}
	if err := h(ctx, nil, encode(t, bad)); err != nil {
		t.Fatalf("invalid genome: %v", err)
	}
	if statuses[2] != store.StatusFailed || router.Has("bad") {
		t.Errorf("invalid genome: status=%q has=%v", statuses[2], router.Has("bad"))
	}

	if err := h(ctx, []byte("k"), []byte("{not json")); err != nil {
		t.Errorf("undecodable message should be acknowledged, got %v", err)
	}

	engine, _ := router.Route(router.ShardFor("oryx"))
	hits := engine.FindFragment("ACGTACGT", 8, true)
	if len(hits) != 1 || hits[0].Ordinal != 1 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestHandleMessageNilCollaborators(t *testing.T) {
	router, _ := shard.NewRouter(config.IndexerConfig{NumShards: 1, MinSearchLength: 2})
	h := HandleMessage(router, nil, nil)
	ev := ingestion.GenomeIngestEvent{Name: "local", Sequence: "ACGT"}
	if err := h(context.Background(), nil, encode(t, ev)); err != nil {
		t.Fatal(err)
	}
	if !router.Has("local") {
		t.Error("genome not indexed")
	}
}
