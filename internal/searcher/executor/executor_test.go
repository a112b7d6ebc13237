package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/tracing"
)

const seedLength = 4

func randomBases(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[r.Intn(4)]
	}
	return string(b)
}

// library builds the same genomes into one engine and into a sharded router.
func library(t *testing.T, n int) (*indexer.Engine, *shard.Router, []genome.Genome) {
	t.Helper()
	cfg := config.IndexerConfig{NumShards: 4, MinSearchLength: seedLength}
	engine, err := indexer.NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	router, err := shard.NewRouter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(11))
	core := randomBases(r, 40)
	var gs []genome.Genome
	for i := 0; i < n; i++ {
		bases := randomBases(r, 20) + core[:10+i%30] + randomBases(r, 20)
		g, err := genome.New(fmt.Sprintf("genome-%02d", i), bases)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.AddGenome(int64(i), g); err != nil {
			t.Fatal(err)
		}
		if _, err := router.AddGenome(int64(i), g); err != nil {
			t.Fatal(err)
		}
		gs = append(gs, g)
	}
	return engine, router, gs
}

func TestShardedMatchesLocal(t *testing.T) {
	engine, router, _ := library(t, 24)
	local := New(engine)
	sharded := NewSharded(router.GetAllEngines(), time.Second)
	ctx := context.Background()

	r := rand.New(rand.NewSource(5))
	for i := 0; i < 40; i++ {
		fq := parser.FragmentQuery{Fragment: randomBases(r, 12), MinLength: 8, Exact: i%2 == 0, Limit: 100}
		if i%3 == 0 {
			fq.Fragment = "ACGTACGTAC"
		}
		want, _ := local.Fragment(ctx, fq)
		got, err := sharded.Fragment(ctx, fq)
		if err != nil {
			t.Fatalf("sharded fragment: %v", err)
		}
		if len(got.Matches) != len(want.Matches) {
			t.Fatalf("fragment %s: sharded %d matches, local %d", fq.Fragment, len(got.Matches), len(want.Matches))
		}
		for j := range want.Matches {
			if got.Matches[j] != want.Matches[j] {
				t.Errorf("fragment %s match %d: sharded %+v, local %+v", fq.Fragment, j, got.Matches[j], want.Matches[j])
			}
		}
		if got.ShardsQueried != 4 || got.ShardsFailed != 0 {
			t.Errorf("shards = %d/%d", got.ShardsQueried, got.ShardsFailed)
		}
	}

	rq := parser.RelatedQuery{Query: randomBases(r, 12) + "ACGTACGTACGTACGT", WindowLength: 4, Threshold: 0, Limit: 100}
	want, _ := local.Related(ctx, rq)
	got, err := sharded.Related(ctx, rq)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Matches) != len(want.Matches) || got.Windows != 7 {
		t.Fatalf("related: sharded %d, local %d, windows %d", len(got.Matches), len(want.Matches), got.Windows)
	}
	for j := range want.Matches {
		if got.Matches[j] != want.Matches[j] {
			t.Errorf("related %d: sharded %+v, local %+v", j, got.Matches[j], want.Matches[j])
		}
	}
}

func TestFragmentLimitKeepsLibraryOrder(t *testing.T) {
	engine, router, gs := library(t, 10)
	q := parser.FragmentQuery{Fragment: gs[9].Bases()[20:30], MinLength: 10, Exact: true, Limit: 3}
	for _, ex := range []Executor{New(engine), NewSharded(router.GetAllEngines(), 0)} {
		res, err := ex.Fragment(context.Background(), q)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Matches) != 3 || res.TotalMatches < 3 {
			t.Fatalf("%T: matches = %d of %d", ex, len(res.Matches), res.TotalMatches)
		}
		for i := 1; i < len(res.Matches); i++ {
			if res.Matches[i-1].Ordinal >= res.Matches[i].Ordinal {
				t.Errorf("%T: not in library order: %+v", ex, res.Matches)
			}
		}
	}
}

func TestShardedAllShardsUnavailable(t *testing.T) {
	_, router, _ := library(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSharded(router.GetAllEngines(), time.Second).Fragment(ctx, parser.FragmentQuery{Fragment: "ACGTACGT", MinLength: 8})
	if !errors.Is(err, apperrors.ErrShardUnavailable) {
		t.Errorf("err = %v, want ErrShardUnavailable", err)
	}
	if apperrors.HTTPStatusCode(err) != 503 {
		t.Errorf("status = %d", apperrors.HTTPStatusCode(err))
	}
}

func TestShardSpans(t *testing.T) {
	_, router, _ := library(t, 4)
	ctx, root := tracing.StartSpan(context.Background(), "related", "trace-1")
	_, err := NewSharded(router.GetAllEngines(), time.Second).Related(ctx, parser.RelatedQuery{Query: "ACGTACGT", WindowLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	root.End()
	if len(root.Children) != 4 {
		t.Errorf("shard spans = %d, want 4", len(root.Children))
	}
}

func TestEmptyResultsEncodeAsEmptyLists(t *testing.T) {
	engine, _, _ := library(t, 1)
	res, _ := New(engine).Related(context.Background(), parser.RelatedQuery{Query: "NNNNNNNN", WindowLength: 4, Threshold: 50})
	if res.Matches == nil || len(res.Matches) != 0 {
		t.Errorf("matches = %#v", res.Matches)
	}
}
