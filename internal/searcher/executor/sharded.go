package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/tracing"
)

// ShardedExecutor fans a query out to every shard in parallel. A shard that
// fails or exceeds its timeout is skipped; the query only fails when no
// shard answers.
type ShardedExecutor struct {
	shardIDs []int
	engines  map[int]*indexer.Engine
	timeout  time.Duration
	logger   *slog.Logger
}

func NewSharded(engines map[int]*indexer.Engine, timeoutPerShard time.Duration) *ShardedExecutor {
	ids := make([]int, 0, len(engines))
	for id := range engines {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return &ShardedExecutor{
		shardIDs: ids,
		engines:  engines,
		timeout:  timeoutPerShard,
		logger:   slog.Default().With("component", "sharded-executor"),
	}
}

func (se *ShardedExecutor) Fragment(ctx context.Context, q parser.FragmentQuery) (*FragmentResult, error) {
	perShard, failed, err := fanOut(ctx, se, "fragment", func(eng *indexer.Engine) []indexer.Hit {
		return eng.FindFragment(q.Fragment, q.MinLength, q.Exact)
	})
	if err != nil {
		return nil, err
	}
	total := 0
	for _, hits := range perShard {
		total += len(hits)
	}
	res := &FragmentResult{
		QueryLength:   len(q.Fragment),
		MinLength:     q.MinLength,
		Exact:         q.Exact,
		TotalMatches:  total,
		Matches:       nonNil(merger.MergeFragments(perShard, q.Limit)),
		ShardsQueried: len(se.shardIDs),
		ShardsFailed:  failed,
	}
	se.logger.Debug("sharded fragment query executed",
		"length", len(q.Fragment),
		"shards_queried", res.ShardsQueried,
		"shards_failed", failed,
		"matches", total,
	)
	return res, nil
}

func (se *ShardedExecutor) Related(ctx context.Context, q parser.RelatedQuery) (*RelatedResult, error) {
	perShard, failed, err := fanOut(ctx, se, "related", func(eng *indexer.Engine) []matcher.GenomeMatch {
		return eng.FindRelated(q.Query, q.WindowLength, q.Exact, q.Threshold)
	})
	if err != nil {
		return nil, err
	}
	total := 0
	for _, ms := range perShard {
		total += len(ms)
	}
	res := &RelatedResult{
		QueryLength:   len(q.Query),
		WindowLength:  q.WindowLength,
		Windows:       len(q.Query) / q.WindowLength,
		Exact:         q.Exact,
		Threshold:     q.Threshold,
		TotalMatches:  total,
		Matches:       nonNil(merger.MergeRelated(perShard, q.Limit)),
		ShardsQueried: len(se.shardIDs),
		ShardsFailed:  failed,
	}
	se.logger.Debug("sharded related query executed",
		"length", len(q.Query),
		"shards_queried", res.ShardsQueried,
		"shards_failed", failed,
		"matches", total,
	)
	return res, nil
}

// fanOut runs query on every shard and returns the per-shard results of
// those that answered in time, in shard order. Engine lookups cannot be
// interrupted, so a timed-out shard finishes in the background and its
// result is discarded.
func fanOut[T any](ctx context.Context, se *ShardedExecutor, kind string, query func(*indexer.Engine) []T) ([][]T, int, error) {
	results := make([][]T, len(se.shardIDs))
	failedShards := make([]bool, len(se.shardIDs))

	var g errgroup.Group
	for i, shardID := range se.shardIDs {
		engine := se.engines[shardID]
		g.Go(func() error {
			_, span := tracing.StartChildSpan(ctx, fmt.Sprintf("%s.shard-%d", kind, shardID))
			defer span.End()

			var res []T
			err := ctx.Err()
			if err == nil {
				err = resilience.WithTimeout(ctx, se.timeout, fmt.Sprintf("shard-%d", shardID), func(context.Context) error {
					res = query(engine)
					return nil
				})
			}
			if err != nil {
				failedShards[i] = true
				span.SetAttr("error", err.Error())
				se.logger.Warn("shard query failed", "shard_id", shardID, "kind", kind, "error", err)
				return nil
			}
			span.SetAttr("matches", len(res))
			results[i] = res
			return nil
		})
	}
	g.Wait()

	failed := 0
	answered := make([][]T, 0, len(results))
	for i, r := range results {
		if failedShards[i] {
			failed++
			continue
		}
		answered = append(answered, r)
	}
	if len(se.shardIDs) > 0 && failed == len(se.shardIDs) {
		return nil, failed, apperrors.Newf(apperrors.ErrShardUnavailable, http.StatusServiceUnavailable,
			"all %d shards failed", failed)
	}
	return answered, failed, nil
}
