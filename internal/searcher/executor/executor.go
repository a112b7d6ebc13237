// Package executor runs parsed queries against the in-memory index, either
// a single engine or every shard of a router.
package executor

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/ranker"
)

// Executor answers fragment and relatedness queries.
type Executor interface {
	Fragment(ctx context.Context, q parser.FragmentQuery) (*FragmentResult, error)
	Related(ctx context.Context, q parser.RelatedQuery) (*RelatedResult, error)
}

// FragmentResult lists the best match per genome in library order.
type FragmentResult struct {
	QueryLength   int           `json:"query_length"`
	MinLength     int           `json:"min_length"`
	Exact         bool          `json:"exact"`
	TotalMatches  int           `json:"total_matches"`
	Matches       []indexer.Hit `json:"matches"`
	ShardsQueried int           `json:"shards_queried"`
	ShardsFailed  int           `json:"shards_failed,omitempty"`
}

// RelatedResult lists genomes by share of matching query windows.
type RelatedResult struct {
	QueryLength   int                   `json:"query_length"`
	WindowLength  int                   `json:"window_length"`
	Windows       int                   `json:"windows"`
	Exact         bool                  `json:"exact"`
	Threshold     float64               `json:"threshold"`
	TotalMatches  int                   `json:"total_matches"`
	Matches       []matcher.GenomeMatch `json:"matches"`
	ShardsQueried int                   `json:"shards_queried"`
	ShardsFailed  int                   `json:"shards_failed,omitempty"`
}

// Partial reports whether any shard failed to answer.
func (r *FragmentResult) Partial() bool { return r != nil && r.ShardsFailed > 0 }

// Partial reports whether any shard failed to answer.
func (r *RelatedResult) Partial() bool { return r != nil && r.ShardsFailed > 0 }

// LocalExecutor queries one engine.
type LocalExecutor struct {
	engine *indexer.Engine
	logger *slog.Logger
}

func New(engine *indexer.Engine) *LocalExecutor {
	return &LocalExecutor{
		engine: engine,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *LocalExecutor) Fragment(ctx context.Context, q parser.FragmentQuery) (*FragmentResult, error) {
	hits := e.engine.FindFragment(q.Fragment, q.MinLength, q.Exact)
	res := newFragmentResult(q, hits, 1, 0)
	e.logger.Debug("fragment query executed", "length", len(q.Fragment), "matches", res.TotalMatches)
	return res, nil
}

func (e *LocalExecutor) Related(ctx context.Context, q parser.RelatedQuery) (*RelatedResult, error) {
	matches := e.engine.FindRelated(q.Query, q.WindowLength, q.Exact, q.Threshold)
	res := newRelatedResult(q, matches, 1, 0)
	e.logger.Debug("related query executed", "length", len(q.Query), "matches", res.TotalMatches)
	return res, nil
}

func newFragmentResult(q parser.FragmentQuery, hits []indexer.Hit, queried, failed int) *FragmentResult {
	total := len(hits)
	merged := merger.MergeFragments([][]indexer.Hit{hits}, q.Limit)
	return &FragmentResult{
		QueryLength:   len(q.Fragment),
		MinLength:     q.MinLength,
		Exact:         q.Exact,
		TotalMatches:  total,
		Matches:       nonNil(merged),
		ShardsQueried: queried,
		ShardsFailed:  failed,
	}
}

func newRelatedResult(q parser.RelatedQuery, matches []matcher.GenomeMatch, queried, failed int) *RelatedResult {
	total := len(matches)
	return &RelatedResult{
		QueryLength:   len(q.Query),
		WindowLength:  q.WindowLength,
		Windows:       len(q.Query) / q.WindowLength,
		Exact:         q.Exact,
		Threshold:     q.Threshold,
		TotalMatches:  total,
		Matches:       nonNil(ranker.Limit(matches, q.Limit)),
		ShardsQueried: queried,
		ShardsFailed:  failed,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
