// Package merger combines per-shard results into one response.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/searcher/ranker"
)

// MergeFragments returns up to limit hits in library order. Each shard's
// hits are already unique per genome, and a genome lives in one shard.
func MergeFragments(perShard [][]indexer.Hit, limit int) []indexer.Hit {
	total := 0
	for _, hits := range perShard {
		total += len(hits)
	}
	if limit <= 0 || limit > total {
		limit = total
	}
	h := &hitHeap{}
	heap.Init(h)
	for _, hits := range perShard {
		for _, hit := range hits {
			heap.Push(h, hit)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]indexer.Hit, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(indexer.Hit)
	}
	return result
}

// MergeRelated concatenates per-shard relatedness results and ranks them.
// Percentages need no rescaling because the window count depends only on
// the query.
func MergeRelated(perShard [][]matcher.GenomeMatch, limit int) []matcher.GenomeMatch {
	var all []matcher.GenomeMatch
	for _, ms := range perShard {
		all = append(all, ms...)
	}
	ranker.SortRelated(all)
	return ranker.Limit(all, limit)
}

// hitHeap is a max-heap on ordinal so the largest ordinal is evicted first.
type hitHeap []indexer.Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool {
	if h[i].Ordinal != h[j].Ordinal {
		return h[i].Ordinal > h[j].Ordinal
	}
	return h[i].GenomeName > h[j].GenomeName
}

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x interface{}) {
	*h = append(*h, x.(indexer.Hit))
}

func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
