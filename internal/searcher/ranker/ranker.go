// Package ranker orders and trims query results.
package ranker

import (
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher"
)

// SortRelated orders matches by percent descending, then genome name
// ascending.
func SortRelated(matches []matcher.GenomeMatch) {
	matcher.SortRelated(matches)
}

// Limit returns at most n leading items. A non-positive n keeps everything.
func Limit[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
