// Package matcher answers fragment and relatedness queries over a library of
// genomes. Every seed-length window of every genome is indexed in a trie; a
// query looks up its leading seed and then extends each candidate directly
// against the stored sequence.
package matcher

import (
	"errors"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher/trie"
)

// ErrInvalidSeedLength is returned by New for a non-positive seed length.
var ErrInvalidSeedLength = errors.New("minimum search length must be positive")

// SeedHit is the trie payload: where a seed window came from.
type SeedHit struct {
	Name     string
	Index    int
	Position int
	Length   int
}

// DNAMatch is the best match of a fragment inside one genome.
type DNAMatch struct {
	GenomeName string `json:"genome_name"`
	Position   int    `json:"position"`
	Length     int    `json:"length"`
}

// GenomeMatch is the share of query windows that matched one genome.
type GenomeMatch struct {
	GenomeName   string  `json:"genome_name"`
	PercentMatch float64 `json:"percent_match"`
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithAnchoredSeed requires the first base of a seed to match exactly during
// single-substitution lookups.
func WithAnchoredSeed() Option {
	return func(m *Matcher) { m.anchored = true }
}

// WithLegacyStride makes FindRelated advance windows with the stride
// position = (position+1)*windowLength instead of a fixed stride.
func WithLegacyStride() Option {
	return func(m *Matcher) { m.legacyStride = true }
}

// Matcher owns a genome library and its seed index. It performs no locking:
// AddGenome must not run concurrently with any query.
type Matcher struct {
	minSearchLength int
	anchored        bool
	legacyStride    bool
	library         []genome.Genome
	index           *trie.Trie[SeedHit]
}

// New returns an empty Matcher indexing windows of minSearchLength bases.
func New(minSearchLength int, opts ...Option) (*Matcher, error) {
	if minSearchLength <= 0 {
		return nil, ErrInvalidSeedLength
	}
	m := &Matcher{minSearchLength: minSearchLength}
	for _, opt := range opts {
		opt(m)
	}
	var trieOpts []trie.Option
	if m.anchored {
		trieOpts = append(trieOpts, trie.WithAnchoredFirst())
	}
	m.index = trie.New[SeedHit](trieOpts...)
	return m, nil
}

// MinSearchLength returns the seed length.
func (m *Matcher) MinSearchLength() int {
	return m.minSearchLength
}

// Genomes returns the library in insertion order.
func (m *Matcher) Genomes() []genome.Genome {
	out := make([]genome.Genome, len(m.library))
	copy(out, m.library)
	return out
}

// Seeds returns the number of indexed windows.
func (m *Matcher) Seeds() int {
	return m.index.Len()
}

// Nodes returns the number of trie nodes.
func (m *Matcher) Nodes() int {
	return m.index.Nodes()
}

// AddGenome appends g to the library and indexes each of its windows in
// ascending offset order.
func (m *Matcher) AddGenome(g genome.Genome) {
	m.library = append(m.library, g)
	idx := len(m.library) - 1
	bases := g.Bases()
	for p := 0; p+m.minSearchLength <= len(bases); p++ {
		m.index.Insert(bases[p:p+m.minSearchLength], SeedHit{
			Name:     g.Name(),
			Index:    idx,
			Position: p,
			Length:   m.minSearchLength,
		})
	}
}

// FindFragment reports, for each genome holding a run of at least
// minimumLength bases matching the start of fragment, the longest such run
// and, among equal lengths, the earliest one. In non-exact mode a single
// mismatching base is tolerated anywhere in the run. Results follow library
// order.
func (m *Matcher) FindFragment(fragment string, minimumLength int, exactOnly bool) ([]DNAMatch, bool) {
	if len(fragment) < minimumLength || minimumLength < m.minSearchLength {
		return nil, false
	}

	best := make(map[int]DNAMatch)
	for _, hit := range m.index.Find(fragment[:m.minSearchLength], exactOnly) {
		g := m.library[hit.Index]
		n := min(len(fragment), g.Len()-hit.Position)
		segment, ok := g.Extract(hit.Position, n)
		if !ok {
			continue
		}
		length := matchLength(segment, fragment, exactOnly)
		if length < minimumLength {
			continue
		}
		cur, seen := best[hit.Index]
		if !seen || length > cur.Length || (length == cur.Length && hit.Position < cur.Position) {
			best[hit.Index] = DNAMatch{GenomeName: hit.Name, Position: hit.Position, Length: length}
		}
	}
	if len(best) == 0 {
		return nil, false
	}

	indices := make([]int, 0, len(best))
	for idx := range best {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]DNAMatch, 0, len(indices))
	for _, idx := range indices {
		out = append(out, best[idx])
	}
	return out, true
}

// matchLength counts the leading bases of segment that agree with fragment.
// A mismatch ends the run in exact mode; otherwise the first one is counted
// and the second ends the run.
func matchLength(segment, fragment string, exactOnly bool) int {
	mismatches := 0
	n := 0
	for i := 0; i < len(segment) && i < len(fragment); i++ {
		if segment[i] != fragment[i] {
			mismatches++
			if exactOnly || mismatches > 1 {
				break
			}
		}
		n++
	}
	return n
}

// FindRelated splits query into non-overlapping windows of windowLength bases,
// searches each one, and reports the genomes matched by at least threshold
// percent of the windows, ordered by percent descending then name ascending.
func (m *Matcher) FindRelated(query string, windowLength int, exactOnly bool, threshold float64) ([]GenomeMatch, bool) {
	if windowLength < m.minSearchLength || len(query) < windowLength {
		return nil, false
	}
	numWindows := len(query) / windowLength

	hits := make(map[string]int)
	for _, start := range m.windowStarts(len(query), windowLength, numWindows) {
		window := ""
		if start+windowLength <= len(query) {
			window = query[start : start+windowLength]
		}
		matches, ok := m.FindFragment(window, windowLength, exactOnly)
		if !ok {
			continue
		}
		for _, dm := range matches {
			hits[dm.GenomeName]++
		}
	}

	var out []GenomeMatch
	for name, count := range hits {
		percent := 100 * float64(count) / float64(numWindows)
		if percent >= threshold {
			out = append(out, GenomeMatch{GenomeName: name, PercentMatch: percent})
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	SortRelated(out)
	return out, true
}

func (m *Matcher) windowStarts(queryLen, windowLength, numWindows int) []int {
	starts := make([]int, 0, numWindows)
	if m.legacyStride {
		for p := 0; p < queryLen; p = (p + 1) * windowLength {
			starts = append(starts, p)
		}
		return starts
	}
	for k := 0; k < numWindows; k++ {
		starts = append(starts, k*windowLength)
	}
	return starts
}

// SortRelated orders matches by percent descending, then genome name ascending.
func SortRelated(matches []GenomeMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].PercentMatch != matches[j].PercentMatch {
			return matches[i].PercentMatch > matches[j].PercentMatch
		}
		return matches[i].GenomeName < matches[j].GenomeName
	})
}
