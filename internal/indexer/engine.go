// Package indexer holds the in-memory genome index. An Engine wraps one
// matcher behind a read-write lock and remembers each genome's global
// ordinal, so results from several shards can be put back in library order.
package indexer

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
)

// Hit is a fragment match tagged with the genome's library ordinal.
type Hit struct {
	matcher.DNAMatch
	Ordinal int64 `json:"ordinal"`
}

// Stats summarises an engine's contents.
type Stats struct {
	Genomes int   `json:"genomes"`
	Bases   int64 `json:"bases"`
	Seeds   int   `json:"seeds"`
	Nodes   int   `json:"nodes"`
}

type Engine struct {
	mu       sync.RWMutex
	cfg      config.IndexerConfig
	matcher  *matcher.Matcher
	ordinals map[string]int64
	bases    int64
	logger   *slog.Logger
}

func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	m, err := newMatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		matcher:  m,
		ordinals: make(map[string]int64),
		logger:   slog.Default().With("component", "indexer"),
	}, nil
}

func newMatcher(cfg config.IndexerConfig) (*matcher.Matcher, error) {
	var opts []matcher.Option
	if cfg.AnchoredSeed {
		opts = append(opts, matcher.WithAnchoredSeed())
	}
	if cfg.LegacyStride {
		opts = append(opts, matcher.WithLegacyStride())
	}
	m, err := matcher.New(cfg.MinSearchLength, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	return m, nil
}

// AddGenome indexes g under the given library ordinal. A name that is
// already indexed is rejected with ErrGenomeExists.
func (e *Engine) AddGenome(ordinal int64, g genome.Genome) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.ordinals[g.Name()]; ok {
		return apperrors.Newf(apperrors.ErrGenomeExists, http.StatusConflict, "genome %q is already indexed", g.Name())
	}
	e.matcher.AddGenome(g)
	e.ordinals[g.Name()] = ordinal
	e.bases += int64(g.Len())
	e.logger.Debug("genome indexed",
		"name", g.Name(),
		"ordinal", ordinal,
		"length", g.Len(),
		"seeds", e.matcher.Seeds(),
	)
	return nil
}

// Has reports whether a genome with this name is indexed.
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.ordinals[name]
	return ok
}

// FindFragment runs a fragment query against this engine's genomes.
func (e *Engine) FindFragment(fragment string, minLength int, exactOnly bool) []Hit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	matches, ok := e.matcher.FindFragment(fragment, minLength, exactOnly)
	if !ok {
		return nil
	}
	hits := make([]Hit, len(matches))
	for i, dm := range matches {
		hits[i] = Hit{DNAMatch: dm, Ordinal: e.ordinals[dm.GenomeName]}
	}
	return hits
}

// FindRelated runs a relatedness query against this engine's genomes.
func (e *Engine) FindRelated(query string, windowLength int, exactOnly bool, threshold float64) []matcher.GenomeMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	matches, ok := e.matcher.FindRelated(query, windowLength, exactOnly, threshold)
	if !ok {
		return nil
	}
	return matches
}

// MinSearchLength returns the seed length the engine indexes with.
func (e *Engine) MinSearchLength() int {
	return e.cfg.MinSearchLength
}

// Genomes returns the indexed genomes in the order they were added.
func (e *Engine) Genomes() []genome.Genome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher.Genomes()
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Genomes: len(e.ordinals),
		Bases:   e.bases,
		Seeds:   e.matcher.Seeds(),
		Nodes:   e.matcher.Nodes(),
	}
}

// Reset drops every genome and starts from an empty index.
func (e *Engine) Reset() error {
	m, err := newMatcher(e.cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher = m
	e.ordinals = make(map[string]int64)
	e.bases = 0
	e.logger.Info("index reset")
	return nil
}
