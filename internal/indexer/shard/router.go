// Package shard partitions the genome index. Each shard owns an independent
// indexer.Engine and genomes are assigned to shards by hashing their name.
package shard

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
)

// ShardFor returns the shard that owns the genome with this name.
func ShardFor(name string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(name) % uint64(numShards))
}

// Router maps shard IDs to dedicated indexer.Engine instances.
type Router struct {
	engines   map[int]*indexer.Engine
	mu        sync.RWMutex
	numShards int
	logger    *slog.Logger
}

// NewRouter creates cfg.NumShards engines sharing the same matcher settings.
func NewRouter(cfg config.IndexerConfig) (*Router, error) {
	if cfg.NumShards <= 0 {
		return nil, fmt.Errorf("invalid shard count %d", cfg.NumShards)
	}
	r := &Router{
		engines:   make(map[int]*indexer.Engine, cfg.NumShards),
		numShards: cfg.NumShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < cfg.NumShards; i++ {
		engine, err := indexer.NewEngine(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
	}
	r.logger.Info("shard router ready",
		"num_shards", cfg.NumShards,
		"min_search_length", cfg.MinSearchLength,
		"anchored_seed", cfg.AnchoredSeed,
		"legacy_stride", cfg.LegacyStride,
	)
	return r, nil
}

// ShardFor returns the shard that owns name under this router's shard count.
func (r *Router) ShardFor(name string) int {
	return ShardFor(name, r.numShards)
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return engine, nil
}

// AddGenome indexes g in the shard that owns its name and returns that
// shard's ID.
func (r *Router) AddGenome(ordinal int64, g genome.Genome) (int, error) {
	shardID := r.ShardFor(g.Name())
	engine, err := r.Route(shardID)
	if err != nil {
		return shardID, err
	}
	if err := engine.AddGenome(ordinal, g); err != nil {
		return shardID, fmt.Errorf("shard %d: %w", shardID, err)
	}
	return shardID, nil
}

// Has reports whether any shard holds a genome with this name.
func (r *Router) Has(name string) bool {
	engine, err := r.Route(r.ShardFor(name))
	return err == nil && engine.Has(name)
}

// GetAllEngines returns a snapshot map of all shard engines.
func (r *Router) GetAllEngines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return r.numShards
}

// Stats returns per-shard stats keyed by shard ID and their sum.
func (r *Router) Stats() (map[int]indexer.Stats, indexer.Stats) {
	perShard := make(map[int]indexer.Stats, r.numShards)
	var total indexer.Stats
	for id, engine := range r.GetAllEngines() {
		st := engine.Stats()
		perShard[id] = st
		total.Genomes += st.Genomes
		total.Bases += st.Bases
		total.Seeds += st.Seeds
		total.Nodes += st.Nodes
	}
	return perShard, total
}

// Reset empties every shard.
func (r *Router) Reset() error {
	for id, engine := range r.GetAllEngines() {
		if err := engine.Reset(); err != nil {
			return fmt.Errorf("resetting shard %d: %w", id, err)
		}
	}
	return nil
}
