// Package cache stores query results in Redis. Concurrent identical queries
// are collapsed with singleflight, and the whole cache is dropped whenever a
// genome is indexed since any new genome can change any result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/redis"
)

const keyPrefix = "genome:"

// Backend is the key-value store behind the cache. *redis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats reports cache effectiveness since start.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

// Partial is implemented by results that may be incomplete. A partial
// result is returned to the caller but never stored.
type Partial interface {
	Partial() bool
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     cfg.CacheTTL,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key hashes a canonical query string into a cache key.
func Key(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached value for key, or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The boolean reports a cache hit. A nil cache always computes. Values
// implementing Partial are stored only when Partial reports false.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	if v, ok := get[T](ctx, c, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := get[T](ctx, c, key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return v, err
		}
		if p, ok := any(v).(Partial); ok && p.Partial() {
			c.logger.Debug("partial result not cached", "key", key)
			return v, nil
		}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

func get[T any](ctx context.Context, c *QueryCache, key string) (T, bool) {
	var v T
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return v, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return v, true
}

func (c *QueryCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes every cached result and returns the number removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Total: hits + misses}
	if s.Total > 0 {
		s.HitRate = float64(hits) / float64(s.Total) * 100
	}
	return s
}
