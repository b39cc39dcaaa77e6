// Package cache holds retrieve results in Redis so repeated queries skip
// ranking and passage extraction. The cache is strictly optional: every
// caller must work with a nil *ResultCache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/groundbot/retrieval/internal/indexer/tokenizer"
	"github.com/groundbot/retrieval/internal/searcher"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/logger"
	pkgredis "github.com/groundbot/retrieval/pkg/redis"
)

const keyPrefix = "retrieve:"

// ResultCache caches serialized passage lists keyed by the normalized
// query and every parameter that affects the result. Concurrent misses for
// the same key are collapsed through singleflight so the retriever runs
// once.
type ResultCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time hit/miss snapshot.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// New builds a result cache over an established Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *ResultCache {
	return &ResultCache{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("result_cache"),
	}
}

// Key derives the cache key. The query is tokenized, sorted, and rejoined
// so that queries differing only in case, punctuation, or term order share
// an entry; k, filters, and the rerank flag are folded in because each
// changes the result set.
func Key(query string, k int, filters *searcher.Filters, rerank bool) string {
	terms := tokenizer.Tokenize(query)
	sort.Strings(terms)

	var fpart string
	if filters != nil {
		if b, err := json.Marshal(filters); err == nil {
			fpart = string(b)
		}
	}
	raw := fmt.Sprintf("%s|%d|%s|%t", strings.Join(terms, " "), k, fpart, rerank)
	sum := sha256.Sum256([]byte(raw))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached passages for key, or ok=false on a miss. Redis
// errors are logged and treated as misses.
func (c *ResultCache) Get(ctx context.Context, key string) ([]searcher.Passage, bool) {
	val, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var passages []searcher.Passage
	if err := json.Unmarshal([]byte(val), &passages); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return passages, true
}

// Set stores passages under key with the configured TTL. Failures are
// logged, never returned: a broken cache must not break retrieval.
func (c *ResultCache) Set(ctx context.Context, key string, passages []searcher.Passage) {
	data, err := json.Marshal(passages)
	if err != nil {
		c.logger.Warn("cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, string(data), c.cfg.CacheTTL); err != nil {
		c.logger.Warn("cache set failed", "error", err)
	}
}

// GetOrCompute returns the cached result for key or runs compute exactly
// once for concurrent callers, caching its result. The bool reports
// whether the value came from the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute func() []searcher.Passage) ([]searcher.Passage, bool) {
	if passages, ok := c.Get(ctx, key); ok {
		return passages, true
	}
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		passages := compute()
		c.Set(ctx, key, passages)
		return passages, nil
	})
	return v.([]searcher.Passage), false
}

// Invalidate deletes every cached retrieve result. Called after any index
// mutation, since stale passages are worse than a cold cache.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	n, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return n, fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("result cache invalidated", "keys", n)
	return n, nil
}

// CacheStats returns the in-process hit/miss counters.
func (c *ResultCache) CacheStats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
