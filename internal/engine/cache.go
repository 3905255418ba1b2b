package engine

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/entityscan/pkg/types"
)

// DefaultCacheSize is the number of chunk results kept when caching is enabled
const DefaultCacheSize = 1024

// CachedEngine remembers results for identical texts within one process.
// Concurrent calls for the same text share a single engine invocation.
type CachedEngine struct {
	engine  Engine
	cache   *lru.Cache[string, []types.RawSpan]
	sfGroup singleflight.Group
	logger  *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats holds cache statistics
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Items  int    `json:"items"`
}

// NewCachedEngine wraps engine with an LRU cache of size entries
func NewCachedEngine(engine Engine, size int, logger *zap.Logger) *CachedEngine {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, []types.RawSpan](size)
	if err != nil {
		// Only fails for non-positive sizes
		cache, _ = lru.New[string, []types.RawSpan](DefaultCacheSize)
	}
	return &CachedEngine{
		engine: engine,
		cache:  cache,
		logger: logger,
	}
}

func (c *CachedEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	key := c.cacheKey(text)

	if spans, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		c.logger.Debug("engine cache hit", zap.Int("bytes", len(text)))
		return cloneSpans(spans), nil
	}

	// The shared call outlives any single caller; each caller stops waiting
	// when its own context ends.
	shareCtx := context.WithoutCancel(ctx)
	ch := c.sfGroup.DoChan(key, func() (any, error) {
		c.misses.Add(1)
		spans, err := c.engine.Process(shareCtx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, spans)
		return spans, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("engine call shared with concurrent request")
		}
		return cloneSpans(res.Val.([]types.RawSpan)), nil
	}
}

// cacheKey hashes engine name and text
func (c *CachedEngine) cacheKey(text string) string {
	h := xxhash.New()
	_, _ = h.WriteString(c.engine.Name())
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(text)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// Stats returns cache statistics
func (c *CachedEngine) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Items:  c.cache.Len(),
	}
}

// CacheStatsOf returns the statistics of the result cache inside eng, looking
// through wrappers. ok is false when eng has no cache.
func CacheStatsOf(eng Engine) (stats CacheStats, ok bool) {
	for eng != nil {
		switch e := eng.(type) {
		case *CachedEngine:
			return e.Stats(), true
		case interface{ Unwrap() Engine }:
			eng = e.Unwrap()
		default:
			return CacheStats{}, false
		}
	}
	return CacheStats{}, false
}

func (c *CachedEngine) MaxInputLength() int {
	return c.engine.MaxInputLength()
}

func (c *CachedEngine) Name() string {
	return c.engine.Name()
}

func (c *CachedEngine) Close() error {
	c.cache.Purge()
	return c.engine.Close()
}

// cloneSpans copies spans so callers cannot modify cached values
func cloneSpans(spans []types.RawSpan) []types.RawSpan {
	if spans == nil {
		return nil
	}
	out := make([]types.RawSpan, len(spans))
	copy(out, spans)
	return out
}
