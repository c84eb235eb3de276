package embed

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps an Embedder with LRU caching.
//
// The cache is keyed by FNV-1a hash of the input text, providing:
//   - Exact match caching (same text = same embedding)
//   - Efficient lookup (O(1) for cache hits)
//   - Bounded memory usage (LRU eviction)
//   - Fast hashing (FNV-1a is non-cryptographic but fast)
//
// Thread-safe: all methods can be called from multiple goroutines, since
// the underlying hashicorp/golang-lru/v2 cache is internally synchronized.
type CachedEmbedder struct {
	base    Embedder
	cache   *lru.Cache[string, []float32]
	maxSize int

	hits   uint64
	misses uint64
}

// NewCachedEmbedder wraps an existing embedder with LRU caching.
//
// maxSize bounds the number of distinct texts cached (0 = 10000 default).
func NewCachedEmbedder(base Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 10000 // Default: 10K embeddings (~40MB for 1024-dim)
	}

	cache, _ := lru.New[string, []float32](maxSize) // only errors on size<=0, already guarded
	return &CachedEmbedder{
		base:    base,
		cache:   cache,
		maxSize: maxSize,
	}
}

// hashText creates a cache key from text content using FNV-1a.
func hashText(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 36)
}

// Embed generates or retrieves a cached embedding for the text.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embedCached(ctx, hashText(text), text, c.base.Embed)
}

// embedCached is the shared cache-then-compute path for Embed and
// EmbedQuery; they differ only in which underlying method computes a miss
// and what key prefix (if any) isolates their cache entries.
func (c *CachedEmbedder) embedCached(ctx context.Context, key, text string, compute func(context.Context, string) ([]float32, error)) ([]float32, error) {
	if embedding, ok := c.cache.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return embedding, nil
	}
	atomic.AddUint64(&c.misses, 1)

	embedding, err := compute(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, embedding)
	return embedding, nil
}

// EmbedQuery generates or retrieves a cached query embedding. Cached under a
// distinct key from Embed since EmbedQuery may apply a different prefix.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := "q:" + hashText(text)
	return c.embedCached(ctx, key, text, c.base.EmbedQuery)
}

// EmbedBatch generates embeddings for multiple texts with caching.
//
// Each text is checked against the cache individually. Only cache misses
// are sent to the underlying embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var misses []int
	var missTexts []string

	for i, text := range texts {
		if embedding, ok := c.cache.Get(hashText(text)); ok {
			results[i] = embedding
			atomic.AddUint64(&c.hits, 1)
			continue
		}
		atomic.AddUint64(&c.misses, 1)
		misses = append(misses, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		embeddings, err := c.base.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}

		for j, embedding := range embeddings {
			i := misses[j]
			results[i] = embedding
			c.cache.Add(hashText(missTexts[j]), embedding)
		}
	}

	return results, nil
}

// Dimensions returns the embedding vector dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.base.Dimensions()
}

// Model returns the model name.
func (c *CachedEmbedder) Model() string {
	return c.base.Model()
}

// Stats returns cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return CacheStats{
		Size:    c.cache.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// CacheStats holds cache performance statistics.
type CacheStats struct {
	Size    int     `json:"size"`     // Current number of cached embeddings
	MaxSize int     `json:"max_size"` // Maximum cache capacity
	Hits    uint64  `json:"hits"`     // Number of cache hits
	Misses  uint64  `json:"misses"`   // Number of cache misses
	HitRate float64 `json:"hit_rate"` // Hit rate percentage (0-100)
}

// Clear removes all cached embeddings.
func (c *CachedEmbedder) Clear() {
	c.cache.Purge()
}
