package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyBatch     = errors.New("no texts provided")
	ErrBatchTooLarge  = errors.New("batch size exceeds limit")
	ErrProviderFailed = errors.New("embedding provider failed")
	ErrCountMismatch  = errors.New("provider returned wrong embedding count")
)

// Provider names and batching limits.
const (
	ProviderService = "service" // supervised local inference process
	ProviderOpenAI  = "openai"

	DefaultBatchSize = 32
	MaxBatchSize     = 100

	// Retry configuration for batch calls.
	MaxRetries       = 3
	InitialBackoffMs = 100
	MaxBackoffMs     = 5000

	// DefaultCallTimeout bounds one embed call; it is shorter than any
	// whole-operation timeout so batch retries get a chance to run.
	DefaultCallTimeout = 15 * time.Second
)

// Embedder turns text into fixed-length vectors. Implementations batch
// where their transport allows it and must return one vector per input in
// the same order.
type Embedder interface {
	// EmbedBatch embeds up to MaxBatchSize texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Provider returns the provider name.
	Provider() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache is an in-memory LRU of embeddings keyed by content hash, shared by
// providers so repeated content never leaves the process twice.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector with automatic LRU eviction.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ContentHash computes the SHA-256 cache key for a text.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateBatch rejects empty or oversized batches before any network
// traffic.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyBatch
	}
	if len(texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	return nil
}

// cachedBatch partitions a batch into cache hits (filled into out) and the
// texts still needing a provider call.
func cachedBatch(cache *Cache, texts []string, out [][]float32) (missing []string, missingIdx []int) {
	for i, text := range texts {
		if cache != nil {
			if vec, ok := cache.Get(ContentHash(text)); ok {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	return missing, missingIdx
}

// fillCache stores freshly computed vectors.
func fillCache(cache *Cache, texts []string, vectors [][]float32) {
	if cache == nil {
		return
	}
	for i, text := range texts {
		cache.Set(ContentHash(text), vectors[i])
	}
}
