package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/pkg/types"
)

// Fingerprint returns the stable content-addressed hash of a code region:
// the SHA-256 digest in hex.
func Fingerprint(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Cache implements the incremental re-index guarantee over the corpus
// store: unchanged code at the same position is never re-embedded.
type Cache struct {
	store corpus.Store
}

// New creates a Cache reading previous embeddings from the store.
func New(store corpus.Store) *Cache {
	return &Cache{store: store}
}

// Filter fills in embeddings for freshly selected chunks that match a
// stored chunk by (filePath, startLine, fingerprint), and returns pointers
// to the chunks still needing embedding. A chunk whose content moved lines
// is a deliberate miss: position is part of the key, and re-embedding
// identical content is idempotent and costs one request.
func (c *Cache) Filter(ctx context.Context, filePath string, fresh []types.Chunk) (pending []*types.Chunk, reused int, err error) {
	existing, err := c.store.ChunksForFile(ctx, filePath)
	if err != nil && !errors.Is(err, corpus.ErrNotFound) {
		return nil, 0, err
	}

	type posKey struct {
		startLine   int
		fingerprint string
	}
	prior := make(map[posKey][]float32, len(existing))
	for i := range existing {
		if len(existing[i].Embedding) == 0 {
			continue
		}
		prior[posKey{existing[i].StartLine, existing[i].Fingerprint}] = existing[i].Embedding
	}

	for i := range fresh {
		if vec, ok := prior[posKey{fresh[i].StartLine, fresh[i].Fingerprint}]; ok {
			fresh[i].Embedding = vec
			reused++
			continue
		}
		pending = append(pending, &fresh[i])
	}
	return pending, reused, nil
}

// RunCache is the per-run cross-file dedup set used during a full-corpus
// re-index: the first occurrence of a fingerprint is embedded, every later
// exact duplicate in the same run reuses its vector.
type RunCache struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

// NewRunCache creates an empty per-run dedup set.
func NewRunCache() *RunCache {
	return &RunCache{vectors: make(map[string][]float32)}
}

// Lookup returns the vector already computed for a fingerprint this run.
func (r *RunCache) Lookup(fp string) ([]float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.vectors[fp]
	return vec, ok
}

// Store records a fingerprint's vector for later duplicates.
func (r *RunCache) Store(fp string, vec []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectors[fp] = vec
}

// Size returns the number of distinct fingerprints seen this run.
func (r *RunCache) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.vectors)
}
