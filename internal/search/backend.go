package search

import (
	"context"
	"fmt"

	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/pkg/types"
)

// Backend answers ranked natural-language queries.
type Backend interface {
	Search(ctx context.Context, req Request) ([]types.SearchResult, error)
}

// LocalBackend embeds the query in process and ranks against the local
// corpus store.
type LocalBackend struct {
	emb    embedder.Embedder
	engine *Engine
}

// NewLocalBackend creates a backend over the given embedder and engine.
func NewLocalBackend(emb embedder.Embedder, engine *Engine) *LocalBackend {
	return &LocalBackend{emb: emb, engine: engine}
}

// Search embeds req.Query when no vector was supplied, then ranks.
func (b *LocalBackend) Search(ctx context.Context, req Request) ([]types.SearchResult, error) {
	if req.Query == "" && len(req.QueryVector) == 0 {
		return nil, fmt.Errorf("search: query cannot be empty")
	}
	if len(req.QueryVector) == 0 {
		vec, err := b.emb.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		req.QueryVector = vec
	}
	return b.engine.Search(ctx, req)
}
