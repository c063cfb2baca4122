package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/patterns"
	"github.com/codelens/codelens/pkg/types"
)

// Ranking defaults. The relevance window trims weak tail matches relative
// to the best hit, independent of the absolute threshold.
const (
	DefaultThreshold  = 0.2
	DefaultMaxResults = 10
	MaxResultsLimit   = 100

	// RelevanceWindow is the maximum score distance from the top result.
	RelevanceWindow = 0.08

	// denseLineCutoff is the non-whitespace characters-per-line density
	// above which a chunk is treated as minified and dropped.
	denseLineCutoff = 200.0
)

// Request carries one ranked-search invocation.
type Request struct {
	Query          string
	QueryVector    []float32
	MaxResults     int
	Threshold      float64
	IncludePattern string
	ExcludePattern string
}

// normalize applies defaults and caps in place.
func (r *Request) normalize() {
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.MaxResults > MaxResultsLimit {
		r.MaxResults = MaxResultsLimit
	}
	if r.Threshold <= 0 {
		r.Threshold = DefaultThreshold
	}
}

// Engine ranks a corpus against a query vector. When the store can rank
// natively it is asked directly; otherwise every candidate is scored in
// process.
type Engine struct {
	store corpus.Store
}

// NewEngine creates a search engine over a corpus store.
func NewEngine(store corpus.Store) *Engine {
	return &Engine{store: store}
}

// Search ranks the corpus against req.QueryVector. An empty corpus or a
// fully filtered one yields an empty slice, never an error.
func (e *Engine) Search(ctx context.Context, req Request) ([]types.SearchResult, error) {
	req.normalize()

	include := patterns.Compile(req.IncludePattern)
	exclude := patterns.Compile(req.ExcludePattern)

	candidates, err := e.score(ctx, req)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Score < req.Threshold {
			continue
		}
		if !include.Empty() && !include.Match(c.Chunk.FilePath) {
			continue
		}
		if exclude.Match(c.Chunk.FilePath) {
			continue
		}
		if isDense(c.Chunk.Code) {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return []types.SearchResult{}, nil
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	// Relative relevance window then first-wins dedup.
	floor := filtered[0].Score - RelevanceWindow
	seen := make(map[types.ChunkKey]struct{})
	results := make([]types.SearchResult, 0, req.MaxResults)
	for _, c := range filtered {
		if c.Score < floor {
			break
		}
		key := c.Chunk.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.Rank = len(results) + 1
		results = append(results, c)
		if len(results) == req.MaxResults {
			break
		}
	}
	return results, nil
}

// score produces unranked scored candidates, delegating to the store when
// it supports native vector search.
func (e *Engine) score(ctx context.Context, req Request) ([]types.SearchResult, error) {
	if vs, ok := e.store.(corpus.VectorSearcher); ok {
		// Over-fetch so windowing and dedup still have material after
		// pattern and density filtering.
		return vs.SearchVector(ctx, req.QueryVector, req.MaxResults*4)
	}

	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]types.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, types.SearchResult{
			Chunk: ch,
			Score: cosineSimilarity(req.QueryVector, ch.Embedding),
		})
	}
	return candidates, nil
}

// cosineSimilarity computes dot(a,b) / (|a|*|b|). Mismatched or zero
// vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// isDense reports whether code reads as minified: average non-whitespace
// characters per line above the cutoff.
func isDense(code string) bool {
	if code == "" {
		return false
	}
	lines := strings.Split(code, "\n")
	nonWS := 0
	for _, line := range lines {
		for _, r := range line {
			if r != ' ' && r != '\t' && r != '\r' {
				nonWS++
			}
		}
	}
	return float64(nonWS)/float64(len(lines)) > denseLineCutoff
}
