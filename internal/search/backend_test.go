package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticEmbedder returns the same vector for every query.
type staticEmbedder struct {
	vec []float32
}

func (s *staticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return out, nil
}

func (s *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, nil
}

func (s *staticEmbedder) Provider() string { return "static" }
func (s *staticEmbedder) Close() error     { return nil }

func TestLocalBackend_EmbedsQueryThenRanks(t *testing.T) {
	store := populate(t,
		scoredChunk("a.go", "hit", 1, 0.9),
		scoredChunk("b.go", "miss", 1, 0.1),
	)
	b := NewLocalBackend(&staticEmbedder{vec: queryVec}, NewEngine(store))

	results, err := b.Search(context.Background(), Request{Query: "find the hit"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Chunk.Name)
}

func TestLocalBackend_EmptyQueryRejected(t *testing.T) {
	b := NewLocalBackend(&staticEmbedder{vec: queryVec}, NewEngine(populate(t)))

	_, err := b.Search(context.Background(), Request{})
	assert.Error(t, err)
}

func TestLocalBackend_ExplicitVectorSkipsEmbedding(t *testing.T) {
	store := populate(t, scoredChunk("a.go", "hit", 1, 0.9))
	// A nil embedder proves the vector path never embeds.
	b := NewLocalBackend(nil, NewEngine(store))

	results, err := b.Search(context.Background(), Request{QueryVector: queryVec})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
