package integration

import (
	"context"
	"math"
	"sync/atomic"
)

// MockEmbedder produces deterministic unit vectors from a byte histogram of
// the input text. Identical texts always map to identical vectors, so exact
// matches score a cosine similarity of 1.0 without a real model.
type MockEmbedder struct {
	dim   int
	calls int32
}

// NewMockEmbedder creates a mock embedder with the given vector dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim}
}

// EmbedBatch embeds each text independently.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&m.calls, 1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

// Embed embeds a single text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Provider identifies the mock in status output.
func (m *MockEmbedder) Provider() string { return "mock" }

// Close is a no-op.
func (m *MockEmbedder) Close() error { return nil }

// Calls reports how many provider round-trips were made.
func (m *MockEmbedder) Calls() int32 {
	return atomic.LoadInt32(&m.calls)
}

// vector builds a normalized byte-frequency histogram.
func (m *MockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.dim)
	for i := 0; i < len(text); i++ {
		vec[int(text[i])%m.dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
