package embedder

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/retry"
	"github.com/codelens/codelens/pkg/types"
)

// vecFor derives a recognizable vector from a text so order mixups are
// detectable.
func vecFor(text string) []float32 {
	return []float32{float32(len(text)), float32(text[0])}
}

// mockEmbedder answers EmbedBatch positionally after an optional per-batch
// delay, so concurrent batches complete out of order.
type mockEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	calls   int32
	failFor int32 // fail this many leading calls
	delay   func(batch []string) time.Duration
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := atomic.AddInt32(&m.calls, 1)
	if m.failFor > 0 && n <= m.failFor {
		return nil, errors.New("transient embed failure")
	}
	if m.delay != nil {
		select {
		case <-time.After(m.delay(texts)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Close() error     { return nil }

func batchChunks(n int) []*types.Chunk {
	chunks := make([]*types.Chunk, n)
	for i := range chunks {
		c := &types.Chunk{
			FilePath:  "a.go",
			StartLine: i*10 + 1,
			EndLine:   i*10 + 8,
			Code:      "func f" + strconv.Itoa(i) + "() { " + strings.Repeat("x", i%7) + " }",
			Kind:      types.KindFunction,
			Name:      "f" + strconv.Itoa(i),
		}
		c.ComputeFingerprint()
		chunks[i] = c
	}
	return chunks
}

func testBatcherConfig(batchSize, parallelism int) BatcherConfig {
	return BatcherConfig{
		BatchSize:   batchSize,
		Parallelism: parallelism,
		Retry:       retry.Fixed(3, time.Millisecond),
	}
}

func TestEmbedChunks_AssignsEveryVector(t *testing.T) {
	mock := &mockEmbedder{}
	b := NewBatcher(mock, testBatcherConfig(4, 2), nil, nil)
	chunks := batchChunks(10)

	n, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	for _, c := range chunks {
		assert.Equal(t, vecFor(c.EmbedText()), c.Embedding, "chunk %s", c.Name)
	}
}

func TestEmbedChunks_OrderPreservedAcrossOutOfOrderBatches(t *testing.T) {
	// The first batch is the slowest, so later batches finish first. The
	// positional merge must still pair every chunk with its own vector.
	mock := &mockEmbedder{
		delay: func(batch []string) time.Duration {
			if strings.Contains(batch[0], "f0") {
				return 30 * time.Millisecond
			}
			return time.Millisecond
		},
	}
	b := NewBatcher(mock, testBatcherConfig(3, 4), nil, nil)
	chunks := batchChunks(12)

	_, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.Equal(t, vecFor(c.EmbedText()), c.Embedding, "chunk %s", c.Name)
	}
}

func TestEmbedChunks_BatchLevelRetry(t *testing.T) {
	mock := &mockEmbedder{failFor: 2}
	b := NewBatcher(mock, testBatcherConfig(32, 1), nil, nil)
	chunks := batchChunks(5)

	n, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&mock.calls), int32(3))
}

func TestEmbedChunks_RetriesExhaustedSurfacesError(t *testing.T) {
	mock := &mockEmbedder{failFor: 1000}
	b := NewBatcher(mock, testBatcherConfig(32, 1), nil, nil)

	_, err := b.EmbedChunks(context.Background(), batchChunks(3), nil)
	assert.Error(t, err)
}

func TestEmbedChunks_RunCacheDedupsAcrossCalls(t *testing.T) {
	mock := &mockEmbedder{}
	b := NewBatcher(mock, testBatcherConfig(32, 1), nil, nil)
	run := fingerprint.NewRunCache()

	first := batchChunks(4)
	_, err := b.EmbedChunks(context.Background(), first, run)
	require.NoError(t, err)
	callsAfterFirst := atomic.LoadInt32(&mock.calls)

	// A second file with identical content reuses every vector.
	second := batchChunks(4)
	for _, c := range second {
		c.FilePath = "b.go"
	}
	n, err := b.EmbedChunks(context.Background(), second, run)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&mock.calls))

	for i, c := range second {
		assert.Equal(t, first[i].Embedding, c.Embedding)
	}
}

func TestEmbedChunks_DuplicateTextsEmbeddedOnce(t *testing.T) {
	mock := &mockEmbedder{}
	b := NewBatcher(mock, testBatcherConfig(32, 1), nil, nil)

	a := &types.Chunk{FilePath: "a.go", StartLine: 1, EndLine: 5, Code: "func same() {}", Name: "same", Kind: types.KindFunction}
	a.ComputeFingerprint()
	dup := *a
	dup.StartLine, dup.EndLine = 20, 24

	chunks := []*types.Chunk{a, &dup}
	n, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	require.Len(t, mock.batches, 1)
	assert.Len(t, mock.batches[0], 1)
	assert.Equal(t, a.Embedding, dup.Embedding)
}

func TestEmbedChunks_SkipsAlreadyEmbedded(t *testing.T) {
	mock := &mockEmbedder{}
	b := NewBatcher(mock, testBatcherConfig(32, 1), nil, nil)

	chunks := batchChunks(2)
	chunks[0].Embedding = []float32{9, 9}

	n, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float32{9, 9}, chunks[0].Embedding)
}

func TestEmbedChunks_Empty(t *testing.T) {
	b := NewBatcher(&mockEmbedder{}, DefaultBatcherConfig(), nil, nil)
	n, err := b.EmbedChunks(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbedChunks_LargeSetSplitsBatches(t *testing.T) {
	mock := &mockEmbedder{}
	b := NewBatcher(mock, testBatcherConfig(8, 3), nil, nil)
	chunks := batchChunks(50)

	n, err := b.EmbedChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	total := 0
	for _, batch := range mock.batches {
		assert.LessOrEqual(t, len(batch), 8)
		total += len(batch)
	}
	assert.Equal(t, 50, total)
}
