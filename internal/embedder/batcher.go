package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/retry"
	"github.com/codelens/codelens/pkg/types"
)

// StatusToggler flips a long-running-work indicator on and off around a
// batch run. The process supervisor implements it.
type StatusToggler interface {
	SetIndexing(on bool)
}

// BatcherConfig controls batch sizing and parallelism.
type BatcherConfig struct {
	BatchSize   int
	Parallelism int
	Retry       retry.Config
}

// DefaultBatcherConfig returns production batching defaults.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:   DefaultBatchSize,
		Parallelism: 4,
		Retry: retry.Exponential(MaxRetries,
			InitialBackoffMs*time.Millisecond,
			MaxBackoffMs*time.Millisecond),
	}
}

// Batcher embeds chunks in bounded-parallel batches. Duplicate texts are
// embedded once per run, and each batch retries independently so one
// transient failure does not rerun the whole set.
type Batcher struct {
	emb    Embedder
	cfg    BatcherConfig
	status StatusToggler
	logger *slog.Logger
}

// NewBatcher creates a batch orchestrator over the given embedder. status
// may be nil when no supervisor is involved.
func NewBatcher(emb Embedder, cfg BatcherConfig, status StatusToggler, logger *slog.Logger) *Batcher {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultBatcherConfig().Retry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{emb: emb, cfg: cfg, status: status, logger: logger}
}

// EmbedChunks fills the Embedding field of every chunk, reusing vectors
// from the run cache for texts already embedded earlier in the same run.
// On error no partial assignment is visible to the caller's store; chunks
// already assigned in-memory are simply discarded with the batch.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []*types.Chunk, run *fingerprint.RunCache) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	if b.status != nil {
		b.status.SetIndexing(true)
		defer b.status.SetIndexing(false)
	}

	// Deduplicate texts within the run. byText maps a text to every chunk
	// that needs its vector.
	byText := make(map[string][]*types.Chunk)
	var unique []string
	embedded := 0
	for _, ch := range chunks {
		if ch.Embedding != nil {
			continue
		}
		text := ch.EmbedText()
		if run != nil {
			if vec, ok := run.Lookup(ch.Fingerprint); ok {
				ch.Embedding = vec
				embedded++
				continue
			}
		}
		if _, seen := byText[text]; !seen {
			unique = append(unique, text)
		}
		byText[text] = append(byText[text], ch)
	}
	if len(unique) == 0 {
		return embedded, nil
	}

	vectors := make([][]float32, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Parallelism)
	for start := 0; start < len(unique); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(unique))
		batch := unique[start:end]
		offset := start
		g.Go(func() error {
			got, err := retry.Do(gctx, b.cfg.Retry, func() ([][]float32, error) {
				return b.emb.EmbedBatch(gctx, batch)
			})
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", offset, err)
			}
			if len(got) != len(batch) {
				return fmt.Errorf("%w: batch at %d", ErrCountMismatch, offset)
			}
			copy(vectors[offset:end], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return embedded, err
	}

	for i, text := range unique {
		for _, ch := range byText[text] {
			ch.Embedding = vectors[i]
			embedded++
			if run != nil {
				run.Store(ch.Fingerprint, vectors[i])
			}
		}
	}

	b.logger.Debug("embedded chunk batch",
		"chunks", len(chunks),
		"unique_texts", len(unique),
		"embedded", embedded)
	return embedded, nil
}
