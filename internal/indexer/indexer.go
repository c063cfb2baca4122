package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/patterns"
	"github.com/codelens/codelens/internal/provider"
	"github.com/codelens/codelens/internal/selector"
	"github.com/codelens/codelens/pkg/types"
)

// maxFileBytes guards against accidentally indexing generated blobs.
const maxFileBytes = 2 << 20

// skipDirs are directory names never descended into.
var skipDirs = map[string]struct{}{
	"vendor":       {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
}

// Options controls one indexing run.
type Options struct {
	Workers        int
	ExcludePattern string

	// ForceAll re-embeds every chunk, ignoring fingerprint reuse.
	ForceAll bool
}

// Statistics summarizes an indexing run.
type Statistics struct {
	FilesIndexed   int
	FilesFailed    int
	ChunksSelected int
	ChunksEmbedded int
	ChunksReused   int
	Duration       time.Duration
	ErrorMessages  []string
}

// Indexer coordinates the pipeline: structure tree, chunk selection,
// fingerprint reuse, batch embedding, corpus replacement.
type Indexer struct {
	registry *provider.Registry
	selector *selector.Selector
	cache    *fingerprint.Cache
	batcher  *embedder.Batcher
	store    corpus.Store
	logger   *slog.Logger

	// generations implements last-write-wins per file: a slower run
	// discovers it was superseded before touching the store. fileLocks
	// makes the generation check and the store write one critical section,
	// so a stale run can never land after the run that superseded it.
	mu          sync.Mutex
	generations map[string]uint64
	fileLocks   map[string]*sync.Mutex
}

// New creates an indexer over the given pipeline stages.
func New(registry *provider.Registry, sel *selector.Selector, cache *fingerprint.Cache,
	batcher *embedder.Batcher, store corpus.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		registry:    registry,
		selector:    sel,
		cache:       cache,
		batcher:     batcher,
		store:       store,
		logger:      logger,
		generations: make(map[string]uint64),
		fileLocks:   make(map[string]*sync.Mutex),
	}
}

// IndexWorkspace indexes every supported file under root. File failures
// are isolated: one broken file never aborts its siblings.
func (idx *Indexer) IndexWorkspace(ctx context.Context, root string, opts Options) (*Statistics, error) {
	start := time.Now()
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	files, err := idx.discoverFiles(root, opts.ExcludePattern)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	stats := &Statistics{}
	run := fingerprint.NewRunCache()

	var (
		indexed, failed, selected, embedded, reused int64
		errMu                                       sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, filePath := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fs, err := idx.IndexFile(gctx, filePath, run, opts.ForceAll)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				errMu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
				errMu.Unlock()
				idx.logger.Warn("file indexing failed", "file", filePath, "error", err)
				return nil
			}
			atomic.AddInt64(&indexed, 1)
			atomic.AddInt64(&selected, int64(fs.Selected))
			atomic.AddInt64(&embedded, int64(fs.Embedded))
			atomic.AddInt64(&reused, int64(fs.Reused))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesFailed = int(failed)
	stats.ChunksSelected = int(selected)
	stats.ChunksEmbedded = int(embedded)
	stats.ChunksReused = int(reused)
	stats.Duration = time.Since(start)

	idx.logger.Info("workspace indexed",
		"root", root,
		"files", stats.FilesIndexed,
		"failed", stats.FilesFailed,
		"chunks", stats.ChunksSelected,
		"embedded", stats.ChunksEmbedded,
		"reused", stats.ChunksReused,
		"duration", stats.Duration)
	return stats, nil
}

// FileStats summarizes a single file's pass through the pipeline.
type FileStats struct {
	Selected int
	Embedded int
	Reused   int
}

// IndexFile runs the full pipeline for one file. When a newer run for the
// same file starts before this one stores its chunks, this run's output is
// discarded and the newer run wins.
func (idx *Indexer) IndexFile(ctx context.Context, filePath string, run *fingerprint.RunCache, forceAll bool) (FileStats, error) {
	var fs FileStats

	p := idx.registry.ForFile(filePath)
	if p == nil {
		return fs, nil
	}

	gen := idx.beginGeneration(filePath)

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fs, fmt.Errorf("read: %w", err)
	}
	doc := string(content)

	tree, err := p.Symbols(filePath, content)
	if err != nil {
		return fs, fmt.Errorf("symbols: %w", err)
	}

	chunks := idx.selector.Select(filePath, tree, doc)
	fs.Selected = len(chunks)

	var pending []*types.Chunk
	if forceAll {
		for i := range chunks {
			chunks[i].Embedding = nil
			pending = append(pending, &chunks[i])
		}
	} else {
		filtered, reusedCount, err := idx.cache.Filter(ctx, filePath, chunks)
		if err != nil {
			return fs, fmt.Errorf("fingerprint filter: %w", err)
		}
		pending = filtered
		fs.Reused = reusedCount
	}

	if len(pending) > 0 {
		n, err := idx.batcher.EmbedChunks(ctx, pending, run)
		if err != nil {
			return fs, fmt.Errorf("embed: %w", err)
		}
		fs.Embedded = n
	}

	lock := idx.fileLock(filePath)
	lock.Lock()
	defer lock.Unlock()
	if !idx.currentGeneration(filePath, gen) {
		idx.logger.Debug("indexing superseded", "file", filePath)
		return fs, nil
	}
	if err := idx.store.ReplaceFileChunks(ctx, filePath, chunks); err != nil {
		return fs, fmt.Errorf("store: %w", err)
	}
	return fs, nil
}

// RemoveFile drops a deleted file's chunks from the corpus.
func (idx *Indexer) RemoveFile(ctx context.Context, filePath string) error {
	lock := idx.fileLock(filePath)
	lock.Lock()
	defer lock.Unlock()
	idx.beginGeneration(filePath)
	return idx.store.DeleteFile(ctx, filePath)
}

// fileLock returns the mutex serializing store writes for one file.
func (idx *Indexer) fileLock(filePath string) *sync.Mutex {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	l, ok := idx.fileLocks[filePath]
	if !ok {
		l = &sync.Mutex{}
		idx.fileLocks[filePath] = l
	}
	return l
}

func (idx *Indexer) beginGeneration(filePath string) uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.generations[filePath]++
	return idx.generations[filePath]
}

func (idx *Indexer) currentGeneration(filePath string, gen uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.generations[filePath] == gen
}

// discoverFiles walks root collecting files any provider claims, skipping
// hidden and dependency directories plus anything the exclude patterns
// match.
func (idx *Indexer) discoverFiles(root string, excludePattern string) ([]string, error) {
	exclude := patterns.Compile(excludePattern)
	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if idx.registry.ForFile(path) == nil {
			return nil
		}
		if exclude.Match(path) {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > maxFileBytes {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
