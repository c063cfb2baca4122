package corpus

import (
	"context"
	"errors"

	"github.com/codelens/codelens/pkg/types"
)

// Common errors
var (
	// ErrNotFound is returned when a file has no chunks in the store.
	ErrNotFound = errors.New("not found")
)

// Store holds the full set of indexed chunks across the workspace, keyed by
// (filePath, fingerprint). A file's chunk subset is always replaced as a
// unit; reads may run concurrently with a replacement and see either the
// old or the new subset, never a partial mix.
type Store interface {
	// ReplaceFileChunks atomically swaps the chunk subset for one file.
	// An empty slice removes the file from the corpus.
	ReplaceFileChunks(ctx context.Context, filePath string, chunks []types.Chunk) error

	// ChunksForFile returns the current chunk subset for one file.
	// Returns ErrNotFound when the file has never been indexed.
	ChunksForFile(ctx context.Context, filePath string) ([]types.Chunk, error)

	// AllChunks returns every chunk in the corpus.
	AllChunks(ctx context.Context) ([]types.Chunk, error)

	// Files lists the file paths currently present in the corpus.
	Files(ctx context.Context) ([]string, error)

	// DeleteFile removes a file's chunks, e.g. after persistent embedding
	// failure for that file.
	DeleteFile(ctx context.Context, filePath string) error

	// Count returns the total number of chunks stored.
	Count(ctx context.Context) (int, error)

	Close() error
}

// VectorSearcher is an optional Store capability: backends that can rank by
// vector similarity themselves (qdrant, sqlite with a vector extension)
// implement it so the search engine pushes scoring down instead of pulling
// the whole corpus into memory. Results come back sorted by descending
// score, without threshold/window/dedup applied.
type VectorSearcher interface {
	SearchVector(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error)
}
