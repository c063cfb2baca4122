package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/codelens/codelens/pkg/types"
)

// snapshotVersion guards the on-disk format. A snapshot with a different
// version loads as empty, which triggers a full re-index instead of a
// fatal error.
const snapshotVersion = 1

// MemoryStore keeps the corpus in memory behind an RW lock and optionally
// persists it as a single JSON snapshot file keyed by file path. Searches
// are read-only and may run concurrently with a file replacement.
type MemoryStore struct {
	mu           sync.RWMutex
	byFile       map[string][]types.Chunk
	snapshotPath string // empty disables persistence
}

// snapshot is the serialized form of the corpus: a full snapshot, not an
// append log.
type snapshot struct {
	Version int                      `json:"version"`
	Files   map[string][]types.Chunk `json:"files"`
}

// NewMemoryStore creates an empty in-memory store without persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byFile: make(map[string][]types.Chunk)}
}

// OpenSnapshotStore creates a memory store backed by a snapshot file,
// loading existing contents. A missing, corrupt, or out-of-date snapshot is
// treated as an empty corpus.
func OpenSnapshotStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{
		byFile:       make(map[string][]types.Chunk),
		snapshotPath: path,
	}
	if err := s.load(); err != nil {
		slog.Warn("corpus snapshot unreadable, starting empty", "path", path, "error", err)
	}
	return s, nil
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if snap.Files != nil {
		s.byFile = snap.Files
	}
	return nil
}

// persist writes the snapshot via a temp file rename so a crash mid-write
// leaves the previous snapshot intact. Caller must hold at least a read
// lock.
func (s *MemoryStore) persist() error {
	if s.snapshotPath == "" {
		return nil
	}
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Files: s.byFile})
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath)
}

// ReplaceFileChunks atomically swaps one file's chunk subset.
func (s *MemoryStore) ReplaceFileChunks(ctx context.Context, filePath string, chunks []types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunks) == 0 {
		delete(s.byFile, filePath)
	} else {
		s.byFile[filePath] = append([]types.Chunk(nil), chunks...)
	}
	return s.persist()
}

// ChunksForFile returns a copy of one file's chunk subset.
func (s *MemoryStore) ChunksForFile(ctx context.Context, filePath string) ([]types.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.byFile[filePath]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]types.Chunk(nil), chunks...), nil
}

// AllChunks returns a copy of the whole corpus.
func (s *MemoryStore) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Chunk
	for _, chunks := range s.byFile {
		out = append(out, chunks...)
	}
	return out, nil
}

// Files lists indexed file paths.
func (s *MemoryStore) Files(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	return files, nil
}

// DeleteFile removes one file's chunks.
func (s *MemoryStore) DeleteFile(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byFile, filePath)
	return s.persist()
}

// Count returns the total chunk count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, chunks := range s.byFile {
		n += len(chunks)
	}
	return n, nil
}

// Close persists a final snapshot.
func (s *MemoryStore) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist()
}
