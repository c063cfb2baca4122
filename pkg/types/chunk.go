package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Chunk is a contiguous code region selected for embedding. A chunk is
// identified within the corpus by its (FilePath, Fingerprint) pair; the
// embedding is only present once the chunk has passed through the batch
// orchestrator or been reused from the fingerprint cache.
type Chunk struct {
	FilePath  string `json:"filePath"`
	StartLine int    `json:"lineStart"` // 1-based, inclusive
	EndLine   int    `json:"lineEnd"`   // 1-based, inclusive

	Code    string `json:"code"`
	Context string `json:"context,omitempty"` // ancestor chain + nearby comments

	Fingerprint string `json:"fingerprint"` // SHA-256 hex of Code

	Kind SymbolKind `json:"kind,omitempty"`
	Name string     `json:"name,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// ChunkKey is the composite key a chunk is stored and deduplicated under.
type ChunkKey struct {
	FilePath    string
	Fingerprint string
}

// Key returns the chunk's corpus key.
func (c *Chunk) Key() ChunkKey {
	return ChunkKey{FilePath: c.FilePath, Fingerprint: c.Fingerprint}
}

// ComputeFingerprint computes and stores the SHA-256 hex digest of the
// chunk's code.
func (c *Chunk) ComputeFingerprint() string {
	h := sha256.Sum256([]byte(c.Code))
	c.Fingerprint = hex.EncodeToString(h[:])
	return c.Fingerprint
}

// EmbedText is the string sent to the embedding service: the context chain
// prepended to the code so the vector captures where the code lives, not
// just what it says.
func (c *Chunk) EmbedText() string {
	if c.Context == "" {
		return c.Code
	}
	return c.Context + "\n" + c.Code
}

// LineCount returns the number of lines the chunk spans.
func (c *Chunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// Validate checks structural invariants before a chunk enters the corpus.
func (c *Chunk) Validate() error {
	if c.Code == "" {
		return errors.New("chunk code cannot be empty")
	}
	if c.FilePath == "" {
		return errors.New("chunk file path is required")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if c.Fingerprint == "" {
		return errors.New("fingerprint must be computed")
	}
	return nil
}

// Overlap returns the number of lines shared by two inclusive line ranges.
func Overlap(aStart, aEnd, bStart, bEnd int) int {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}
