// Package fingerprint provides the content-addressed hashing and lookup
// that make re-indexing incremental. A chunk's fingerprint is the SHA-256
// digest of its code; together with file path and start line it keys the
// lookup against previously stored chunks, so unchanged code at the same
// position is never re-embedded. A per-run cache extends the same dedup
// across files during a full-corpus re-index.
package fingerprint
