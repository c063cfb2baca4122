// Package corpus stores the full set of indexed chunks across the
// workspace, keyed by (filePath, fingerprint).
//
// Three backends share the Store interface: an in-memory store with
// optional JSON snapshot persistence (a corrupt or out-of-date snapshot
// loads as empty and triggers a full re-index), a SQLite store with the
// driver chosen at build time, and a Qdrant store that additionally
// implements VectorSearcher so similarity ranking is pushed down to the
// database.
//
// All backends replace a file's chunk subset atomically; concurrent
// searches see either the old or the new subset, never a partial mix.
package corpus
