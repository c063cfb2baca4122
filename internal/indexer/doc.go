// Package indexer drives the indexing pipeline end to end: walk the
// workspace, build each file's structure tree, select chunks, reuse
// fingerprinted embeddings, batch-embed the remainder, and replace the
// file's chunks in the corpus store atomically. Concurrent runs over the
// same file resolve last-write-wins via per-file generation counters.
package indexer
