// Package embedder converts code chunks into dense vectors.
//
// Two providers are available: a supervised local inference process
// reached over HTTP, and the OpenAI embeddings API when an API key is
// present. Both share an LRU content cache, and the Batcher drives
// bounded-parallel batch calls with per-batch retry for bulk indexing.
package embedder
