// Package types defines the shared data model for the indexing and
// retrieval pipeline: symbol tree nodes supplied by structure providers,
// the Chunk record that flows from the selector through the fingerprint
// cache and batch orchestrator into the corpus store, and the SearchResult
// returned by the search engine.
//
// Types here have no dependencies on other packages in this module, so any
// layer can exchange them without import cycles.
package types
