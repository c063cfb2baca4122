// Package search ranks indexed chunks against natural-language queries.
//
// Ranking is cosine similarity with an absolute threshold, a relative
// relevance window below the top hit, a density filter for minified text,
// and first-wins deduplication by (filePath, fingerprint). Stores with
// native vector search are delegated to; everything else is scored in
// process.
package search
