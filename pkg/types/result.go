package types

// SearchResult pairs a corpus chunk with its relevance score for a query.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"` // 1-based position in the result set
}

// Validate checks if the search result is well-formed.
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Score < -1 || sr.Score > 1 {
		return ErrInvalidScore
	}
	return sr.Chunk.Validate()
}
