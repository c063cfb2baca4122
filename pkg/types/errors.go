package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrInvalidScore = errors.New("score must be a cosine similarity in [-1, 1]")
)
