package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/pkg/types"
)

// remoteSearchRequest is the inference service's search wire format.
type remoteSearchRequest struct {
	Query               string  `json:"query"`
	MaxResults          int     `json:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	InclusionPattern    string  `json:"inclusion_pattern,omitempty"`
	ExclusionPattern    string  `json:"exclusion_pattern,omitempty"`
}

type remoteSearchResponse struct {
	Results []remoteResult `json:"results"`
}

type remoteResult struct {
	FilePath  string  `json:"filePath"`
	StartLine int     `json:"lineStart"`
	EndLine   int     `json:"lineEnd"`
	Code      string  `json:"code"`
	Context   string  `json:"context,omitempty"`
	Score     float64 `json:"score"`
}

// RemoteBackend delegates the whole search, embedding included, to the
// supervised inference service. It is used when the service maintains its
// own index via bulk embedding updates.
type RemoteBackend struct {
	sup         embedder.ServiceStarter
	httpc       *http.Client
	callTimeout time.Duration
}

// NewRemoteBackend creates a backend over the supervised service.
func NewRemoteBackend(sup embedder.ServiceStarter) *RemoteBackend {
	return &RemoteBackend{
		sup:         sup,
		httpc:       &http.Client{},
		callTimeout: 30 * time.Second,
	}
}

// Search posts the query to the service and converts its results.
func (b *RemoteBackend) Search(ctx context.Context, req Request) ([]types.SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search: query cannot be empty")
	}
	req.normalize()

	addr, err := b.sup.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding service unavailable: %w", err)
	}

	body, err := json.Marshal(remoteSearchRequest{
		Query:               req.Query,
		MaxResults:          req.MaxResults,
		SimilarityThreshold: req.Threshold,
		InclusionPattern:    req.IncludePattern,
		ExclusionPattern:    req.ExcludePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		"http://"+addr+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, msg)
	}

	var parsed remoteSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		results = append(results, types.SearchResult{
			Chunk: types.Chunk{
				FilePath:  r.FilePath,
				StartLine: r.StartLine,
				EndLine:   r.EndLine,
				Code:      r.Code,
				Context:   r.Context,
			},
			Score: r.Score,
			Rank:  i + 1,
		})
	}
	return results, nil
}
