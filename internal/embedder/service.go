package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServiceStarter is the slice of the process supervisor the embedder
// needs: bring the service up (idempotently) and tear it down.
type ServiceStarter interface {
	Start(ctx context.Context) (string, error)
	Stop() error
}

// embedRequest is the wire format for the inference service's embed
// endpoint.
type embedRequest struct {
	Codes []string `json:"codes"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type updateEmbeddingsRequest struct {
	Documents []ServiceDocument `json:"documents"`
}

// ServiceDocument is one document in a bulk update push to the inference
// service's own index.
type ServiceDocument struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ServiceEmbedder embeds text through a supervised local inference
// process. Every call ensures the process is running first; the supervisor
// makes concurrent starts collapse into one.
type ServiceEmbedder struct {
	sup         ServiceStarter
	httpc       *http.Client
	cache       *Cache
	callTimeout time.Duration
}

// NewServiceEmbedder creates an embedder backed by the given supervisor.
func NewServiceEmbedder(sup ServiceStarter, cache *Cache) *ServiceEmbedder {
	return &ServiceEmbedder{
		sup:         sup,
		httpc:       &http.Client{},
		cache:       cache,
		callTimeout: DefaultCallTimeout,
	}
}

// Provider returns the provider name.
func (e *ServiceEmbedder) Provider() string {
	return ProviderService
}

// EmbedBatch embeds texts via the service's batch endpoint, preserving
// input order. Cached texts are served locally and only misses hit the
// service.
func (e *ServiceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	missing, missingIdx := cachedBatch(e.cache, texts, out)
	if len(missing) == 0 {
		return out, nil
	}

	addr, err := e.sup.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding service unavailable: %w", err)
	}

	vectors, err := e.post(ctx, addr, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings",
			ErrCountMismatch, len(missing), len(vectors))
	}

	fillCache(e.cache, missing, vectors)
	for i, idx := range missingIdx {
		out[idx] = vectors[i]
	}
	return out, nil
}

// Embed embeds a single text.
func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// UpdateFileEmbeddings pushes pre-chunked documents to the service so it
// can refresh its own index for a file.
func (e *ServiceEmbedder) UpdateFileEmbeddings(ctx context.Context, docs []ServiceDocument) error {
	if len(docs) == 0 {
		return nil
	}
	addr, err := e.sup.Start(ctx)
	if err != nil {
		return fmt.Errorf("embedding service unavailable: %w", err)
	}

	body, err := json.Marshal(updateEmbeddingsRequest{Documents: docs})
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		"http://"+addr+"/update_file_embeddings", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: update returned %d: %s", ErrProviderFailed, resp.StatusCode, msg)
	}
	return nil
}

// Close stops the supervised process.
func (e *ServiceEmbedder) Close() error {
	return e.sup.Stop()
}

func (e *ServiceEmbedder) post(ctx context.Context, addr string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Codes: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		"http://"+addr+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: embed returned %d: %s", ErrProviderFailed, resp.StatusCode, msg)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return parsed.Embeddings, nil
}
