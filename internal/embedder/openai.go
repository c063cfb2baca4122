package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder embeds text via the OpenAI embeddings API. It is used
// when an API key is present in the environment, matching the inference
// service's own remote fallback.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	cache  *Cache
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder.
func NewOpenAIEmbedder(apiKey, model string, cache *Cache) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		cache:  cache,
	}, nil
}

// Provider returns the provider name.
func (e *OpenAIEmbedder) Provider() string {
	return ProviderOpenAI
}

// EmbedBatch embeds texts in a single API call, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	missing, missingIdx := cachedBatch(e.cache, texts, out)
	if len(missing) == 0 {
		return out, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: missing,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderFailed, err)
	}
	if len(resp.Data) != len(missing) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings",
			ErrCountMismatch, len(missing), len(resp.Data))
	}

	vectors := make([][]float32, len(missing))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	fillCache(e.cache, missing, vectors)
	for i, idx := range missingIdx {
		out[idx] = vectors[i]
	}
	return out, nil
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Close releases resources. The OpenAI client holds none.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
