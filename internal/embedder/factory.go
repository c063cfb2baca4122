package embedder

import (
	"log/slog"
	"os"
)

// Environment variables controlling provider selection. The API key is
// only ever read from the environment, never from flags.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvOpenAIModel = "CODELENS_OPENAI_MODEL"
)

// NewFromEnv selects an embedding provider from the environment. With an
// OpenAI key set, embeddings go straight to the API; otherwise a local
// inference process is supervised and used.
func NewFromEnv(sup ServiceStarter, cache *Cache, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		model := os.Getenv(EnvOpenAIModel)
		emb, err := NewOpenAIEmbedder(key, model, cache)
		if err != nil {
			return nil, err
		}
		logger.Info("using OpenAI embedding provider", "model", emb.model)
		return emb, nil
	}
	logger.Info("using supervised local embedding service")
	return NewServiceEmbedder(sup, cache), nil
}
