package embedding

import (
	"context"
	"fmt"
	"os"
)

// Providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ModelInfo describes an embedding model the store knows how to use.
type ModelInfo struct {
	Provider string
	Dims     int
}

// Models maps a model id to its provider and vector width. The index schema
// is sized from this table, never from a literal.
var Models = map[string]ModelInfo{
	"nomic-embed-text":       {Provider: ProviderOllama, Dims: 768},
	"all-minilm":             {Provider: ProviderOllama, Dims: 384},
	"mxbai-embed-large":      {Provider: ProviderOllama, Dims: 1024},
	"text-embedding-3-small": {Provider: ProviderOpenAI, Dims: 1536},
	"text-embedding-3-large": {Provider: ProviderOpenAI, Dims: 3072},
}

// DefaultModel is the compiled-in model used when the provider is Ollama.
const DefaultModel = "nomic-embed-text"

// defaultModels picks the compiled-in model for each provider.
var defaultModels = map[string]string{
	ProviderOllama: DefaultModel,
	ProviderOpenAI: "text-embedding-3-small",
}

// Config selects and reaches an embedding provider.
type Config struct {
	Provider string // "ollama" (default) or "openai"
	URL      string // base URL override
	APIKey   string // openai only; falls back to $OPENAI_API_KEY
}

// ModelFor returns the compiled-in model id and its info for a provider.
func ModelFor(provider string) (string, ModelInfo, error) {
	if provider == "" {
		provider = ProviderOllama
	}
	model, ok := defaultModels[provider]
	if !ok {
		return "", ModelInfo{}, fmt.Errorf("unknown embedding provider %q", provider)
	}
	return model, Models[model], nil
}

// Pinger is implemented by embedders that can check their backend is up.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory returns a constructor for the configured provider. The constructor
// pings the backend when it can, so an unreachable provider fails
// initialization instead of the first embed.
func Factory(cfg Config) (func(ctx context.Context) (Embedder, error), int, error) {
	model, info, err := ModelFor(cfg.Provider)
	if err != nil {
		return nil, 0, err
	}
	build := func(ctx context.Context) (Embedder, error) {
		var e Embedder
		switch info.Provider {
		case ProviderOpenAI:
			key := cfg.APIKey
			if key == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			e = NewOpenAIEmbedder(cfg.URL, key, model, info.Dims)
		default:
			e = NewOllamaEmbedder(cfg.URL, model, info.Dims)
		}
		if p, ok := e.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return nil, err
			}
		}
		return e, nil
	}
	return build, info.Dims, nil
}
