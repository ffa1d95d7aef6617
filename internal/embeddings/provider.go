// Package embeddings turns entry text into fixed-length vectors used for
// carry-in similarity and semantic search over history.
package embeddings

import (
	"context"
	"fmt"

	"github.com/kamusis/sentari/internal/config"
)

// Provider embeds text into a fixed-length float vector.
//
// Implementations must be deterministic for the same input text and model,
// and must honour ctx cancellation.
type Provider interface {
	ModelID() string
	Dim() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider names.
const (
	ProviderHash   = "hash"
	ProviderMiniLM = "minilm"
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
)

// Config contains the resolved embeddings configuration.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// LoadConfig resolves embeddings config from environment variables first,
// then ~/.sentari/.env.
func LoadConfig() (*Config, error) {
	provider, err := config.GetConfigValue("SENTARI_EMBEDDINGS_PROVIDER")
	if err != nil {
		return nil, err
	}
	model, err := config.GetConfigValue("SENTARI_EMBEDDINGS_MODEL")
	if err != nil {
		return nil, err
	}
	apiKey, err := config.GetConfigValue("SENTARI_EMBEDDINGS_API_KEY")
	if err != nil {
		return nil, err
	}
	baseURL, err := config.GetConfigValue("SENTARI_EMBEDDINGS_BASE_URL")
	if err != nil {
		return nil, err
	}
	if provider == "" {
		provider = ProviderHash
	}

	return &Config{
		Provider: provider,
		Model:    model,
		APIKey:   apiKey,
		BaseURL:  baseURL,
	}, nil
}

// NewFromConfig returns an embeddings provider.
func NewFromConfig(ctx context.Context, cfg *Config) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embeddings config is nil")
	}
	switch cfg.Provider {
	case "", ProviderHash:
		return NewHash(0), nil
	case ProviderMiniLM:
		return NewMiniLM(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderGenAI:
		return NewGenAI(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}
