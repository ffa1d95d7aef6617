package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-embedding-001"

type genAIProvider struct {
	client *genai.Client
	model  string
	dim    atomic.Int64
}

// NewGenAI constructs a Gemini embeddings provider.
func NewGenAI(ctx context.Context, cfg *Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings API key is not configured (set SENTARI_EMBEDDINGS_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGenAIModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create GenAI client: %w", err)
	}
	return &genAIProvider{client: client, model: model}, nil
}

func (p *genAIProvider) ModelID() string {
	return "genai:" + p.model
}

func (p *genAIProvider) Dim() int {
	return int(p.dim.Load())
}

func (p *genAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embeddings response missing embedding")
	}
	out := result.Embeddings[0].Values
	p.dim.Store(int64(len(out)))
	return out, nil
}
