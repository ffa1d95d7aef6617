package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultMiniLMBaseURL is where the sentence-transformers sidecar listens.
const DefaultMiniLMBaseURL = "http://127.0.0.1:8000"

type miniLMProvider struct {
	model   string
	baseURL string
	client  *http.Client
	dim     atomic.Int64
}

// NewMiniLM constructs a provider backed by a local all-MiniLM-L6-v2 sidecar.
//
// It uses the REST endpoint:
//
//	GET {baseURL}/embed?rawText=...
//
// which answers with:
//
//	{"embedding": [...]}
func NewMiniLM(cfg *Config) Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultMiniLMBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "all-MiniLM-L6-v2"
	}
	p := &miniLMProvider{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	p.dim.Store(384)
	return p
}

func (p *miniLMProvider) ModelID() string {
	return "minilm:" + p.model
}

func (p *miniLMProvider) Dim() int {
	return int(p.dim.Load())
}

func (p *miniLMProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	u := p.baseURL + "/embed?" + url.Values{"rawText": {text}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse embeddings response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response missing embedding")
	}

	out := toFloat32(parsed.Embedding)
	p.dim.Store(int64(len(out)))
	return out, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
